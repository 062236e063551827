package models

// Difficulty rates how demanding a case is for the player.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Case is a scenario unit in the Digital Detective game. It contains evidence
// and sequential questions and is immutable once published.
type Case struct {
	ID            string     `db:"id"`
	CaseNumber    int64      `db:"case_number"`
	TitleEN       string     `db:"title_en"`
	TitleFI       string     `db:"title_fi"`
	DescriptionEN string     `db:"description_en"`
	DescriptionFI string     `db:"description_fi"`
	BriefingEN    string     `db:"briefing_en"`
	BriefingFI    string     `db:"briefing_fi"`
	Difficulty    Difficulty `db:"difficulty"`
	ThreatType    string     `db:"threat_type"`
	XPReward      int        `db:"xp_reward"`
}

// EvidenceType tells the presentation layer how to render a piece of evidence.
type EvidenceType string

const (
	EvidenceTypeEmail       EvidenceType = "email"
	EvidenceTypeChat        EvidenceType = "chat"
	EvidenceTypeURL         EvidenceType = "url"
	EvidenceTypeTransaction EvidenceType = "transaction"
	EvidenceTypeDocument    EvidenceType = "document"
)

// Evidence is read-only reference material belonging to exactly one case.
type Evidence struct {
	ID           string       `db:"id"`
	CaseID       string       `db:"case_id"`
	EvidenceType EvidenceType `db:"evidence_type"`
	TitleEN      string       `db:"title_en"`
	TitleFI      string       `db:"title_fi"`
	ContentEN    string       `db:"content_en"`
	ContentFI    string       `db:"content_fi"`
	DisplayOrder int64        `db:"display_order"`
}
