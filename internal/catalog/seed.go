package catalog

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/normicyte/normicyte/internal/errors"
	"github.com/normicyte/normicyte/internal/models"
	"github.com/normicyte/normicyte/internal/sqlite"
	"gopkg.in/yaml.v3"
)

// seedFile is the YAML authoring format for catalog content. A file can carry
// any mix of cases and badge definitions.
type seedFile struct {
	Cases  []seedCase  `yaml:"cases"`
	Badges []seedBadge `yaml:"badges"`
}

type seedCase struct {
	ID            string            `yaml:"id"`
	CaseNumber    int64             `yaml:"case_number"`
	TitleEN       string            `yaml:"title_en"`
	TitleFI       string            `yaml:"title_fi"`
	DescriptionEN string            `yaml:"description_en"`
	DescriptionFI string            `yaml:"description_fi"`
	BriefingEN    string            `yaml:"briefing_en"`
	BriefingFI    string            `yaml:"briefing_fi"`
	Difficulty    models.Difficulty `yaml:"difficulty"`
	ThreatType    string            `yaml:"threat_type"`
	XPReward      int               `yaml:"xp_reward"`
	Evidence      []seedEvidence    `yaml:"evidence"`
	Questions     []seedQuestion    `yaml:"questions"`
}

type seedEvidence struct {
	ID           string              `yaml:"id"`
	EvidenceType models.EvidenceType `yaml:"type"`
	TitleEN      string              `yaml:"title_en"`
	TitleFI      string              `yaml:"title_fi"`
	ContentEN    string              `yaml:"content_en"`
	ContentFI    string              `yaml:"content_fi"`
}

type seedQuestion struct {
	ID            string              `yaml:"id"`
	QuestionType  models.QuestionType `yaml:"type"`
	PromptEN      string              `yaml:"prompt_en"`
	PromptFI      string              `yaml:"prompt_fi"`
	Options       []string            `yaml:"options"`
	CorrectAnswer models.AnswerKey    `yaml:"correct_answer"`
	ExplanationEN string              `yaml:"explanation_en"`
	ExplanationFI string              `yaml:"explanation_fi"`
}

type seedBadge struct {
	ID               string                  `yaml:"id"`
	NameEN           string                  `yaml:"name_en"`
	NameFI           string                  `yaml:"name_fi"`
	Icon             string                  `yaml:"icon"`
	RequirementType  models.BadgeRequirement `yaml:"requirement"`
	RequirementValue int                     `yaml:"threshold"`
}

// Seeder imports authored catalog content into the database. Re-seeding the
// same file updates the rows in place.
type Seeder struct {
	dbs    *sqlite.Database
	logger *slog.Logger
}

func NewSeeder(dbs *sqlite.Database, logger *slog.Logger) *Seeder {
	return &Seeder{
		dbs:    dbs,
		logger: logger.With("source", "Seeder"),
	}
}

// Import reads one YAML catalog file and writes its content in a single
// transaction. Every question is validated before anything is written so a
// malformed answer key never reaches players.
func (s *Seeder) Import(ctx context.Context, r io.Reader) error {
	var file seedFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return errors.Wrap(err, "decode catalog file")
	}

	for _, seeded := range file.Cases {
		for _, question := range seeded.Questions {
			q := models.Question{
				ID:            question.ID,
				CaseID:        seeded.ID,
				QuestionType:  question.QuestionType,
				Options:       question.Options,
				CorrectAnswer: question.CorrectAnswer,
			}
			if err := q.Validate(); err != nil {
				return err
			}
		}
	}

	tx, err := s.dbs.ReadWrite.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, seeded := range file.Cases {
		if err = s.importCase(ctx, tx, seeded); err != nil {
			return err
		}
	}
	for _, badge := range file.Badges {
		stmt := `INSERT INTO badge_definitions (id, name_en, name_fi, icon, requirement_type, requirement_value)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET name_en           = excluded.name_en,
                               name_fi           = excluded.name_fi,
                               icon              = excluded.icon,
                               requirement_type  = excluded.requirement_type,
                               requirement_value = excluded.requirement_value`
		if _, err = tx.ExecContext(ctx, stmt,
			badge.ID, badge.NameEN, badge.NameFI, badge.Icon, badge.RequirementType, badge.RequirementValue); err != nil {
			return errors.Wrap(err, "upsert badge definition", slog.String("badge_id", badge.ID))
		}
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit transaction")
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "catalog imported",
		slog.Int("cases", len(file.Cases)), slog.Int("badges", len(file.Badges)))
	return nil
}

func (s *Seeder) importCase(ctx context.Context, tx *sqlx.Tx, seeded seedCase) error {
	stmt := `INSERT INTO cases (id, case_number, title_en, title_fi, description_en, description_fi,
                   briefing_en, briefing_fi, difficulty, threat_type, xp_reward)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET case_number    = excluded.case_number,
                               title_en       = excluded.title_en,
                               title_fi       = excluded.title_fi,
                               description_en = excluded.description_en,
                               description_fi = excluded.description_fi,
                               briefing_en    = excluded.briefing_en,
                               briefing_fi    = excluded.briefing_fi,
                               difficulty     = excluded.difficulty,
                               threat_type    = excluded.threat_type,
                               xp_reward      = excluded.xp_reward`
	if _, err := tx.ExecContext(ctx, stmt,
		seeded.ID, seeded.CaseNumber, seeded.TitleEN, seeded.TitleFI,
		seeded.DescriptionEN, seeded.DescriptionFI, seeded.BriefingEN, seeded.BriefingFI,
		seeded.Difficulty, seeded.ThreatType, seeded.XPReward); err != nil {
		return errors.Wrap(err, "upsert case", slog.String("case_id", seeded.ID))
	}

	for order, evidence := range seeded.Evidence {
		stmt = `INSERT INTO case_evidence (id, case_id, evidence_type, title_en, title_fi, content_en, content_fi,
                           display_order)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET evidence_type = excluded.evidence_type,
                               title_en      = excluded.title_en,
                               title_fi      = excluded.title_fi,
                               content_en    = excluded.content_en,
                               content_fi    = excluded.content_fi,
                               display_order = excluded.display_order`
		if _, err := tx.ExecContext(ctx, stmt,
			evidence.ID, seeded.ID, evidence.EvidenceType, evidence.TitleEN, evidence.TitleFI,
			evidence.ContentEN, evidence.ContentFI, order); err != nil {
			return errors.Wrap(err, "upsert evidence", slog.String("evidence_id", evidence.ID))
		}
	}

	for order, question := range seeded.Questions {
		options, err := json.Marshal(question.Options)
		if err != nil {
			return errors.Wrap(err, "marshal options", slog.String("question_id", question.ID))
		}
		correctAnswer, err := json.Marshal(question.CorrectAnswer)
		if err != nil {
			return errors.Wrap(err, "marshal answer key", slog.String("question_id", question.ID))
		}
		stmt = `INSERT INTO case_questions (id, case_id, question_type, prompt_en, prompt_fi, options, correct_answer,
                            explanation_en, explanation_fi, display_order)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET question_type  = excluded.question_type,
                               prompt_en      = excluded.prompt_en,
                               prompt_fi      = excluded.prompt_fi,
                               options        = excluded.options,
                               correct_answer = excluded.correct_answer,
                               explanation_en = excluded.explanation_en,
                               explanation_fi = excluded.explanation_fi,
                               display_order  = excluded.display_order`
		if _, err = tx.ExecContext(ctx, stmt,
			question.ID, seeded.ID, question.QuestionType, question.PromptEN, question.PromptFI,
			string(options), string(correctAnswer), question.ExplanationEN, question.ExplanationFI, order); err != nil {
			return errors.Wrap(err, "upsert question", slog.String("question_id", question.ID))
		}
	}

	return nil
}
