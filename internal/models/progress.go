package models

import (
	"time"
)

// ProgressStatus is the lifecycle state of a case investigation.
//
// The lifecycle is in_progress → submitted (optional intermediate) → reviewed.
// Reviewed is terminal: no further mutation is permitted.
type ProgressStatus string

const (
	ProgressStatusInProgress ProgressStatus = "in_progress"
	ProgressStatusSubmitted  ProgressStatus = "submitted"
	ProgressStatusReviewed   ProgressStatus = "reviewed"
)

// Verdict is the coarse outcome bucket derived from the score.
type Verdict string

const (
	VerdictSolved           Verdict = "solved"
	VerdictPartiallySolved  Verdict = "partially_solved"
	VerdictNeedsImprovement Verdict = "needs_improvement"
)

// QuestionFeedback is shown to the player for one question after grading.
type QuestionFeedback struct {
	QuestionID    string    `json:"question_id"`
	UserAnswer    Answer    `json:"user_answer"`
	CorrectAnswer AnswerKey `json:"correct_answer"`
	IsCorrect     bool      `json:"is_correct"`
	ExplanationEN string    `json:"explanation_en"`
	ExplanationFI string    `json:"explanation_fi"`
}

// CaseProgress tracks one player's investigation of one case. Responses are
// keyed by the zero-based question index; a missing key means the question was
// skipped. Score and Verdict are nil until the case is graded.
type CaseProgress struct {
	UserID          []byte
	CaseID          string
	Status          ProgressStatus
	CurrentQuestion int
	Responses       map[int]Answer
	Score           *int
	Verdict         *Verdict
	Feedback        []QuestionFeedback
	StartedAt       time.Time
	CompletedAt     *time.Time
}

// Completed reports whether the case counts towards solved totals.
func (p CaseProgress) Completed() bool {
	return p.Status == ProgressStatusReviewed || p.Status == ProgressStatusSubmitted
}

// Response returns the answer for the question at index, or an unanswered
// answer when the player skipped it.
func (p CaseProgress) Response(index int) Answer {
	if answer, ok := p.Responses[index]; ok {
		return answer
	}
	return Unanswered()
}
