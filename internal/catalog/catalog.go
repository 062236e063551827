// Package catalog is the read side of the case catalog: cases, evidence,
// sequential questions, and badge definitions. The engine never mutates
// catalog content; authoring happens through the seeding CLI.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/normicyte/normicyte/internal/errors"
	"github.com/normicyte/normicyte/internal/models"
	"github.com/normicyte/normicyte/internal/sqlite"
)

var (
	ErrCaseNotFound = errors.NewSentinel("case not found")
	// ErrEmptyCase signals a catalog authoring bug: a published case must have
	// at least one question or grading would divide by zero.
	ErrEmptyCase = errors.NewSentinel("case has no questions")
)

type Catalog struct {
	dbs    *sqlite.Database
	logger *slog.Logger
}

func NewCatalog(dbs *sqlite.Database, logger *slog.Logger) *Catalog {
	return &Catalog{
		dbs:    dbs,
		logger: logger.With("source", "Catalog"),
	}
}

// ListCases returns all published cases ordered by case number.
func (c *Catalog) ListCases(ctx context.Context) ([]models.Case, error) {
	var cases []models.Case
	stmt := `SELECT id, case_number, title_en, title_fi, description_en, description_fi,
       briefing_en, briefing_fi, difficulty, threat_type, xp_reward
FROM cases
ORDER BY case_number`
	if err := c.dbs.ReadOnly.SelectContext(ctx, &cases, stmt); err != nil {
		return nil, errors.Wrap(err, "select cases")
	}
	return cases, nil
}

// GetCase returns one case or ErrCaseNotFound.
func (c *Catalog) GetCase(ctx context.Context, caseID string) (*models.Case, error) {
	var caseRecord models.Case
	stmt := `SELECT id, case_number, title_en, title_fi, description_en, description_fi,
       briefing_en, briefing_fi, difficulty, threat_type, xp_reward
FROM cases
WHERE id = ?`
	if err := c.dbs.ReadOnly.GetContext(ctx, &caseRecord, stmt, caseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrap(ErrCaseNotFound, "get case", slog.String("case_id", caseID))
		}
		return nil, errors.Wrap(err, "get case", slog.String("case_id", caseID))
	}
	return &caseRecord, nil
}

// questionRow carries the raw JSON columns before decoding.
type questionRow struct {
	ID            string              `db:"id"`
	CaseID        string              `db:"case_id"`
	QuestionType  models.QuestionType `db:"question_type"`
	PromptEN      string              `db:"prompt_en"`
	PromptFI      string              `db:"prompt_fi"`
	Options       string              `db:"options"`
	CorrectAnswer string              `db:"correct_answer"`
	ExplanationEN string              `db:"explanation_en"`
	ExplanationFI string              `db:"explanation_fi"`
	DisplayOrder  int64               `db:"display_order"`
}

// CaseQuestions returns the case's questions in display order. It fails loudly
// on authoring bugs: a case without questions or a question whose answer key
// does not match its declared type.
func (c *Catalog) CaseQuestions(ctx context.Context, caseID string) ([]models.Question, error) {
	var rows []questionRow
	stmt := `SELECT id, case_id, question_type, prompt_en, prompt_fi, options, correct_answer,
       explanation_en, explanation_fi, display_order
FROM case_questions
WHERE case_id = ?
ORDER BY display_order`
	if err := c.dbs.ReadOnly.SelectContext(ctx, &rows, stmt, caseID); err != nil {
		return nil, errors.Wrap(err, "select case questions", slog.String("case_id", caseID))
	}
	if len(rows) == 0 {
		return nil, errors.Wrap(ErrEmptyCase, "case questions", slog.String("case_id", caseID))
	}

	questions := make([]models.Question, len(rows))
	for i, row := range rows {
		question := models.Question{
			ID:            row.ID,
			CaseID:        row.CaseID,
			QuestionType:  row.QuestionType,
			PromptEN:      row.PromptEN,
			PromptFI:      row.PromptFI,
			ExplanationEN: row.ExplanationEN,
			ExplanationFI: row.ExplanationFI,
			DisplayOrder:  row.DisplayOrder,
		}
		if err := json.Unmarshal([]byte(row.Options), &question.Options); err != nil {
			return nil, errors.Wrap(err, "decode question options", slog.String("question_id", row.ID))
		}
		if err := json.Unmarshal([]byte(row.CorrectAnswer), &question.CorrectAnswer); err != nil {
			return nil, errors.Wrap(err, "decode answer key", slog.String("question_id", row.ID))
		}
		if err := question.Validate(); err != nil {
			return nil, err
		}
		questions[i] = question
	}
	return questions, nil
}

// CaseEvidence returns the case's evidence in display order.
func (c *Catalog) CaseEvidence(ctx context.Context, caseID string) ([]models.Evidence, error) {
	var evidence []models.Evidence
	stmt := `SELECT id, case_id, evidence_type, title_en, title_fi, content_en, content_fi, display_order
FROM case_evidence
WHERE case_id = ?
ORDER BY display_order`
	if err := c.dbs.ReadOnly.SelectContext(ctx, &evidence, stmt, caseID); err != nil {
		return nil, errors.Wrap(err, "select case evidence", slog.String("case_id", caseID))
	}
	return evidence, nil
}

// BadgeDefinitions returns every badge definition in the catalog.
func (c *Catalog) BadgeDefinitions(ctx context.Context) ([]models.BadgeDefinition, error) {
	var definitions []models.BadgeDefinition
	stmt := `SELECT id, name_en, name_fi, icon, requirement_type, requirement_value
FROM badge_definitions
ORDER BY requirement_type, requirement_value`
	if err := c.dbs.ReadOnly.SelectContext(ctx, &definitions, stmt); err != nil {
		return nil, errors.Wrap(err, "select badge definitions")
	}
	return definitions, nil
}
