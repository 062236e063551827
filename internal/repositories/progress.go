package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/normicyte/normicyte/internal/errors"
	"github.com/normicyte/normicyte/internal/models"
	"github.com/normicyte/normicyte/internal/sqlite"
)

var (
	ErrProgressNotFound = errors.NewSentinel("case progress not found")
	// ErrProgressReviewed guards the terminal state: a reviewed case can not
	// be answered or graded again.
	ErrProgressReviewed = errors.NewSentinel("case progress already reviewed")
)

// ProgressRepository persists per-player per-case investigation state.
type ProgressRepository struct {
	dbs    *sqlite.Database
	logger *slog.Logger
}

func NewProgressRepository(dbs *sqlite.Database, logger *slog.Logger) *ProgressRepository {
	return &ProgressRepository{
		dbs:    dbs,
		logger: logger.With("source", "ProgressRepository"),
	}
}

type progressRow struct {
	UserID          []byte         `db:"user_id"`
	CaseID          string         `db:"case_id"`
	Status          string         `db:"status"`
	CurrentQuestion int            `db:"current_question"`
	Responses       string         `db:"responses"`
	Score           sql.NullInt64  `db:"score"`
	Verdict         sql.NullString `db:"verdict"`
	Feedback        sql.NullString `db:"feedback"`
	StartedAt       string         `db:"started_at"`
	CompletedAt     sql.NullString `db:"completed_at"`
}

func (row progressRow) toModel() (*models.CaseProgress, error) {
	progress := models.CaseProgress{
		UserID:          row.UserID,
		CaseID:          row.CaseID,
		Status:          models.ProgressStatus(row.Status),
		CurrentQuestion: row.CurrentQuestion,
		Responses:       map[int]models.Answer{},
	}
	if err := json.Unmarshal([]byte(row.Responses), &progress.Responses); err != nil {
		return nil, errors.Wrap(err, "decode responses", slog.String("case_id", row.CaseID))
	}
	if row.Score.Valid {
		score := int(row.Score.Int64)
		progress.Score = &score
	}
	if row.Verdict.Valid {
		verdict := models.Verdict(row.Verdict.String)
		progress.Verdict = &verdict
	}
	if row.Feedback.Valid {
		if err := json.Unmarshal([]byte(row.Feedback.String), &progress.Feedback); err != nil {
			return nil, errors.Wrap(err, "decode feedback", slog.String("case_id", row.CaseID))
		}
	}
	startedAt, err := time.Parse(time.RFC3339, row.StartedAt)
	if err != nil {
		return nil, errors.Wrap(err, "parse started_at", slog.String("case_id", row.CaseID))
	}
	progress.StartedAt = startedAt
	if row.CompletedAt.Valid {
		completedAt, err := time.Parse(time.RFC3339, row.CompletedAt.String)
		if err != nil {
			return nil, errors.Wrap(err, "parse completed_at", slog.String("case_id", row.CaseID))
		}
		progress.CompletedAt = &completedAt
	}
	return &progress, nil
}

const selectProgress = `SELECT user_id, case_id, status, current_question, responses, score, verdict, feedback,
       started_at, completed_at
FROM case_progress`

// Get returns one progress record or ErrProgressNotFound.
func (r *ProgressRepository) Get(ctx context.Context, userID []byte, caseID string) (*models.CaseProgress, error) {
	var row progressRow
	stmt := selectProgress + ` WHERE user_id = ? AND case_id = ?`
	if err := r.dbs.ReadOnly.GetContext(ctx, &row, stmt, userID, caseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrap(ErrProgressNotFound, "get progress", slog.String("case_id", caseID))
		}
		return nil, errors.Wrap(err, "get progress", slog.String("case_id", caseID))
	}
	return row.toModel()
}

// ListForUser returns the player's full progress history, the input for the
// wholesale profile recomputation.
func (r *ProgressRepository) ListForUser(ctx context.Context, userID []byte) ([]models.CaseProgress, error) {
	var rows []progressRow
	stmt := selectProgress + ` WHERE user_id = ? ORDER BY started_at`
	if err := r.dbs.ReadOnly.SelectContext(ctx, &rows, stmt, userID); err != nil {
		return nil, errors.Wrap(err, "list progress")
	}
	history := make([]models.CaseProgress, len(rows))
	for i, row := range rows {
		progress, err := row.toModel()
		if err != nil {
			return nil, err
		}
		history[i] = *progress
	}
	return history, nil
}

// Start creates an in-progress record at question zero with empty responses.
// It is idempotent: an existing record is returned untouched so that resuming
// an investigation never resets answers.
func (r *ProgressRepository) Start(ctx context.Context, userID []byte, caseID string) (*models.CaseProgress, error) {
	stmt := `INSERT INTO case_progress (user_id, case_id, status, current_question, responses, started_at)
VALUES (?, ?, 'in_progress', 0, '{}', ?)
ON CONFLICT (user_id, case_id) DO NOTHING`
	startedAt := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := r.dbs.ReadWrite.ExecContext(ctx, stmt, userID, caseID, startedAt); err != nil {
		return nil, errors.Wrap(err, "insert progress", slog.String("case_id", caseID))
	}
	return r.Get(ctx, userID, caseID)
}

// SaveResponses persists the full responses document together with the new
// cursor position as one atomic write. The write is refused once the case has
// been submitted or reviewed.
func (r *ProgressRepository) SaveResponses(
	ctx context.Context,
	userID []byte,
	caseID string,
	responses map[int]models.Answer,
	currentQuestion int,
) error {
	encoded, err := json.Marshal(responses)
	if err != nil {
		return errors.Wrap(err, "encode responses", slog.String("case_id", caseID))
	}
	stmt := `UPDATE case_progress
SET responses = ?, current_question = ?
WHERE user_id = ? AND case_id = ? AND status = 'in_progress'`
	result, err := r.dbs.ReadWrite.ExecContext(ctx, stmt, string(encoded), currentQuestion, userID, caseID)
	if err != nil {
		return errors.Wrap(err, "update responses", slog.String("case_id", caseID))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected", slog.String("case_id", caseID))
	}
	if affected == 0 {
		return errors.Wrap(ErrProgressReviewed, "update responses", slog.String("case_id", caseID))
	}
	return nil
}

// MarkSubmitted moves an in-progress investigation to the optional submitted
// step where the player reviews answered and skipped questions.
func (r *ProgressRepository) MarkSubmitted(ctx context.Context, userID []byte, caseID string) error {
	stmt := `UPDATE case_progress
SET status = 'submitted'
WHERE user_id = ? AND case_id = ? AND status = 'in_progress'`
	if _, err := r.dbs.ReadWrite.ExecContext(ctx, stmt, userID, caseID); err != nil {
		return errors.Wrap(err, "mark submitted", slog.String("case_id", caseID))
	}
	return nil
}

// FinishReview writes the grading outcome and transitions the record to the
// terminal reviewed state. The status predicate makes the transition a
// compare-and-set: under a duplicate submit or a concurrent tab, exactly one
// caller wins and the rest get ErrProgressReviewed, which prevents XP from
// being credited twice.
func (r *ProgressRepository) FinishReview(
	ctx context.Context,
	userID []byte,
	caseID string,
	score int,
	verdict models.Verdict,
	feedback []models.QuestionFeedback,
	completedAt time.Time,
) error {
	encoded, err := json.Marshal(feedback)
	if err != nil {
		return errors.Wrap(err, "encode feedback", slog.String("case_id", caseID))
	}
	stmt := `UPDATE case_progress
SET status = 'reviewed', score = ?, verdict = ?, feedback = ?, completed_at = ?
WHERE user_id = ? AND case_id = ? AND status != 'reviewed'`
	result, err := r.dbs.ReadWrite.ExecContext(ctx, stmt,
		score, string(verdict), string(encoded), completedAt.UTC().Format(time.RFC3339Nano), userID, caseID)
	if err != nil {
		return errors.Wrap(err, "finish review", slog.String("case_id", caseID))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected", slog.String("case_id", caseID))
	}
	if affected == 0 {
		return errors.Wrap(ErrProgressReviewed, "finish review", slog.String("case_id", caseID))
	}
	return nil
}
