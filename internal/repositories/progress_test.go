package repositories_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/normicyte/normicyte/internal/models"
	"github.com/normicyte/normicyte/internal/repositories"
	"github.com/normicyte/normicyte/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

const testCaseID = "payroll-phish"

func TestProgressRepository_StartIsIdempotent(t *testing.T) {
	t.Parallel()
	dbs := newTestDB(t)
	logger := testhelpers.NewLogger(io.Discard)
	repo := repositories.NewProgressRepository(dbs, logger)
	userID := insertTestUser(t, dbs)
	ctx := context.Background()

	progress, err := repo.Start(ctx, userID, testCaseID)
	require.NoError(t, err, "start investigation")
	require.Equal(t, models.ProgressStatusInProgress, progress.Status)
	require.Equal(t, 0, progress.CurrentQuestion)
	require.Empty(t, progress.Responses)

	// Answer a question, then start again. The restart must not reset anything.
	err = repo.SaveResponses(ctx, userID, testCaseID,
		map[int]models.Answer{0: models.SingleChoice("b")}, 1)
	require.NoError(t, err, "save responses")

	restarted, err := repo.Start(ctx, userID, testCaseID)
	require.NoError(t, err, "restart investigation")
	require.Equal(t, 1, restarted.CurrentQuestion, "restart must not reset the cursor")
	require.Equal(t, models.SingleChoice("b"), restarted.Responses[0], "restart must not drop answers")
	require.Equal(t, progress.StartedAt, restarted.StartedAt, "restart must not restamp started_at")
}

func TestProgressRepository_Get(t *testing.T) {
	t.Parallel()
	dbs := newTestDB(t)
	logger := testhelpers.NewLogger(io.Discard)
	repo := repositories.NewProgressRepository(dbs, logger)
	userID := insertTestUser(t, dbs)
	ctx := context.Background()

	_, err := repo.Get(ctx, userID, testCaseID)
	require.ErrorIs(t, err, repositories.ErrProgressNotFound)

	_, err = repo.Start(ctx, userID, testCaseID)
	require.NoError(t, err)

	progress, err := repo.Get(ctx, userID, testCaseID)
	require.NoError(t, err)
	require.Equal(t, testCaseID, progress.CaseID)
	require.Nil(t, progress.Score)
	require.Nil(t, progress.Verdict)
	require.Nil(t, progress.CompletedAt)
}

func TestProgressRepository_SaveResponsesRoundTrip(t *testing.T) {
	t.Parallel()
	dbs := newTestDB(t)
	logger := testhelpers.NewLogger(io.Discard)
	repo := repositories.NewProgressRepository(dbs, logger)
	userID := insertTestUser(t, dbs)
	ctx := context.Background()

	_, err := repo.Start(ctx, userID, testCaseID)
	require.NoError(t, err)

	responses := map[int]models.Answer{
		0: models.SingleChoice("b"),
		1: models.MultiChoice([]string{"a", "c"}),
		2: models.FreeText("I would call the payroll team to verify"),
		3: models.Unanswered(),
	}
	err = repo.SaveResponses(ctx, userID, testCaseID, responses, 4)
	require.NoError(t, err, "save responses")

	progress, err := repo.Get(ctx, userID, testCaseID)
	require.NoError(t, err)
	require.Equal(t, 4, progress.CurrentQuestion)
	require.Equal(t, responses, progress.Responses)
}

func TestProgressRepository_FinishReviewWinsOnce(t *testing.T) {
	t.Parallel()
	dbs := newTestDB(t)
	logger := testhelpers.NewLogger(io.Discard)
	repo := repositories.NewProgressRepository(dbs, logger)
	userID := insertTestUser(t, dbs)
	ctx := context.Background()

	_, err := repo.Start(ctx, userID, testCaseID)
	require.NoError(t, err)

	feedback := []models.QuestionFeedback{
		{
			QuestionID:    "q1",
			UserAnswer:    models.SingleChoice("b"),
			CorrectAnswer: models.AnswerKey{Option: "b"},
			IsCorrect:     true,
			ExplanationEN: "The reply-to domain does not match the sender.",
			ExplanationFI: "Vastausosoitteen verkkotunnus ei vastaa lähettäjää.",
		},
	}
	completedAt := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	err = repo.FinishReview(ctx, userID, testCaseID, 80, models.VerdictSolved, feedback, completedAt)
	require.NoError(t, err, "first review")

	progress, err := repo.Get(ctx, userID, testCaseID)
	require.NoError(t, err)
	require.Equal(t, models.ProgressStatusReviewed, progress.Status)
	require.NotNil(t, progress.Score)
	require.Equal(t, 80, *progress.Score)
	require.NotNil(t, progress.Verdict)
	require.Equal(t, models.VerdictSolved, *progress.Verdict)
	require.Equal(t, feedback, progress.Feedback)
	require.NotNil(t, progress.CompletedAt)
	require.True(t, completedAt.Equal(*progress.CompletedAt))

	// A duplicate submit must lose the compare-and-set and leave the first
	// grading outcome in place.
	err = repo.FinishReview(ctx, userID, testCaseID, 100, models.VerdictSolved, nil, completedAt.Add(time.Hour))
	require.ErrorIs(t, err, repositories.ErrProgressReviewed)

	progress, err = repo.Get(ctx, userID, testCaseID)
	require.NoError(t, err)
	require.Equal(t, 80, *progress.Score, "losing review must not overwrite the score")
}

func TestProgressRepository_ReviewedRefusesAnswers(t *testing.T) {
	t.Parallel()
	dbs := newTestDB(t)
	logger := testhelpers.NewLogger(io.Discard)
	repo := repositories.NewProgressRepository(dbs, logger)
	userID := insertTestUser(t, dbs)
	ctx := context.Background()

	_, err := repo.Start(ctx, userID, testCaseID)
	require.NoError(t, err)
	err = repo.FinishReview(ctx, userID, testCaseID, 60, models.VerdictPartiallySolved, nil, time.Now())
	require.NoError(t, err)

	err = repo.SaveResponses(ctx, userID, testCaseID,
		map[int]models.Answer{0: models.SingleChoice("a")}, 1)
	require.ErrorIs(t, err, repositories.ErrProgressReviewed)
}

func TestProgressRepository_MarkSubmitted(t *testing.T) {
	t.Parallel()
	dbs := newTestDB(t)
	logger := testhelpers.NewLogger(io.Discard)
	repo := repositories.NewProgressRepository(dbs, logger)
	userID := insertTestUser(t, dbs)
	ctx := context.Background()

	_, err := repo.Start(ctx, userID, testCaseID)
	require.NoError(t, err)
	require.NoError(t, repo.MarkSubmitted(ctx, userID, testCaseID))

	progress, err := repo.Get(ctx, userID, testCaseID)
	require.NoError(t, err)
	require.Equal(t, models.ProgressStatusSubmitted, progress.Status)

	// Review still succeeds from the submitted state.
	err = repo.FinishReview(ctx, userID, testCaseID, 40, models.VerdictNeedsImprovement, nil, time.Now())
	require.NoError(t, err)
}

func TestProgressRepository_ListForUser(t *testing.T) {
	t.Parallel()
	dbs := newTestDB(t)
	logger := testhelpers.NewLogger(io.Discard)
	repo := repositories.NewProgressRepository(dbs, logger)
	userID := insertTestUser(t, dbs)
	otherID := insertTestUser(t, dbs)
	ctx := context.Background()

	_, err := repo.Start(ctx, userID, testCaseID)
	require.NoError(t, err)
	_, err = repo.Start(ctx, otherID, testCaseID)
	require.NoError(t, err)

	history, err := repo.ListForUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, history, 1, "history must be scoped to the player")
	require.Equal(t, userID, history[0].UserID)
}
