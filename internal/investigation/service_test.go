package investigation_test

import (
	"context"
	"io"
	"testing"

	"github.com/normicyte/normicyte/internal/catalog"
	"github.com/normicyte/normicyte/internal/investigation"
	"github.com/normicyte/normicyte/internal/models"
	"github.com/normicyte/normicyte/internal/repositories"
	"github.com/normicyte/normicyte/internal/sqlite"
	"github.com/normicyte/normicyte/internal/testhelpers"
	"github.com/stretchr/testify/require"
)

const testCaseID = "payroll-phish"

type serviceFixture struct {
	service  *investigation.Service
	profiles *repositories.ProfileRepository
	userID   []byte
}

func newServiceFixture(t *testing.T) serviceFixture {
	t.Helper()
	logger := testhelpers.NewLogger(io.Discard)
	dbs, err := sqlite.NewDatabase(context.Background(), ":memory:", logger)
	require.NoError(t, err, "open test database")
	t.Cleanup(func() {
		if err := dbs.Close(); err != nil {
			t.Fatal(err)
		}
	})

	user, err := models.NewUser()
	require.NoError(t, err)
	_, err = dbs.ReadWrite.Exec(`INSERT INTO users (id, display_name) VALUES (?, ?)`, user.ID, user.DisplayName)
	require.NoError(t, err)

	profiles := repositories.NewProfileRepository(dbs, logger)
	service := investigation.NewService(
		catalog.NewCatalog(dbs, logger),
		repositories.NewProgressRepository(dbs, logger),
		profiles,
		repositories.NewActivityRepository(dbs, logger),
		logger,
	)
	return serviceFixture{service: service, profiles: profiles, userID: user.ID}
}

// correctAnswers are the right answers to the built-in demo case, in display order.
func correctAnswers() []models.Answer {
	return []models.Answer{
		models.SingleChoice("Business email compromise"),
		models.SingleChoice("No"),
		models.MultiChoice([]string{
			"Lookalike sender domain",
			"Recently registered domain",
			"Recently opened destination account",
		}),
		models.FreeText("HR should call the employee to verify the change"),
		models.SingleChoice("Fresh domains are a common phishing signal"),
	}
}

func TestService_StartIsIdempotent(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	progress, err := f.service.Start(ctx, f.userID, testCaseID)
	require.NoError(t, err)
	require.Equal(t, models.ProgressStatusInProgress, progress.Status)

	_, err = f.service.RecordAnswer(ctx, f.userID, testCaseID, 0, correctAnswers()[0])
	require.NoError(t, err)

	restarted, err := f.service.Start(ctx, f.userID, testCaseID)
	require.NoError(t, err)
	require.Equal(t, 1, restarted.CurrentQuestion, "restart must not reset progress")
	require.Len(t, restarted.Responses, 1)
}

func TestService_StartUnknownCase(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)

	_, err := f.service.Start(context.Background(), f.userID, "nonexistent")
	require.ErrorIs(t, err, catalog.ErrCaseNotFound)
}

func TestService_RecordAnswerValidation(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.Start(ctx, f.userID, testCaseID)
	require.NoError(t, err)

	_, err = f.service.RecordAnswer(ctx, f.userID, testCaseID, 0, models.SingleChoice(""))
	require.ErrorIs(t, err, investigation.ErrEmptyAnswer)

	_, err = f.service.RecordAnswer(ctx, f.userID, testCaseID, 0, models.MultiChoice(nil))
	require.ErrorIs(t, err, investigation.ErrEmptyAnswer)

	_, err = f.service.RecordAnswer(ctx, f.userID, testCaseID, 5, models.SingleChoice("No"))
	require.ErrorIs(t, err, investigation.ErrQuestionOutOfRange)

	_, err = f.service.RecordAnswer(ctx, f.userID, testCaseID, -1, models.SingleChoice("No"))
	require.ErrorIs(t, err, investigation.ErrQuestionOutOfRange)
}

func TestService_PerfectRun(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.Start(ctx, f.userID, testCaseID)
	require.NoError(t, err)

	for i, answer := range correctAnswers() {
		progress, err := f.service.RecordAnswer(ctx, f.userID, testCaseID, i, answer)
		require.NoError(t, err, "answer question %d", i)
		require.Equal(t, i+1, progress.CurrentQuestion)
	}

	submitted, err := f.service.Submit(ctx, f.userID, testCaseID)
	require.NoError(t, err)
	require.Equal(t, models.ProgressStatusSubmitted, submitted.Status)

	outcome, err := f.service.Review(ctx, f.userID, testCaseID)
	require.NoError(t, err)

	require.Equal(t, 100, outcome.Result.Score)
	require.Equal(t, models.VerdictSolved, outcome.Result.Verdict)
	require.Equal(t, 150, outcome.Result.XPEarned, "full score earns the full reward")
	require.Len(t, outcome.Result.Feedback, 5)
	for i, feedback := range outcome.Result.Feedback {
		require.True(t, feedback.IsCorrect, "question %d should be correct", i)
	}

	require.Equal(t, models.ProgressStatusReviewed, outcome.Progress.Status)
	require.NotNil(t, outcome.Progress.CompletedAt)

	require.Equal(t, 1, outcome.Profile.CasesSolved)
	require.Equal(t, 100, outcome.Profile.AccuracyPercentage)
	require.Equal(t, 50*1+2*100, outcome.Profile.NormicyteScore)
	require.Equal(t, 150, outcome.Profile.TotalXP)
	require.Equal(t, 1, outcome.Profile.Streak.CurrentStreak)
	require.Len(t, outcome.Profile.WeeklyProgress, 1)
	require.Equal(t, 50, outcome.Profile.WeeklyProgress[0].ScoreChange)
	require.Equal(t, 150, outcome.Profile.WeeklyProgress[0].XPEarned)

	// A perfect first case unlocks the first-case and accuracy badges.
	badgeIDs := make([]string, len(outcome.NewBadges))
	for i, badge := range outcome.NewBadges {
		badgeIDs[i] = badge.BadgeID
	}
	require.ElementsMatch(t, []string{"first-case", "sharp-eye"}, badgeIDs)
}

func TestService_SkippedQuestionsGradeAsIncorrect(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.Start(ctx, f.userID, testCaseID)
	require.NoError(t, err)

	// Answer only the first three questions correctly and skip the rest.
	for i, answer := range correctAnswers()[:3] {
		_, err = f.service.RecordAnswer(ctx, f.userID, testCaseID, i, answer)
		require.NoError(t, err)
	}

	outcome, err := f.service.Review(ctx, f.userID, testCaseID)
	require.NoError(t, err)
	require.Equal(t, 60, outcome.Result.Score)
	require.Equal(t, models.VerdictPartiallySolved, outcome.Result.Verdict)
	require.Equal(t, 90, outcome.Result.XPEarned)
	require.False(t, outcome.Result.Feedback[3].IsCorrect, "skipped question must grade as incorrect")
	require.Equal(t, models.Unanswered(), outcome.Result.Feedback[3].UserAnswer)
}

func TestService_ReviewWinsOnce(t *testing.T) {
	t.Parallel()
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.Start(ctx, f.userID, testCaseID)
	require.NoError(t, err)
	_, err = f.service.RecordAnswer(ctx, f.userID, testCaseID, 0, correctAnswers()[0])
	require.NoError(t, err)

	outcome, err := f.service.Review(ctx, f.userID, testCaseID)
	require.NoError(t, err)
	require.Equal(t, 20, outcome.Result.Score)

	// The duplicate submit loses the guarded transition and must leave both
	// the grading outcome and the profile untouched.
	_, err = f.service.Review(ctx, f.userID, testCaseID)
	require.ErrorIs(t, err, investigation.ErrAlreadyReviewed)

	profile, err := f.profiles.Get(ctx, f.userID)
	require.NoError(t, err)
	require.Equal(t, outcome.Profile.TotalXP, profile.TotalXP, "XP must not double-apply")

	_, err = f.service.RecordAnswer(ctx, f.userID, testCaseID, 1, correctAnswers()[1])
	require.ErrorIs(t, err, investigation.ErrAlreadyReviewed)

	_, err = f.service.Submit(ctx, f.userID, testCaseID)
	require.ErrorIs(t, err, investigation.ErrAlreadyReviewed)
}
