// Package investigation orchestrates a case investigation from start to
// verdict: catalog reads, durable per-answer state, grading, and folding the
// outcome into the player's profile. It is the single place where the
// grade-once rule is enforced.
package investigation

import (
	"context"
	"log/slog"
	"time"

	"github.com/normicyte/normicyte/internal/catalog"
	"github.com/normicyte/normicyte/internal/errors"
	"github.com/normicyte/normicyte/internal/grading"
	"github.com/normicyte/normicyte/internal/models"
	"github.com/normicyte/normicyte/internal/progression"
	"github.com/normicyte/normicyte/internal/repositories"
)

var (
	// ErrAlreadyReviewed is returned for any mutation attempted after the
	// terminal reviewed transition, including a duplicate submit.
	ErrAlreadyReviewed = errors.NewSentinel("case already reviewed")
	// ErrEmptyAnswer rejects advancing past a question without content.
	// Skipping stays possible by never recording an answer at that index.
	ErrEmptyAnswer = errors.NewSentinel("answer is empty")
	// ErrQuestionOutOfRange rejects answer indices outside the case's questions.
	ErrQuestionOutOfRange = errors.NewSentinel("question index out of range")
)

// Service ties the catalog, the progress state machine, the grading engine,
// and the progression aggregator together.
type Service struct {
	catalog    *catalog.Catalog
	progress   *repositories.ProgressRepository
	profiles   *repositories.ProfileRepository
	activities *repositories.ActivityRepository
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(
	c *catalog.Catalog,
	progress *repositories.ProgressRepository,
	profiles *repositories.ProfileRepository,
	activities *repositories.ActivityRepository,
	logger *slog.Logger,
) *Service {
	return &Service{
		catalog:    c,
		progress:   progress,
		profiles:   profiles,
		activities: activities,
		logger:     logger.With("source", "investigation.Service"),
		now:        time.Now,
	}
}

// Start opens an investigation at the first question with empty responses.
// Starting an already opened case returns the existing record untouched so
// that a player can always resume where they left off.
func (s *Service) Start(ctx context.Context, userID []byte, caseID string) (*models.CaseProgress, error) {
	if _, err := s.catalog.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	return s.progress.Start(ctx, userID, caseID)
}

// Get returns the current investigation state.
func (s *Service) Get(ctx context.Context, userID []byte, caseID string) (*models.CaseProgress, error) {
	return s.progress.Get(ctx, userID, caseID)
}

// History returns every investigation the player has touched.
func (s *Service) History(ctx context.Context, userID []byte) ([]models.CaseProgress, error) {
	return s.progress.ListForUser(ctx, userID)
}

// RecordAnswer stores the answer for the question at index and advances the
// cursor past it. The whole responses document and the new cursor persist as
// one write; on failure nothing is considered committed and the caller
// retries from the unchanged stored state.
func (s *Service) RecordAnswer(
	ctx context.Context,
	userID []byte,
	caseID string,
	index int,
	answer models.Answer,
) (*models.CaseProgress, error) {
	if answer.IsEmpty() {
		return nil, errors.Wrap(ErrEmptyAnswer, "record answer",
			slog.String("case_id", caseID), slog.Int("index", index))
	}
	questions, err := s.catalog.CaseQuestions(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(questions) {
		return nil, errors.Wrap(ErrQuestionOutOfRange, "record answer",
			slog.String("case_id", caseID), slog.Int("index", index))
	}

	progress, err := s.progress.Get(ctx, userID, caseID)
	if err != nil {
		return nil, err
	}
	if progress.Status == models.ProgressStatusReviewed {
		return nil, errors.Wrap(ErrAlreadyReviewed, "record answer", slog.String("case_id", caseID))
	}

	progress.Responses[index] = answer
	cursor := index + 1
	if cursor > len(questions) {
		cursor = len(questions)
	}
	progress.CurrentQuestion = cursor

	err = s.progress.SaveResponses(ctx, userID, caseID, progress.Responses, progress.CurrentQuestion)
	if errors.Is(err, repositories.ErrProgressReviewed) {
		return nil, errors.Wrap(ErrAlreadyReviewed, "record answer", slog.String("case_id", caseID))
	}
	if err != nil {
		return nil, err
	}
	return progress, nil
}

// Submit moves the investigation to the review step where the player sees
// which questions are answered and which are skipped before grading commits.
func (s *Service) Submit(ctx context.Context, userID []byte, caseID string) (*models.CaseProgress, error) {
	progress, err := s.progress.Get(ctx, userID, caseID)
	if err != nil {
		return nil, err
	}
	if progress.Status == models.ProgressStatusReviewed {
		return nil, errors.Wrap(ErrAlreadyReviewed, "submit", slog.String("case_id", caseID))
	}
	if err = s.progress.MarkSubmitted(ctx, userID, caseID); err != nil {
		return nil, err
	}
	progress.Status = models.ProgressStatusSubmitted
	return progress, nil
}

// Outcome is everything that changed when a case was graded.
type Outcome struct {
	Progress  *models.CaseProgress
	Result    grading.Result
	Profile   models.Profile
	NewBadges []models.EarnedBadge
}

// Review grades the case exactly once and folds the result into the player's
// profile. The reviewed transition is a status-guarded conditional write: under
// duplicate submits or concurrent tabs exactly one caller grades and earns XP,
// every other caller gets ErrAlreadyReviewed.
func (s *Service) Review(ctx context.Context, userID []byte, caseID string) (*Outcome, error) {
	caseRecord, err := s.catalog.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	questions, err := s.catalog.CaseQuestions(ctx, caseID)
	if err != nil {
		return nil, err
	}
	progress, err := s.progress.Get(ctx, userID, caseID)
	if err != nil {
		return nil, err
	}
	if progress.Status == models.ProgressStatusReviewed {
		return nil, errors.Wrap(ErrAlreadyReviewed, "review", slog.String("case_id", caseID))
	}

	result, err := grading.Grade(questions, progress.Responses, caseRecord.XPReward)
	if err != nil {
		return nil, err
	}

	now := s.now()
	err = s.progress.FinishReview(ctx, userID, caseID, result.Score, result.Verdict, result.Feedback, now)
	if errors.Is(err, repositories.ErrProgressReviewed) {
		// Lost the race. The winner's grading stands and XP must not
		// double-apply, so stop here without touching the profile.
		return nil, errors.Wrap(ErrAlreadyReviewed, "review", slog.String("case_id", caseID))
	}
	if err != nil {
		return nil, err
	}

	outcome, err := s.applyProgression(ctx, userID, caseRecord, result, now)
	if err != nil {
		return nil, err
	}
	outcome.Progress, err = s.progress.Get(ctx, userID, caseID)
	if err != nil {
		return nil, err
	}

	s.logger.LogAttrs(ctx, slog.LevelInfo, "case reviewed",
		slog.String("case_id", caseID),
		slog.Int("score", result.Score),
		slog.String("verdict", string(result.Verdict)),
		slog.Int("xp_earned", result.XPEarned),
		slog.Int("new_badges", len(outcome.NewBadges)),
	)
	return outcome, nil
}

func (s *Service) applyProgression(
	ctx context.Context,
	userID []byte,
	caseRecord *models.Case,
	result grading.Result,
	now time.Time,
) (*Outcome, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	history, err := s.progress.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	definitions, err := s.catalog.BadgeDefinitions(ctx)
	if err != nil {
		return nil, err
	}
	earned, err := s.profiles.EarnedBadges(ctx, userID)
	if err != nil {
		return nil, err
	}

	update := progression.Apply(
		*profile, history, result.XPEarned, grading.ScoreChange(result.Score), definitions, earned, now)

	if err = s.profiles.Upsert(ctx, &update.Profile); err != nil {
		return nil, err
	}
	if err = s.profiles.AwardBadges(ctx, userID, update.NewBadges); err != nil {
		return nil, err
	}
	err = s.activities.Append(ctx, userID, models.Activity{
		ActivityType: "case_completed",
		TitleEN:      caseRecord.TitleEN,
		TitleFI:      caseRecord.TitleFI,
		XPEarned:     result.XPEarned,
		CreatedAt:    now,
	})
	if err != nil {
		return nil, err
	}

	return &Outcome{Result: result, Profile: update.Profile, NewBadges: update.NewBadges}, nil
}
