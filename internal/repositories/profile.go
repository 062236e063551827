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

// ProfileRepository persists the aggregated progression profile and the
// player's earned badges.
type ProfileRepository struct {
	dbs    *sqlite.Database
	logger *slog.Logger
}

func NewProfileRepository(dbs *sqlite.Database, logger *slog.Logger) *ProfileRepository {
	return &ProfileRepository{
		dbs:    dbs,
		logger: logger.With("source", "ProfileRepository"),
	}
}

type profileRow struct {
	UserID             []byte         `db:"user_id"`
	NormicyteScore     int            `db:"normicyte_score"`
	CasesSolved        int            `db:"cases_solved"`
	AccuracyPercentage int            `db:"accuracy_percentage"`
	TotalXP            int            `db:"total_xp"`
	CurrentStreak      int            `db:"current_streak"`
	LongestStreak      int            `db:"longest_streak"`
	LastActivityDate   sql.NullString `db:"last_activity_date"`
	WeeklyProgress     string         `db:"weekly_progress"`
}

// Get returns the stored profile, or a zero-valued one when the player has no
// reviewed cases yet. A missing row is not an error because every derived
// field recomputes from progress history on the next review anyway.
func (r *ProfileRepository) Get(ctx context.Context, userID []byte) (*models.Profile, error) {
	var row profileRow
	stmt := `SELECT user_id, normicyte_score, cases_solved, accuracy_percentage, total_xp,
       current_streak, longest_streak, last_activity_date, weekly_progress
FROM profiles WHERE user_id = ?`
	if err := r.dbs.ReadOnly.GetContext(ctx, &row, stmt, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.Profile{UserID: userID}, nil
		}
		return nil, errors.Wrap(err, "get profile")
	}
	profile := models.Profile{
		UserID:             row.UserID,
		NormicyteScore:     row.NormicyteScore,
		CasesSolved:        row.CasesSolved,
		AccuracyPercentage: row.AccuracyPercentage,
		TotalXP:            row.TotalXP,
		Streak: models.Streak{
			CurrentStreak: row.CurrentStreak,
			LongestStreak: row.LongestStreak,
		},
	}
	if row.LastActivityDate.Valid {
		lastActivity, err := time.Parse(time.RFC3339, row.LastActivityDate.String)
		if err != nil {
			return nil, errors.Wrap(err, "parse last_activity_date")
		}
		profile.Streak.LastActivityDate = &lastActivity
	}
	if err := json.Unmarshal([]byte(row.WeeklyProgress), &profile.WeeklyProgress); err != nil {
		return nil, errors.Wrap(err, "decode weekly_progress")
	}
	return &profile, nil
}

// Upsert writes the whole profile in one statement.
func (r *ProfileRepository) Upsert(ctx context.Context, profile *models.Profile) error {
	weekly := []byte("[]")
	if profile.WeeklyProgress != nil {
		var err error
		if weekly, err = json.Marshal(profile.WeeklyProgress); err != nil {
			return errors.Wrap(err, "encode weekly_progress")
		}
	}
	var lastActivity any
	if profile.Streak.LastActivityDate != nil {
		lastActivity = profile.Streak.LastActivityDate.UTC().Format(time.RFC3339Nano)
	}
	stmt := `INSERT INTO profiles (user_id, normicyte_score, cases_solved, accuracy_percentage, total_xp,
       current_streak, longest_streak, last_activity_date, weekly_progress)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
  normicyte_score = excluded.normicyte_score,
  cases_solved = excluded.cases_solved,
  accuracy_percentage = excluded.accuracy_percentage,
  total_xp = excluded.total_xp,
  current_streak = excluded.current_streak,
  longest_streak = excluded.longest_streak,
  last_activity_date = excluded.last_activity_date,
  weekly_progress = excluded.weekly_progress`
	_, err := r.dbs.ReadWrite.ExecContext(ctx, stmt,
		profile.UserID, profile.NormicyteScore, profile.CasesSolved, profile.AccuracyPercentage,
		profile.TotalXP, profile.Streak.CurrentStreak, profile.Streak.LongestStreak,
		lastActivity, string(weekly))
	if err != nil {
		return errors.Wrap(err, "upsert profile")
	}
	return nil
}

// EarnedBadges lists the player's badges in award order.
func (r *ProfileRepository) EarnedBadges(ctx context.Context, userID []byte) ([]models.EarnedBadge, error) {
	type earnedRow struct {
		BadgeID  string `db:"badge_id"`
		EarnedAt string `db:"earned_at"`
	}
	var rows []earnedRow
	stmt := `SELECT badge_id, earned_at FROM earned_badges WHERE user_id = ? ORDER BY earned_at, badge_id`
	if err := r.dbs.ReadOnly.SelectContext(ctx, &rows, stmt, userID); err != nil {
		return nil, errors.Wrap(err, "list earned badges")
	}
	earned := make([]models.EarnedBadge, len(rows))
	for i, row := range rows {
		earnedAt, err := time.Parse(time.RFC3339, row.EarnedAt)
		if err != nil {
			return nil, errors.Wrap(err, "parse earned_at", slog.String("badge_id", row.BadgeID))
		}
		earned[i] = models.EarnedBadge{
			BadgeID:  row.BadgeID,
			EarnedAt: earnedAt,
		}
	}
	return earned, nil
}

// AwardBadges inserts the batch of newly earned badges. INSERT OR IGNORE keeps
// the award idempotent under replayed reviews.
func (r *ProfileRepository) AwardBadges(ctx context.Context, userID []byte, badges []models.EarnedBadge) error {
	stmt := `INSERT OR IGNORE INTO earned_badges (user_id, badge_id, earned_at) VALUES (?, ?, ?)`
	for _, badge := range badges {
		_, err := r.dbs.ReadWrite.ExecContext(ctx, stmt,
			userID, badge.BadgeID, badge.EarnedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return errors.Wrap(err, "award badge", slog.String("badge_id", badge.BadgeID))
		}
	}
	return nil
}
