package repositories

import (
	"context"
	"log/slog"
	"time"

	"github.com/normicyte/normicyte/internal/errors"
	"github.com/normicyte/normicyte/internal/models"
	"github.com/normicyte/normicyte/internal/sqlite"
)

// ActivityRepository keeps the append-only activity feed shown on the
// profile page.
type ActivityRepository struct {
	dbs    *sqlite.Database
	logger *slog.Logger
}

func NewActivityRepository(dbs *sqlite.Database, logger *slog.Logger) *ActivityRepository {
	return &ActivityRepository{
		dbs:    dbs,
		logger: logger.With("source", "ActivityRepository"),
	}
}

// Append records one activity entry for the player.
func (r *ActivityRepository) Append(ctx context.Context, userID []byte, activity models.Activity) error {
	createdAt := activity.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	stmt := `INSERT INTO activity_log (user_id, activity_type, title_en, title_fi, xp_earned, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	_, err := r.dbs.ReadWrite.ExecContext(ctx, stmt,
		userID, activity.ActivityType, activity.TitleEN, activity.TitleFI, activity.XPEarned,
		createdAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return errors.Wrap(err, "append activity", slog.String("activity_type", activity.ActivityType))
	}
	return nil
}

// Recent returns the newest entries first, capped at limit.
func (r *ActivityRepository) Recent(ctx context.Context, userID []byte, limit int) ([]models.Activity, error) {
	type activityRow struct {
		ActivityType string `db:"activity_type"`
		TitleEN      string `db:"title_en"`
		TitleFI      string `db:"title_fi"`
		XPEarned     int    `db:"xp_earned"`
		CreatedAt    string `db:"created_at"`
	}
	var rows []activityRow
	stmt := `SELECT activity_type, title_en, title_fi, xp_earned, created_at
FROM activity_log WHERE user_id = ? ORDER BY id DESC LIMIT ?`
	if err := r.dbs.ReadOnly.SelectContext(ctx, &rows, stmt, userID, limit); err != nil {
		return nil, errors.Wrap(err, "list activity")
	}
	activities := make([]models.Activity, len(rows))
	for i, row := range rows {
		createdAt, err := time.Parse(time.RFC3339, row.CreatedAt)
		if err != nil {
			return nil, errors.Wrap(err, "parse created_at")
		}
		activities[i] = models.Activity{
			ActivityType: row.ActivityType,
			TitleEN:      row.TitleEN,
			TitleFI:      row.TitleFI,
			XPEarned:     row.XPEarned,
			CreatedAt:    createdAt,
		}
	}
	return activities, nil
}
