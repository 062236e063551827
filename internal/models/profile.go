package models

import (
	"time"
)

// Streak counts consecutive calendar days with at least one graded case.
type Streak struct {
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	LastActivityDate *time.Time `json:"last_activity_date"`
}

// WeeklyBucket accumulates one ISO week of activity. WeekStart is the
// Sunday-aligned start date of the week in UTC.
type WeeklyBucket struct {
	WeekStart      time.Time `json:"week_start"`
	ScoreChange    int       `json:"score_change"`
	CasesCompleted int       `json:"cases_completed"`
	XPEarned       int       `json:"xp_earned"`
}

// Profile holds a player's durable derived progression state.
//
// NormicyteScore, CasesSolved, and AccuracyPercentage are recomputed wholesale
// from the full completed-case history on every update. TotalXP is only ever
// incremented, never recomputed.
type Profile struct {
	UserID             []byte
	NormicyteScore     int
	CasesSolved        int
	AccuracyPercentage int
	TotalXP            int
	Streak             Streak
	WeeklyProgress     []WeeklyBucket
}

// BadgeRequirement names the profile metric a badge threshold is tested against.
type BadgeRequirement string

const (
	BadgeRequirementCasesSolved  BadgeRequirement = "cases_solved"
	BadgeRequirementAccuracy     BadgeRequirement = "accuracy"
	BadgeRequirementStreakDays   BadgeRequirement = "streak_days"
	BadgeRequirementScoreReached BadgeRequirement = "score_reached"
)

// BadgeDefinition is a one-time achievement unlocked when a profile metric
// reaches RequirementValue. Definitions live in the case catalog.
type BadgeDefinition struct {
	ID               string           `db:"id"`
	NameEN           string           `db:"name_en"`
	NameFI           string           `db:"name_fi"`
	Icon             string           `db:"icon"`
	RequirementType  BadgeRequirement `db:"requirement_type"`
	RequirementValue int              `db:"requirement_value"`
}

// EarnedBadge records that a player unlocked a badge. A badge is earned at
// most once per player.
type EarnedBadge struct {
	BadgeID  string    `db:"badge_id"`
	EarnedAt time.Time `db:"earned_at"`
}

// Activity is one immutable entry in the player's activity log, written once
// per completed case and never read back by the engine.
type Activity struct {
	ActivityType string
	TitleEN      string
	TitleFI      string
	XPEarned     int
	CreatedAt    time.Time
}
