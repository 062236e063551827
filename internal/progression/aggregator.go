// Package progression folds a graded case into the player's durable profile:
// lifetime accuracy, cumulative normicyte score, streak continuation, weekly
// buckets, and badge unlocks.
package progression

import (
	"math"
	"time"

	"github.com/normicyte/normicyte/internal/models"
)

// The normicyte score is always a pure function of solved cases and accuracy.
// The multipliers are game-balance constants carried over as-is.
const (
	scorePerSolvedCase    = 50
	scorePerAccuracyPoint = 2
)

// weeklyWindow caps the rolling weekly progress buckets, oldest dropped first.
const weeklyWindow = 12

// Totals are the wholesale-recomputed counters of a profile.
type Totals struct {
	CasesSolved        int
	AccuracyPercentage int
}

// Update is the result of applying one graded case to a profile.
type Update struct {
	Profile   models.Profile
	NewBadges []models.EarnedBadge
}

// Apply folds one graded case into the profile. The full progress history is
// passed in explicitly so that the recomputation has no hidden dependence on
// ambient state. Badge evaluation is idempotent: re-running with an unchanged
// profile and earned set awards nothing new.
func Apply(
	profile models.Profile,
	history []models.CaseProgress,
	xpEarned int,
	scoreChange int,
	definitions []models.BadgeDefinition,
	earned []models.EarnedBadge,
	now time.Time,
) Update {
	totals := RecomputeTotals(history)
	profile.CasesSolved = totals.CasesSolved
	profile.AccuracyPercentage = totals.AccuracyPercentage
	profile.NormicyteScore = NormicyteScore(totals)
	// TotalXP is the only incremental field; everything above is rederived.
	profile.TotalXP += xpEarned
	profile.Streak = UpdateStreak(profile.Streak, now)
	profile.WeeklyProgress = MergeWeeklyBucket(profile.WeeklyProgress, WeekStart(now), scoreChange, xpEarned)

	return Update{
		Profile:   profile,
		NewBadges: EvaluateBadges(profile, definitions, earned, now),
	}
}

// RecomputeTotals rescans the full progress history and rederives the solved
// count and mean accuracy. Records that are still in progress are ignored;
// completed records without a score yet do not contribute to the mean.
func RecomputeTotals(history []models.CaseProgress) Totals {
	var (
		solved   int
		scoreSum int
		scored   int
	)
	for _, progress := range history {
		if !progress.Completed() {
			continue
		}
		solved++
		if progress.Score != nil {
			scoreSum += *progress.Score
			scored++
		}
	}
	accuracy := 0
	if scored > 0 {
		accuracy = int(math.Round(float64(scoreSum) / float64(scored)))
	}
	return Totals{CasesSolved: solved, AccuracyPercentage: accuracy}
}

// NormicyteScore derives the headline score from the recomputed totals. It is
// recomputed wholesale on every case completion, never incremented, which
// makes it idempotent under re-derivation.
func NormicyteScore(totals Totals) int {
	return scorePerSolvedCase*totals.CasesSolved + scorePerAccuracyPoint*totals.AccuracyPercentage
}

// UpdateStreak continues, holds, or resets the daily streak and always stamps
// the activity date. Days are compared as calendar dates in UTC.
func UpdateStreak(streak models.Streak, now time.Time) models.Streak {
	today := truncateToDate(now)
	if streak.LastActivityDate != nil {
		last := truncateToDate(*streak.LastActivityDate)
		switch {
		case last.Equal(today):
			// Repeat activity on the same day changes neither streak field.
			stamped := streak
			stamped.LastActivityDate = &today
			return stamped
		case last.Equal(today.AddDate(0, 0, -1)):
			streak.CurrentStreak++
		default:
			streak.CurrentStreak = 1
		}
	} else {
		streak.CurrentStreak = 1
	}
	if streak.CurrentStreak > streak.LongestStreak {
		streak.LongestStreak = streak.CurrentStreak
	}
	streak.LastActivityDate = &today
	return streak
}

// WeekStart returns the Sunday-aligned start date of the week containing t, in UTC.
func WeekStart(t time.Time) time.Time {
	date := truncateToDate(t)
	return date.AddDate(0, 0, -int(date.Weekday()))
}

// MergeWeeklyBucket accumulates activity into the bucket for weekStart,
// appending a new bucket when the week has none yet, and truncates the window
// to the most recent buckets.
func MergeWeeklyBucket(
	buckets []models.WeeklyBucket,
	weekStart time.Time,
	scoreChange int,
	xpEarned int,
) []models.WeeklyBucket {
	merged := false
	for i := range buckets {
		if buckets[i].WeekStart.Equal(weekStart) {
			buckets[i].ScoreChange += scoreChange
			buckets[i].CasesCompleted++
			buckets[i].XPEarned += xpEarned
			merged = true
			break
		}
	}
	if !merged {
		buckets = append(buckets, models.WeeklyBucket{
			WeekStart:      weekStart,
			ScoreChange:    scoreChange,
			CasesCompleted: 1,
			XPEarned:       xpEarned,
		})
	}
	if len(buckets) > weeklyWindow {
		buckets = buckets[len(buckets)-weeklyWindow:]
	}
	return buckets
}

// EvaluateBadges awards every not-yet-earned badge whose requirement the
// profile now meets, in one batch, each stamped at evaluation time.
func EvaluateBadges(
	profile models.Profile,
	definitions []models.BadgeDefinition,
	earned []models.EarnedBadge,
	now time.Time,
) []models.EarnedBadge {
	earnedSet := make(map[string]struct{}, len(earned))
	for _, badge := range earned {
		earnedSet[badge.BadgeID] = struct{}{}
	}

	var newBadges []models.EarnedBadge
	for _, definition := range definitions {
		if _, ok := earnedSet[definition.ID]; ok {
			continue
		}
		if badgeMetric(profile, definition.RequirementType) >= definition.RequirementValue {
			newBadges = append(newBadges, models.EarnedBadge{
				BadgeID:  definition.ID,
				EarnedAt: now,
			})
		}
	}
	return newBadges
}

func badgeMetric(profile models.Profile, requirement models.BadgeRequirement) int {
	switch requirement {
	case models.BadgeRequirementCasesSolved:
		return profile.CasesSolved
	case models.BadgeRequirementAccuracy:
		return profile.AccuracyPercentage
	case models.BadgeRequirementStreakDays:
		return profile.Streak.CurrentStreak
	case models.BadgeRequirementScoreReached:
		return profile.NormicyteScore
	default:
		// Unknown requirement types never qualify.
		return -1
	}
}

func truncateToDate(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
