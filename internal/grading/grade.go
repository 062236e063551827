// Package grading scores a finished investigation against its case's answer
// keys. It has no dependencies beyond the domain models and performs no I/O so
// that every rule is testable in isolation.
package grading

import (
	"log/slog"
	"math"
	"strings"

	"github.com/normicyte/normicyte/internal/errors"
	"github.com/normicyte/normicyte/internal/models"
)

// Verdict boundaries are inclusive towards the better bucket: a score of
// exactly 80 is solved and exactly 50 is partially solved.
const (
	solvedThreshold          = 80
	partiallySolvedThreshold = 50
)

// Effort credit handed to the weekly progress buckets. Coarser than the
// accuracy-based score on purpose; these are game-balance constants with no
// deeper rationale.
const (
	scoreChangeSolved  = 50
	scoreChangePartial = 30
	scoreChangeAttempt = 10
	percentageMax      = 100
)

/// ErrNoQuestions signals a catalog authoring bug: grading a case with zero
// questions would divide by zero and is rejected loudly.
var ErrNoQuestions = errors.NewSentinel("case has no questions")

// Result is the outcome of grading one case exactly once.
type Result struct {
	// Score is the rounded percentage of correctly answered questions, 0-100.
	Score int
	// Verdict buckets the score into solved, partially_solved, or needs_improvement.
	Verdict models.Verdict
	// XPEarned is proportional to the score, not pass/fail.
	XPEarned int
	// Feedback holds one entry per question in display order.
	Feedback []models.QuestionFeedback
}

// Grade scores the responses against the questions' answer keys.
//
// Unanswered questions are always graded as incorrect, never as errors. The
// function itself is not idempotent-safe: callers must ensure it runs exactly
// once per case per user since XP accumulation downstream is an increment.
func Grade(questions []models.Question, responses map[int]models.Answer, xpReward int) (Result, error) {
	if len(questions) == 0 {
		return Result{}, errors.Wrap(ErrNoQuestions, "grade case")
	}

	feedback := make([]models.QuestionFeedback, len(questions))
	correctCount := 0
	for i, question := range questions {
		if err := question.Validate(); err != nil {
			return Result{}, errors.Wrap(err, "grade case", slog.Int("question_index", i))
		}
		answer := responses[i]
		correct := isCorrect(question, answer)
		if correct {
			correctCount++
		}
		feedback[i] = models.QuestionFeedback{
			QuestionID:    question.ID,
			UserAnswer:    answer,
			CorrectAnswer: question.CorrectAnswer,
			IsCorrect:     correct,
			ExplanationEN: question.ExplanationEN,
			ExplanationFI: question.ExplanationFI,
		}
	}

	score := int(math.Round(percentageMax * float64(correctCount) / float64(len(questions))))
	return Result{
		Score:    score,
		Verdict:  verdict(score),
		XPEarned: int(math.Round(float64(xpReward) * float64(score) / percentageMax)),
		Feedback: feedback,
	}, nil
}

// ScoreChange maps a graded score to the coarse effort credit accumulated in
// the weekly progress buckets.
func ScoreChange(score int) int {
	switch {
	case score >= solvedThreshold:
		return scoreChangeSolved
	case score >= partiallySolvedThreshold:
		return scoreChangePartial
	default:
		return scoreChangeAttempt
	}
}

func verdict(score int) models.Verdict {
	switch {
	case score >= solvedThreshold:
		return models.VerdictSolved
	case score >= partiallySolvedThreshold:
		return models.VerdictPartiallySolved
	default:
		return models.VerdictNeedsImprovement
	}
}

func isCorrect(question models.Question, answer models.Answer) bool {
	if answer.IsEmpty() {
		return false
	}
	switch question.QuestionType {
	case models.QuestionTypeMultipleChoice, models.QuestionTypeYesNoReasoning:
		return answer.Kind == models.AnswerKindSingleChoice &&
			answer.Value == question.CorrectAnswer.Option
	case models.QuestionTypeMultiSelect:
		return answer.Kind == models.AnswerKindMultiChoice &&
			sameSet(answer.Values, question.CorrectAnswer.Options)
	case models.QuestionTypeShortAnswer:
		return answer.Kind == models.AnswerKindFreeText &&
			containsKeyword(answer.Value, question.CorrectAnswer.Keywords)
	default:
		return false
	}
}

// sameSet reports whether the selections equal the correct set: same
// cardinality and same members, order-independent. Duplicate selections of the
// same option do not count twice.
func sameSet(selected, correct []string) bool {
	selectedSet := make(map[string]struct{}, len(selected))
	for _, option := range selected {
		selectedSet[option] = struct{}{}
	}
	if len(selectedSet) != len(correct) {
		return false
	}
	for _, option := range correct {
		if _, ok := selectedSet[option]; !ok {
			return false
		}
	}
	return true
}

// containsKeyword reports whether at least one keyword occurs in the response,
// case-insensitively.
func containsKeyword(response string, keywords []string) bool {
	lowered := strings.ToLower(response)
	for _, keyword := range keywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
