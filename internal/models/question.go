package models

import (
	"encoding/json"
	"log/slog"

	"github.com/normicyte/normicyte/internal/errors"
)

// QuestionType selects the grading rule for a question.
type QuestionType string

const (
	// QuestionTypeMultipleChoice has a single correct option.
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	// QuestionTypeYesNoReasoning is graded like multiple choice against a single option.
	QuestionTypeYesNoReasoning QuestionType = "yes_no_reasoning"
	// QuestionTypeMultiSelect requires the selected set to equal the correct set exactly.
	QuestionTypeMultiSelect QuestionType = "multi_select"
	// QuestionTypeShortAnswer requires the free-text response to contain at least one keyword.
	QuestionTypeShortAnswer QuestionType = "short_answer"
)

// ErrMalformedAnswerKey signals a catalog authoring bug: the answer key shape
// does not match the declared question type.
var ErrMalformedAnswerKey = errors.NewSentinel("answer key does not match question type")

// AnswerKey is the correct answer for a question. Exactly one of the fields is
// populated depending on the question type: Option for multiple_choice and
// yes_no_reasoning, Options for multi_select, Keywords for short_answer.
type AnswerKey struct {
	Option   string   `json:"option,omitempty" yaml:"option,omitempty"`
	Options  []string `json:"options,omitempty" yaml:"options,omitempty"`
	Keywords []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// Question belongs to exactly one case. DisplayOrder defines the sequential
// unlock order within the case.
type Question struct {
	ID            string       `db:"id"`
	CaseID        string       `db:"case_id"`
	QuestionType  QuestionType `db:"question_type"`
	PromptEN      string       `db:"prompt_en"`
	PromptFI      string       `db:"prompt_fi"`
	Options       []string     `db:"-"`
	CorrectAnswer AnswerKey    `db:"-"`
	ExplanationEN string       `db:"explanation_en"`
	ExplanationFI string       `db:"explanation_fi"`
	DisplayOrder  int64        `db:"display_order"`
}

// Validate checks that the answer key shape matches the declared question type.
// A mismatch is a data-integrity error that must fail loudly rather than be
// graded around.
func (q Question) Validate() error {
	ok := false
	switch q.QuestionType {
	case QuestionTypeMultipleChoice, QuestionTypeYesNoReasoning:
		ok = q.CorrectAnswer.Option != ""
	case QuestionTypeMultiSelect:
		ok = len(q.CorrectAnswer.Options) > 0
	case QuestionTypeShortAnswer:
		ok = len(q.CorrectAnswer.Keywords) > 0
	}
	if !ok {
		return errors.Wrap(ErrMalformedAnswerKey, "validate question",
			slog.String("question_id", q.ID),
			slog.String("question_type", string(q.QuestionType)))
	}
	return nil
}

// AnswerKind discriminates the Answer variant.
type AnswerKind string

const (
	AnswerKindUnanswered   AnswerKind = "unanswered"
	AnswerKindSingleChoice AnswerKind = "single"
	AnswerKindMultiChoice  AnswerKind = "multi"
	AnswerKindFreeText     AnswerKind = "text"
)

// Answer is what the player entered for one question. It is a tagged union:
// a single selected option, a set of selected options, a free-text response,
// or unanswered. The zero value is unanswered.
type Answer struct {
	Kind   AnswerKind `json:"kind"`
	Value  string     `json:"value,omitempty"`
	Values []string   `json:"values,omitempty"`
}

func SingleChoice(option string) Answer {
	return Answer{Kind: AnswerKindSingleChoice, Value: option}
}

func MultiChoice(options []string) Answer {
	return Answer{Kind: AnswerKindMultiChoice, Values: options}
}

func FreeText(text string) Answer {
	return Answer{Kind: AnswerKindFreeText, Value: text}
}

func Unanswered() Answer {
	return Answer{Kind: AnswerKindUnanswered}
}

// IsEmpty reports whether the answer carries no content. Empty answers must
// not advance the investigation cursor.
func (a Answer) IsEmpty() bool {
	switch a.Kind {
	case AnswerKindSingleChoice, AnswerKindFreeText:
		return a.Value == ""
	case AnswerKindMultiChoice:
		return len(a.Values) == 0
	default:
		return true
	}
}

// UnmarshalJSON fills in the unanswered kind for zero-valued answers so that
// documents written by older clients stay readable.
func (a *Answer) UnmarshalJSON(data []byte) error {
	type answer Answer
	var decoded answer
	if err := json.Unmarshal(data, &decoded); err != nil {
		return errors.Wrap(err, "unmarshal answer")
	}
	if decoded.Kind == "" {
		decoded.Kind = AnswerKindUnanswered
	}
	*a = Answer(decoded)
	return nil
}
