package validate

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/quizme/quizme/model"
)

func TestAnswerMultipleChoice(t *testing.T) {
	q := model.Question{
		ID:           7,
		QuestionType: model.TypeMultipleChoice,
		Options:      []string{"Red", "Blue"},
	}

	if err := Answer(q, json.RawMessage(`"Blue"`)); err != nil {
		t.Fatalf("in-set option rejected: %v", err)
	}

	err := Answer(q, json.RawMessage(`"Green"`))
	if !errors.Is(err, &Error{Kind: InvalidChoice}) {
		t.Fatalf("expected %s, got %v", InvalidChoice, err)
	}
	var verr *Error
	if !errors.As(err, &verr) || verr.QuestionID != 7 {
		t.Fatalf("error should carry the offending question id, got %v", err)
	}

	// arrays are not a valid multiple choice response
	err = Answer(q, json.RawMessage(`["Red"]`))
	if !errors.Is(err, &Error{Kind: InvalidResponse}) {
		t.Fatalf("expected %s, got %v", InvalidResponse, err)
	}
}

func TestAnswerCheckbox(t *testing.T) {
	q := model.Question{
		ID:           3,
		QuestionType: model.TypeCheckbox,
		Options:      []string{"A", "B", "C"},
	}

	if err := Answer(q, json.RawMessage(`["A","C"]`)); err != nil {
		t.Fatalf("valid selection rejected: %v", err)
	}
	if err := Answer(q, json.RawMessage(`[]`)); err != nil {
		t.Fatalf("empty selection rejected: %v", err)
	}

	err := Answer(q, json.RawMessage(`["A","D"]`))
	if !errors.Is(err, &Error{Kind: InvalidChoice}) {
		t.Fatalf("foreign element should reject the whole answer, got %v", err)
	}

	err = Answer(q, json.RawMessage(`"A"`))
	if !errors.Is(err, &Error{Kind: InvalidResponse}) {
		t.Fatalf("non-array response should be rejected, got %v", err)
	}
}

func TestAnswerNumberAndText(t *testing.T) {
	number := model.Question{
		ID:           1,
		QuestionType: model.TypeNumber,
		MinValue:     intp(0),
		MaxValue:     intp(24),
	}
	// min/max bound the definition, not the submission
	if err := Answer(number, json.RawMessage(`30`)); err != nil {
		t.Fatalf("out-of-range number should still be accepted: %v", err)
	}

	text := model.Question{ID: 2, QuestionType: model.TypeText}
	if err := Answer(text, json.RawMessage(`"anything at all"`)); err != nil {
		t.Fatalf("text answer rejected: %v", err)
	}

	err := Answer(text, json.RawMessage(`{not json`))
	if !errors.Is(err, &Error{Kind: InvalidResponse}) {
		t.Fatalf("malformed JSON should be rejected, got %v", err)
	}
	err = Answer(text, nil)
	if !errors.Is(err, &Error{Kind: InvalidResponse}) {
		t.Fatalf("empty response should be rejected, got %v", err)
	}
}
