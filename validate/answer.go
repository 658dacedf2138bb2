package validate

import (
	"encoding/json"
	"fmt"

	"github.com/quizme/quizme/model"
)

// Answer checks a submitted response against its question's type.
// Number answers are not range-checked here: min/max bound the question
// definition only, not the submission.
func Answer(q model.Question, response json.RawMessage) error {
	if len(response) == 0 || !json.Valid(response) {
		return &Error{
			Kind:       InvalidResponse,
			QuestionID: q.ID,
			Message:    "response is not a valid JSON value",
		}
	}

	switch q.QuestionType {
	case model.TypeMultipleChoice:
		var choice string
		if err := json.Unmarshal(response, &choice); err != nil {
			return &Error{
				Kind:       InvalidResponse,
				QuestionID: q.ID,
				Message:    "multiple choice response must be a single option string",
			}
		}
		if !contains(q.Options, choice) {
			return &Error{
				Kind:       InvalidChoice,
				QuestionID: q.ID,
				Message:    fmt.Sprintf("%q is not one of the question's options", choice),
			}
		}

	case model.TypeCheckbox:
		var choices []string
		if err := json.Unmarshal(response, &choices); err != nil {
			return &Error{
				Kind:       InvalidResponse,
				QuestionID: q.ID,
				Message:    "checkbox response must be a list of option strings",
			}
		}
		for _, choice := range choices {
			if !contains(q.Options, choice) {
				return &Error{
					Kind:       InvalidChoice,
					QuestionID: q.ID,
					Message:    fmt.Sprintf("%q is not one of the question's options", choice),
				}
			}
		}

	case model.TypeText, model.TypeNumber:
		// any well-formed JSON value is fine
	}

	return nil
}

func contains(options []string, value string) bool {
	for _, opt := range options {
		if opt == value {
			return true
		}
	}
	return false
}
