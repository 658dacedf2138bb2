package validate

import (
	"fmt"

	"github.com/quizme/quizme/model"
)

var allowedTypes = []string{
	model.TypeText,
	model.TypeMultipleChoice,
	model.TypeCheckbox,
	model.TypeNumber,
}

// Question checks a proposed question definition against the structural
// rules of its type. Rules run in order, first failure wins.
func Question(q model.Question) error {
	if q.QuestionText == "" || q.QuestionType == "" {
		return &Error{
			Kind:    MissingField,
			Message: "each question must have content and type defined",
		}
	}

	known := false
	for _, t := range allowedTypes {
		if q.QuestionType == t {
			known = true
			break
		}
	}
	if !known {
		return &Error{
			Kind:    UnknownType,
			Message: fmt.Sprintf("invalid question type %q", q.QuestionType),
		}
	}

	switch q.QuestionType {
	case model.TypeMultipleChoice:
		if len(q.Options) == 0 {
			return &Error{
				Kind:    MissingOptions,
				Message: "multiple choice questions must have a list of options",
			}
		}
		seen := make(map[string]bool, len(q.Options))
		for _, opt := range q.Options {
			if seen[opt] {
				return &Error{
					Kind:    DuplicateOptions,
					Message: "multiple choice options must be unique",
				}
			}
			seen[opt] = true
		}

	case model.TypeCheckbox:
		// duplicates allowed here
		if len(q.Options) == 0 {
			return &Error{
				Kind:    MissingOptions,
				Message: "checkbox questions must have a list of options",
			}
		}

	case model.TypeNumber:
		if q.MinValue != nil && q.MaxValue != nil && *q.MinValue >= *q.MaxValue {
			return &Error{
				Kind:    InvalidRange,
				Message: "minimum value must be less than maximum value",
			}
		}

	case model.TypeText:
		// no extra shape constraints
	}

	return nil
}
