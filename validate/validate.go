// Package validate holds the pure validation rules for question
// definitions and submitted answers. Nothing here touches the database:
// callers load whatever rows they need and pass them in.
package validate

import "fmt"

type Kind string

const (
	MissingField     Kind = "missing_field"
	UnknownType      Kind = "unknown_type"
	DuplicateOptions Kind = "duplicate_options"
	MissingOptions   Kind = "missing_options"
	InvalidRange     Kind = "invalid_range"
	InvalidChoice    Kind = "invalid_choice"
	InvalidResponse  Kind = "invalid_response"

	// InvalidQuestionID is raised by the submission workflow when an
	// answer references a question outside its template's question set.
	InvalidQuestionID Kind = "invalid_question_id"
)

// Error reports why a question definition or an answer was rejected.
// QuestionID is zero for definition-time errors, where the question has
// no id yet.
type Error struct {
	Kind       Kind
	QuestionID int
	Message    string
}

func (e *Error) Error() string {
	if e.QuestionID != 0 {
		return fmt.Sprintf("%s (question %d): %s", e.Kind, e.QuestionID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches on Kind only, so callers can use errors.Is with a bare
// &Error{Kind: ...} sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}
