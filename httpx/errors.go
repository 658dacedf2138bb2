package httpx

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/quizme/quizme/log"
	"github.com/quizme/quizme/validate"
)

// Every failure surfaces to the client as a structured descriptor, never
// a bare status line.
type errorBody struct {
	Error errorDescriptor `json:"error"`
}

type errorDescriptor struct {
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	QuestionID int    `json:"questionId,omitempty"`
}

func sendError(w http.ResponseWriter, r *http.Request, status int, kind, msg string, questionID int) {
	render.Status(r, status)
	render.JSON(w, r, errorBody{errorDescriptor{
		Kind:       kind,
		Message:    msg,
		QuestionID: questionID,
	}})
}

// Will log an error, and send a 500 with a generic descriptor.
// The underlying error stays in the log, never in the response.
func LogInternalError(w http.ResponseWriter, r *http.Request, code string, err error) {
	log.Errorf("%s: %s", code, err)
	sendError(w, r, http.StatusInternalServerError, "internal", "an internal server error occurred", 0)
}

// Will log a debug message, and send a 404 descriptor.
func LogNotFound(w http.ResponseWriter, r *http.Request, code string, id any) {
	log.Debugf("%s: not found (%v)", code, id)
	sendError(w, r, http.StatusNotFound, "not_found", fmt.Sprintf("no record found (%v)", id), 0)
}

// Will log an error code at the given level, and send a descriptor with
// the default status text as message.
func LogStatus(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string) {
	log.Log(level, code)
	sendError(w, r, status, code, http.StatusText(status), 0)
}

// Will log an error code and message at the given level, and send a
// descriptor carrying the formatted message.
func LogStatusMsg(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string, msg string, args ...any) {
	errMsg := fmt.Sprintf(msg, args...)
	log.Log(level, code+":", errMsg)
	sendError(w, r, status, code, errMsg, 0)
}

// LogValidationError renders a question/answer validation failure as 422,
// carrying the reason kind and the offending question id so clients can
// point at the exact answer that failed.
func LogValidationError(w http.ResponseWriter, r *http.Request, code string, err error) {
	var verr *validate.Error
	if !errors.As(err, &verr) {
		LogInternalError(w, r, code, err)
		return
	}
	log.Debugf("%s: %s", code, verr)
	sendError(w, r, http.StatusUnprocessableEntity, string(verr.Kind), verr.Message, verr.QuestionID)
}
