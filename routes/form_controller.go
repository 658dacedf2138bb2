package routes

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/quizme/quizme/app"
	"github.com/quizme/quizme/httpx"
	"github.com/quizme/quizme/log"
	"github.com/quizme/quizme/model"
	"github.com/quizme/quizme/routes/middlewares"
	"github.com/quizme/quizme/validate"
)

type formRequest struct {
	Answers []model.Answer `json:"answers"`
}

// SubmitForm creates a form and all its answers as one atomic unit.
// Every answer is validated against the template's live question set
// inside the transaction; any failure rolls back everything, including
// the form row inserted before the answers were checked.
func SubmitForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templateID, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}
		userID, err := middlewares.CurrentUserID(r)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "request.user_id")
			return
		}

		submission := formRequest{}
		err = render.DecodeJSON(r.Body, &submission)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, r, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		var exists bool
		err = tx.QueryRowContext(r.Context(),
			"SELECT 1 FROM template WHERE id = ?", templateID,
		).Scan(&exists)
		if err == sql.ErrNoRows {
			httpx.LogNotFound(w, r, "submit_form.template", templateID)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_form.template", err)
			return
		}

		questions, err := loadQuestions(r.Context(), tx, templateID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_form.questions", err)
			return
		}
		questionByID := make(map[int]model.Question, len(questions))
		for _, q := range questions {
			questionByID[q.ID] = q
		}

		var formID int
		err = tx.QueryRowContext(r.Context(), `
			INSERT INTO form (user_id, template_id, submission_time)
			VALUES (?, ?, ?)
			RETURNING id`,
			userID,
			templateID,
			time.Now(),
		).Scan(&formID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_form", err)
			return
		}

		stmt, err := tx.PrepareContext(r.Context(), `
			INSERT INTO answer (form_id, question_id, response)
			VALUES (?, ?, ?)`)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_form.answers.prepare", err)
			return
		}
		defer stmt.Close()

		for _, a := range submission.Answers {
			question, ok := questionByID[a.QuestionID]
			if !ok {
				httpx.LogValidationError(w, r, "submit_form.resolve_question", &validate.Error{
					Kind:       validate.InvalidQuestionID,
					QuestionID: a.QuestionID,
					Message:    fmt.Sprintf("invalid questionId: %d", a.QuestionID),
				})
				return
			}
			if err = validate.Answer(question, a.Response); err != nil {
				httpx.LogValidationError(w, r, "submit_form.validate_answer", err)
				return
			}
			_, err = stmt.ExecContext(r.Context(), formID, a.QuestionID, string(a.Response))
			if err != nil {
				httpx.LogInternalError(w, r, "db.insert_form.answers.insert", err)
				return
			}
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_form.commit", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, map[string]any{
			"id": formID,
		})
	}
}

func GetFormsByTemplate(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templateID, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}
		listForms(app, w, r, "WHERE f.template_id = ?", []any{templateID}, false)
	}
}

func ListMyForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middlewares.CurrentUserID(r)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "request.user_id")
			return
		}
		listForms(app, w, r, "WHERE f.user_id = ?", []any{userID}, false)
	}
}

// ListAllForms is the admin view: unlike the scoped queries, an empty
// result set is a valid response, not a 404. Results are paginated with
// ?page and ?page_size query parameters.
func ListAllForms(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
		if pageSize < 1 || pageSize > 200 {
			pageSize = 50
		}
		listForms(app, w, r, "", []any{pageSize, (page - 1) * pageSize}, true)
	}
}

func listForms(app app.App, w http.ResponseWriter, r *http.Request, where string, args []any, allowEmpty bool) {
	limit := ""
	if allowEmpty {
		limit = " LIMIT ? OFFSET ?"
	}
	rows, err := app.QueryContext(r.Context(), `
		SELECT f.id, f.user_id, f.template_id, f.submission_time, u.name, t.title
		FROM form f
		INNER JOIN user u ON (u.id = f.user_id)
		INNER JOIN template t ON (t.id = f.template_id) `+where+`
		ORDER BY f.id`+limit,
		args...,
	)
	if err != nil {
		httpx.LogInternalError(w, r, "db.get_forms", err)
		return
	}
	defer rows.Close()

	forms := []model.Form{}
	for rows.Next() {
		f := model.Form{}
		err = rows.Scan(&f.ID, &f.UserID, &f.TemplateID, &f.SubmissionTime, &f.User, &f.Template)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_forms.scan", err)
			return
		}
		forms = append(forms, f)
	}

	if len(forms) == 0 && !allowEmpty {
		httpx.LogNotFound(w, r, "get_forms", "no forms")
		return
	}

	for i := range forms {
		forms[i].Answers, err = loadAnswers(r.Context(), app.DB, forms[i].ID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_forms.answers", err)
			return
		}
	}

	render.JSON(w, r, map[string]any{
		"forms": forms,
	})
}

func GetFormById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		f := model.Form{}
		err = app.QueryRowContext(r.Context(), `
			SELECT f.id, f.user_id, f.template_id, f.submission_time, u.name, t.title
			FROM form f
			INNER JOIN user u ON (u.id = f.user_id)
			INNER JOIN template t ON (t.id = f.template_id)
			WHERE f.id = ?`,
			formID,
		).Scan(&f.ID, &f.UserID, &f.TemplateID, &f.SubmissionTime, &f.User, &f.Template)
		if err == sql.ErrNoRows {
			httpx.LogNotFound(w, r, "get_form", formID)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_form", err)
			return
		}

		f.Answers, err = loadAnswers(r.Context(), app.DB, formID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_form.answers", err)
			return
		}

		render.JSON(w, r, f)
	}
}

// UpdateForm replaces the response of existing answer rows, one per
// (form, question) pair. The batch runs in a single transaction: an
// unknown question id rolls back every update in the call.
func UpdateForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		update := formRequest{}
		err = render.DecodeJSON(r.Body, &update)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, r, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		var exists bool
		err = tx.QueryRowContext(r.Context(),
			"SELECT 1 FROM form WHERE id = ?", formID,
		).Scan(&exists)
		if err == sql.ErrNoRows {
			httpx.LogNotFound(w, r, "update_form", formID)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_form.load", err)
			return
		}

		for _, a := range update.Answers {
			res, err := tx.ExecContext(r.Context(), `
				UPDATE answer
				SET response = ?
				WHERE form_id = ? AND question_id = ?`,
				string(a.Response),
				formID,
				a.QuestionID,
			)
			if err != nil {
				httpx.LogInternalError(w, r, "db.update_form.answer", err)
				return
			}
			n, err := res.RowsAffected()
			if err != nil {
				httpx.LogInternalError(w, r, "db.update_form.answer.verify", err)
				return
			}
			if n < 1 {
				httpx.LogStatusMsg(w, r, http.StatusNotFound, log.DebugLevel, "update_form.answer_not_found",
					"no answer found for question %d in this form", a.QuestionID)
				return
			}
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_form.commit", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"message": "form updated successfully",
		})
	}
}

func DeleteForm(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		formID, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		// answers cascade with the form row
		res, err := app.ExecContext(r.Context(), "DELETE FROM form WHERE id = ?", formID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_form", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_form.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, r, "delete_form", formID)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func loadAnswers(ctx context.Context, db queryer, formID int) ([]model.Answer, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, question_id, response
		FROM answer
		WHERE form_id = ?
		ORDER BY id`,
		formID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := []model.Answer{}
	for rows.Next() {
		a := model.Answer{FormID: formID}
		var response string
		err = rows.Scan(&a.ID, &a.QuestionID, &response)
		if err != nil {
			return nil, err
		}
		a.Response = json.RawMessage(response)
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
