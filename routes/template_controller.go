package routes

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/quizme/quizme/app"
	"github.com/quizme/quizme/httpx"
	"github.com/quizme/quizme/log"
	"github.com/quizme/quizme/model"
	"github.com/quizme/quizme/routes/middlewares"
	"github.com/quizme/quizme/stats"
	"github.com/quizme/quizme/validate"
)

var valid = validator.New()

func CreateTemplate(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middlewares.CurrentUserID(r)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "request.user_id")
			return
		}

		template := model.Template{}
		err = render.DecodeJSON(r.Body, &template)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if err = valid.Struct(template); err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.validate_body",
				"one or more items necessary to create the template are missing")
			return
		}

		for _, q := range template.Questions {
			if err = validate.Question(q); err != nil {
				httpx.LogValidationError(w, r, "create_template.validate_question", err)
				return
			}
		}
		normalizeTemplate(&template)

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, r, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		var templateID int
		err = tx.QueryRowContext(r.Context(), `
			INSERT INTO template (title, description, access_type, category, created_by)
			VALUES (?, ?, ?, ?, ?)
			RETURNING id`,
			template.Title,
			template.Description,
			template.AccessType,
			template.Category,
			userID,
		).Scan(&templateID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_template", err)
			return
		}

		err = insertQuestions(r.Context(), tx, templateID, template.Questions)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_template.questions", err)
			return
		}
		err = attachTags(r.Context(), tx, templateID, template.Tags)
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_template.tags", err)
			return
		}

		if template.AccessType == model.AccessPrivate {
			err = grantAccess(r.Context(), tx, templateID, template.AuthorizedUsers)
			if err != nil {
				httpx.LogInternalError(w, r, "db.insert_template.access", err)
				return
			}
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, r, "db.insert_template.commit", err)
			return
		}

		template.ID = templateID
		template.CreatedBy = userID
		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, template)
	}
}

func ListTemplates(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listTemplates(app, w, r, "", nil)
	}
}

func ListMyTemplates(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := middlewares.CurrentUserID(r)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusUnauthorized, log.DebugLevel, "request.user_id")
			return
		}
		listTemplates(app, w, r, "WHERE t.created_by = ?", []any{userID})
	}
}

func listTemplates(app app.App, w http.ResponseWriter, r *http.Request, where string, args []any) {
	rows, err := app.QueryContext(r.Context(), `
		SELECT t.id, t.title, t.description, t.access_type, t.category, t.created_by, u.name
		FROM template t
		INNER JOIN user u ON (u.id = t.created_by) `+where+`
		ORDER BY t.id`,
		args...,
	)
	if err != nil {
		httpx.LogInternalError(w, r, "db.get_templates", err)
		return
	}
	defer rows.Close()

	templates := []model.Template{}
	for rows.Next() {
		t := model.Template{}
		err = rows.Scan(&t.ID, &t.Title, &t.Description, &t.AccessType, &t.Category, &t.CreatedBy, &t.Author)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_templates.scan", err)
			return
		}
		templates = append(templates, t)
	}

	if len(templates) == 0 {
		httpx.LogNotFound(w, r, "get_templates", "no templates")
		return
	}

	for i := range templates {
		templates[i].Questions, err = loadQuestions(r.Context(), app.DB, templates[i].ID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_templates.questions", err)
			return
		}
		templates[i].Tags, err = loadTags(r.Context(), app.DB, templates[i].ID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_templates.tags", err)
			return
		}
	}

	render.JSON(w, r, map[string]any{
		"templates": templates,
	})
}

func GetTemplateById(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templateID, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		t := model.Template{}
		err = app.QueryRowContext(r.Context(), `
			SELECT t.id, t.title, t.description, t.access_type, t.category, t.created_by, u.name
			FROM template t
			INNER JOIN user u ON (u.id = t.created_by)
			WHERE t.id = ?`,
			templateID,
		).Scan(&t.ID, &t.Title, &t.Description, &t.AccessType, &t.Category, &t.CreatedBy, &t.Author)
		if err == sql.ErrNoRows {
			httpx.LogNotFound(w, r, "get_template", templateID)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_template", err)
			return
		}

		t.Questions, err = loadQuestions(r.Context(), app.DB, templateID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_template.questions", err)
			return
		}
		t.Tags, err = loadTags(r.Context(), app.DB, templateID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_template.tags", err)
			return
		}

		render.JSON(w, r, t)
	}
}

func UpdateTemplate(app app.App) http.HandlerFunc {
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

		template := model.Template{}
		err = render.DecodeJSON(r.Body, &template)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if err = valid.Struct(template); err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.validate_body",
				"one or more items necessary to update the template are missing")
			return
		}

		for _, q := range template.Questions {
			if err = validate.Question(q); err != nil {
				httpx.LogValidationError(w, r, "update_template.validate_question", err)
				return
			}
		}
		normalizeTemplate(&template)

		tx, err := app.BeginTx(r.Context(), nil)
		if err != nil {
			httpx.LogInternalError(w, r, "db.begin_tx", err)
			return
		}
		defer tx.Rollback()

		// owner-scoped: a non-owner sees the same 404 as a missing id
		res, err := tx.ExecContext(r.Context(), `
			UPDATE template
			SET title = ?, description = ?, access_type = ?, category = ?
			WHERE id = ? AND created_by = ?`,
			template.Title,
			template.Description,
			template.AccessType,
			template.Category,
			templateID,
			userID,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_template", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_template.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, r, "update_template", templateID)
			return
		}

		// full question-set replace
		_, err = tx.ExecContext(r.Context(), "DELETE FROM question WHERE template_id = ?", templateID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_template.delete_questions", err)
			return
		}
		err = insertQuestions(r.Context(), tx, templateID, template.Questions)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_template.questions", err)
			return
		}

		_, err = tx.ExecContext(r.Context(), "DELETE FROM template_tag WHERE template_id = ?", templateID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_template.delete_tags", err)
			return
		}
		err = attachTags(r.Context(), tx, templateID, template.Tags)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_template.tags", err)
			return
		}

		err = tx.Commit()
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_template.commit", err)
			return
		}

		template.ID = templateID
		template.CreatedBy = userID
		render.JSON(w, r, template)
	}
}

func DeleteTemplate(app app.App) http.HandlerFunc {
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

		var createdBy int
		err = app.QueryRowContext(r.Context(),
			"SELECT created_by FROM template WHERE id = ?", templateID,
		).Scan(&createdBy)
		if err == sql.ErrNoRows {
			httpx.LogNotFound(w, r, "delete_template", templateID)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_template.load", err)
			return
		}

		// creator-or-admin rule
		if createdBy != userID && !middlewares.IsAdmin(r) {
			httpx.LogStatus(w, r, http.StatusForbidden, log.DebugLevel, "delete_template.forbidden")
			return
		}

		// questions, forms, tag and access links all cascade
		_, err = app.ExecContext(r.Context(), "DELETE FROM template WHERE id = ?", templateID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_template", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func GetTemplateStatistics(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templateID, err := strconv.Atoi(chi.URLParam(r, "id"))
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.get_url_param.id")
			return
		}

		var totalForms int
		err = app.QueryRowContext(r.Context(),
			"SELECT count(*) FROM form WHERE template_id = ?", templateID,
		).Scan(&totalForms)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_statistics.count_forms", err)
			return
		}

		questions, err := loadQuestions(r.Context(), app.DB, templateID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_statistics.questions", err)
			return
		}

		// id order keeps the first-seen tie-break deterministic
		rows, err := app.QueryContext(r.Context(), `
			SELECT a.question_id, a.response
			FROM answer a
			INNER JOIN question q ON (q.id = a.question_id)
			WHERE q.template_id = ?
			ORDER BY a.id`,
			templateID,
		)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_statistics.answers", err)
			return
		}
		defer rows.Close()

		answers := []model.Answer{}
		for rows.Next() {
			a := model.Answer{}
			var response string
			err = rows.Scan(&a.QuestionID, &response)
			if err != nil {
				httpx.LogInternalError(w, r, "db.get_statistics.answers.scan", err)
				return
			}
			a.Response = json.RawMessage(response)
			answers = append(answers, a)
		}

		report, err := stats.Compute(questions, answers, totalForms)
		if err == stats.ErrNoSubmissions {
			httpx.LogNotFound(w, r, "get_statistics", templateID)
			return
		}
		if err != nil {
			httpx.LogInternalError(w, r, "get_statistics.compute", err)
			return
		}

		render.JSON(w, r, report)
	}
}

func normalizeTemplate(template *model.Template) {
	if template.AccessType == "" {
		template.AccessType = model.AccessPublic
	}
	category := "other"
	for _, c := range model.Categories {
		if template.Category == c {
			category = c
			break
		}
	}
	template.Category = category
}

func insertQuestions(ctx context.Context, tx *sql.Tx, templateID int, questions []model.Question) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO question (template_id, question_text, question_type, options, min_value, max_value)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, q := range questions {
		var optionsJson []byte
		if q.Options != nil {
			optionsJson, err = json.Marshal(q.Options)
			if err != nil {
				return err
			}
		}
		_, err = stmt.ExecContext(ctx, templateID, q.QuestionText, q.QuestionType, string(optionsJson), q.MinValue, q.MaxValue)
		if err != nil {
			return err
		}
	}
	return nil
}

func attachTags(ctx context.Context, tx *sql.Tx, templateID int, tags []string) error {
	for _, name := range tags {
		var tagID int
		err := tx.QueryRowContext(ctx, `
			INSERT INTO tag (name) VALUES (?)
			ON CONFLICT (name) DO UPDATE SET name = name
			RETURNING id`,
			name,
		).Scan(&tagID)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO template_tag (template_id, tag_id) VALUES (?, ?)",
			templateID, tagID)
		if err != nil {
			return err
		}
	}
	return nil
}

func grantAccess(ctx context.Context, tx *sql.Tx, templateID int, userIDs []int) error {
	for _, userID := range userIDs {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO template_access (template_id, user_id) VALUES (?, ?)",
			templateID, userID)
		if err != nil {
			return err
		}
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadQuestions(ctx context.Context, db queryer, templateID int) ([]model.Question, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, template_id, question_text, question_type, options, min_value, max_value
		FROM question
		WHERE template_id = ?
		ORDER BY id`,
		templateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []model.Question{}
	for rows.Next() {
		q := model.Question{}
		var opts string
		err = rows.Scan(&q.ID, &q.TemplateID, &q.QuestionText, &q.QuestionType, &opts, &q.MinValue, &q.MaxValue)
		if err != nil {
			return nil, err
		}
		if opts != "" {
			err = json.Unmarshal([]byte(opts), &q.Options)
			if err != nil {
				return nil, err
			}
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func loadTags(ctx context.Context, db queryer, templateID int) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT g.name
		FROM tag g
		INNER JOIN template_tag tg ON (tg.tag_id = g.id)
		WHERE tg.template_id = ?
		ORDER BY g.name`,
		templateID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var name string
		if err = rows.Scan(&name); err != nil {
			return nil, err
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}
