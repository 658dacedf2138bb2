package routes

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/oauth"

	"github.com/quizme/quizme/app"
	"github.com/quizme/quizme/config"
	"github.com/quizme/quizme/database"
	"github.com/quizme/quizme/model"
)

// newTestApp opens a fresh in-memory database through the normal Open
// path, so tests run against the real schema migrations. cache=shared
// keeps the database alive across the pool's connections.
func newTestApp(t *testing.T) app.App {
	t.Helper()

	cfg := config.Config{
		DBUrl:       fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")),
		TokenSecret: "test-secret",
		TokenTTL:    time.Minute,
	}
	db, err := database.Open(cfg)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mustExec(t, db, `
		INSERT INTO user (id, name, email, password_hash)
		VALUES (1, 'Alice', 'alice@example.com', 'x'),
			(2, 'Bob', 'bob@example.com', 'x')`)

	return app.App{
		DB:     db,
		Config: cfg,
	}
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

// testRouter wires the authenticated routes with the given claims
// pre-injected, standing in for the bearer token middleware.
func testRouter(a app.App, claims map[string]string) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := context.WithValue(req.Context(), oauth.ClaimsContext, claims)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})

	r.Post("/templates", CreateTemplate(a))
	r.Get("/templates", ListTemplates(a))
	r.Get("/templates/mine", ListMyTemplates(a))
	r.Get(`/templates/{id:^\d+$}`, GetTemplateById(a))
	r.Put(`/templates/{id:^\d+$}`, UpdateTemplate(a))
	r.Delete(`/templates/{id:^\d+$}`, DeleteTemplate(a))
	r.Get(`/templates/{id:^\d+$}/statistics`, GetTemplateStatistics(a))
	r.Post(`/templates/{id:^\d+$}/forms`, SubmitForm(a))
	r.Get(`/templates/{id:^\d+$}/forms`, GetFormsByTemplate(a))
	r.Get("/forms", ListAllForms(a))
	r.Get("/forms/mine", ListMyForms(a))
	r.Get(`/forms/{id:^\d+$}`, GetFormById(a))
	r.Put(`/forms/{id:^\d+$}`, UpdateForm(a))
	r.Delete(`/forms/{id:^\d+$}`, DeleteForm(a))
	r.Post("/users", CreateUser(a))
	r.Get("/users", ListUsers(a))

	return r
}

func userClaims(userID int) map[string]string {
	return map[string]string{"user_id": fmt.Sprint(userID), "roles": "user"}
}

func adminClaims(userID int) map[string]string {
	return map[string]string{"user_id": fmt.Sprint(userID), "roles": "admin"}
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("content-type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	return out
}

// createTestTemplate makes a template through the real handler and
// returns it re-read from the database, with question ids populated.
func createTestTemplate(t *testing.T, a app.App, template model.Template) model.Template {
	t.Helper()

	h := testRouter(a, userClaims(1))
	w := doJSON(t, h, http.MethodPost, "/templates", template)
	if w.Code != http.StatusCreated {
		t.Fatalf("create template: status %d, body %s", w.Code, w.Body.String())
	}
	created := decodeBody[model.Template](t, w)

	questions, err := loadQuestions(context.Background(), a.DB, created.ID)
	if err != nil {
		t.Fatalf("load questions: %v", err)
	}
	created.Questions = questions
	return created
}

func countRows(t *testing.T, a app.App, table, where string, args ...any) int {
	t.Helper()
	var n int
	query := "SELECT count(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	if err := a.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
