package routes

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/quizme/quizme/model"
)

func TestCreateTemplate(t *testing.T) {
	a := newTestApp(t)
	h := testRouter(a, userClaims(1))

	w := doJSON(t, h, http.MethodPost, "/templates", model.Template{
		Title:       "Tech quiz",
		Description: "Basic questions",
		Category:    "technology",
		Tags:        []string{"tech", "fun"},
		Questions: []model.Question{
			{QuestionText: "Favorite language?", QuestionType: model.TypeMultipleChoice, Options: []string{"Go", "Rust"}},
		},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	created := decodeBody[model.Template](t, w)
	if created.ID == 0 || created.CreatedBy != 1 {
		t.Fatalf("unexpected template: %+v", created)
	}

	if n := countRows(t, a, "question", "template_id = ?", created.ID); n != 1 {
		t.Fatalf("expected 1 question row, got %d", n)
	}
	if n := countRows(t, a, "tag", ""); n != 2 {
		t.Fatalf("expected 2 tags, got %d", n)
	}
}

func TestCreateTemplateRejectsBadQuestions(t *testing.T) {
	a := newTestApp(t)
	h := testRouter(a, userClaims(1))

	tests := []struct {
		name string
		q    model.Question
	}{
		{"duplicate options", model.Question{QuestionText: "Pick", QuestionType: model.TypeMultipleChoice, Options: []string{"A", "A"}}},
		{"unknown type", model.Question{QuestionText: "Rate", QuestionType: "stars"}},
		{"missing text", model.Question{QuestionType: model.TypeText}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, h, http.MethodPost, "/templates", model.Template{
				Title:       "Bad",
				Description: "Should not persist",
				Questions:   []model.Question{tt.q},
			})
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status %d, body %s", w.Code, w.Body.String())
			}
		})
	}

	if n := countRows(t, a, "template", ""); n != 0 {
		t.Fatalf("expected no templates persisted, got %d", n)
	}
}

func TestCreateTemplateRequiresTitleAndDescription(t *testing.T) {
	a := newTestApp(t)
	h := testRouter(a, userClaims(1))

	w := doJSON(t, h, http.MethodPost, "/templates", model.Template{Title: "No description"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
}

func TestUpdateTemplateReplacesQuestions(t *testing.T) {
	a := newTestApp(t)
	template := createTestTemplate(t, a, surveyTemplate())
	h := testRouter(a, userClaims(1))

	w := doJSON(t, h, http.MethodPut, fmt.Sprintf("/templates/%d", template.ID), model.Template{
		Title:       "City survey v2",
		Description: "Updated",
		Questions: []model.Question{
			{QuestionText: "Favorite country?", QuestionType: model.TypeText},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}

	if n := countRows(t, a, "question", "template_id = ?", template.ID); n != 1 {
		t.Fatalf("expected question set replaced, got %d rows", n)
	}
	var text string
	err := a.QueryRow("SELECT question_text FROM question WHERE template_id = ?", template.ID).Scan(&text)
	if err != nil {
		t.Fatalf("read back question: %v", err)
	}
	if text != "Favorite country?" {
		t.Fatalf("expected new question, got %q", text)
	}
}

func TestUpdateTemplateNotOwner(t *testing.T) {
	a := newTestApp(t)
	template := createTestTemplate(t, a, surveyTemplate())

	// owner is user 1; user 2 sees the same 404 as a missing template
	h := testRouter(a, userClaims(2))
	w := doJSON(t, h, http.MethodPut, fmt.Sprintf("/templates/%d", template.ID), model.Template{
		Title:       "Hijacked",
		Description: "Nope",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
}

func TestDeleteTemplate(t *testing.T) {
	a := newTestApp(t)
	template := createTestTemplate(t, a, surveyTemplate())

	// non-owner without admin role is refused
	h := testRouter(a, userClaims(2))
	w := doJSON(t, h, http.MethodDelete, fmt.Sprintf("/templates/%d", template.ID), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}

	// admin may delete anyone's template; questions cascade
	h = testRouter(a, adminClaims(2))
	w = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/templates/%d", template.ID), nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	if n := countRows(t, a, "question", "template_id = ?", template.ID); n != 0 {
		t.Fatalf("expected questions to cascade, %d left", n)
	}

	w = doJSON(t, h, http.MethodDelete, fmt.Sprintf("/templates/%d", template.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second delete: status %d", w.Code)
	}
}

func TestTemplateStatistics(t *testing.T) {
	a := newTestApp(t)
	template := createTestTemplate(t, a, surveyTemplate())
	h := testRouter(a, userClaims(2))

	submit := func(city, color string) {
		t.Helper()
		w := doJSON(t, h, http.MethodPost, fmt.Sprintf("/templates/%d/forms", template.ID), formRequest{
			Answers: []model.Answer{
				{QuestionID: template.Questions[0].ID, Response: json.RawMessage(`"` + city + `"`)},
				{QuestionID: template.Questions[1].ID, Response: json.RawMessage(`"` + color + `"`)},
			},
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("submit: status %d, body %s", w.Code, w.Body.String())
		}
	}
	submit("Paris", "Red")
	submit("Paris", "Red")
	submit("Lyon", "Blue")

	w := doJSON(t, h, http.MethodGet, fmt.Sprintf("/templates/%d/statistics", template.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	report := decodeBody[model.StatsReport](t, w)

	if report.TotalForms != 3 {
		t.Fatalf("expected 3 forms, got %d", report.TotalForms)
	}
	if report.TotalAnswers != 6 {
		t.Fatalf("expected 6 answers, got %d", report.TotalAnswers)
	}
	if report.MostRepeatedAnswer != "Paris" {
		t.Fatalf("expected Paris, got %q", report.MostRepeatedAnswer)
	}
	if report.MostChosenAnswer != "Red" {
		t.Fatalf("expected Red, got %q", report.MostChosenAnswer)
	}
	if report.OptionPercentages["Red"] != "66.67%" || report.OptionPercentages["Blue"] != "33.33%" {
		t.Fatalf("unexpected percentages: %+v", report.OptionPercentages)
	}
}

func TestTemplateStatisticsNoSubmissions(t *testing.T) {
	a := newTestApp(t)
	template := createTestTemplate(t, a, surveyTemplate())
	h := testRouter(a, userClaims(1))

	w := doJSON(t, h, http.MethodGet, fmt.Sprintf("/templates/%d/statistics", template.ID), nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a template without forms, got %d", w.Code)
	}
}

func TestGetTemplateById(t *testing.T) {
	a := newTestApp(t)
	template := createTestTemplate(t, a, surveyTemplate())
	h := testRouter(a, userClaims(1))

	w := doJSON(t, h, http.MethodGet, fmt.Sprintf("/templates/%d", template.ID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
	got := decodeBody[model.Template](t, w)
	if got.Author != "Alice" {
		t.Fatalf("expected author name, got %q", got.Author)
	}
	if len(got.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(got.Questions))
	}

	w = doJSON(t, h, http.MethodGet, "/templates/999", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d for missing template", w.Code)
	}
}

func TestListTemplatesEmptyIs404(t *testing.T) {
	a := newTestApp(t)
	h := testRouter(a, userClaims(1))

	w := doJSON(t, h, http.MethodGet, "/templates", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	a := newTestApp(t)
	h := testRouter(a, nil)

	req := registerRequest{Name: "Carol", Email: "carol@example.com", Password: "hunter22"}
	w := doJSON(t, h, http.MethodPost, "/users", req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d, body %s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodPost, "/users", req)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate email, got %d", w.Code)
	}
}
