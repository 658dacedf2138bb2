package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/quizme/quizme/app"
	"github.com/quizme/quizme/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.Logger, middleware.Recoverer)

	root.Mount("/api", apiRouter(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))
	api.Post("/users", CreateUser(app))

	api.Group(func(r chi.Router) {
		r.Use(middlewares.Authenticated(app.Config))

		// CRUD templates
		r.Post("/templates", CreateTemplate(app))
		r.Get("/templates", ListTemplates(app))
		r.Get("/templates/mine", ListMyTemplates(app))
		r.Get(`/templates/{id:^\d+$}`, GetTemplateById(app))
		r.Put(`/templates/{id:^\d+$}`, UpdateTemplate(app))
		r.Delete(`/templates/{id:^\d+$}`, DeleteTemplate(app))
		r.Get(`/templates/{id:^\d+$}/statistics`, GetTemplateStatistics(app))

		// form submission and retrieval
		r.Post(`/templates/{id:^\d+$}/forms`, SubmitForm(app))
		r.Get(`/templates/{id:^\d+$}/forms`, GetFormsByTemplate(app))
		r.Get("/forms/mine", ListMyForms(app))
		r.Get(`/forms/{id:^\d+$}`, GetFormById(app))
		r.Put(`/forms/{id:^\d+$}`, UpdateForm(app))
		r.Delete(`/forms/{id:^\d+$}`, DeleteForm(app))

		r.Group(func(r chi.Router) {
			r.Use(middlewares.Admin)

			r.Get("/forms", ListAllForms(app))
			r.Get("/users", ListUsers(app))
			r.Post("/users/block", BlockUsers(app))
			r.Post("/users/unblock", UnblockUsers(app))
			r.Post("/users/privilege", PrivilegeUser(app))
			r.Post("/users/unprivilege", UnprivilegeUser(app))
			r.Delete("/users", DeleteUsers(app))
		})
	})

	return api
}
