package routes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"github.com/quizme/quizme/app"
	"github.com/quizme/quizme/httpx"
	"github.com/quizme/quizme/log"
	"github.com/quizme/quizme/model"
)

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type userIdsRequest struct {
	IDs []int `json:"ids" validate:"required,min=1"`
}

type userIdRequest struct {
	UserID int `json:"userId" validate:"required"`
}

func CreateUser(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := registerRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if err = valid.Struct(req); err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.validate_body",
				"the request body is missing one or more items")
			return
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			httpx.LogInternalError(w, r, "create_user.hash", err)
			return
		}

		user := model.User{Name: req.Name, Email: req.Email, Status: "active", RoleID: model.RoleUser}
		err = app.QueryRowContext(r.Context(), `
			INSERT INTO user (name, email, password_hash)
			VALUES (?, ?, ?)
			RETURNING id`,
			req.Name,
			req.Email,
			string(hash),
		).Scan(&user.ID)
		if err != nil {
			if isUniqueViolation(err) {
				httpx.LogStatusMsg(w, r, http.StatusConflict, log.DebugLevel, "create_user.duplicate",
					"user with this email already exists")
				return
			}
			httpx.LogInternalError(w, r, "db.insert_user", err)
			return
		}

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, user)
	}
}

func ListUsers(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := app.QueryContext(r.Context(), `
			SELECT id, name, email, status, role_id
			FROM user
			ORDER BY id`)
		if err != nil {
			httpx.LogInternalError(w, r, "db.get_users", err)
			return
		}
		defer rows.Close()

		users := []model.User{}
		for rows.Next() {
			u := model.User{}
			err = rows.Scan(&u.ID, &u.Name, &u.Email, &u.Status, &u.RoleID)
			if err != nil {
				httpx.LogInternalError(w, r, "db.get_users.scan", err)
				return
			}
			users = append(users, u)
		}

		if len(users) == 0 {
			httpx.LogNotFound(w, r, "get_users", "no users")
			return
		}

		render.JSON(w, r, map[string]any{
			"users": users,
		})
	}
}

func BlockUsers(app app.App) http.HandlerFunc {
	return setUserStatus(app, "blocked")
}

func UnblockUsers(app app.App) http.HandlerFunc {
	return setUserStatus(app, "active")
}

func setUserStatus(app app.App, status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := userIdsRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if err = valid.Struct(req); err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.validate_body",
				"no user ids were provided")
			return
		}

		query, args := expandIn("UPDATE user SET status = ? WHERE id IN", req.IDs, status)
		_, err = app.ExecContext(r.Context(), query, args...)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_user.status", err)
			return
		}

		render.JSON(w, r, map[string]any{
			"message": "users " + status,
		})
	}
}

func PrivilegeUser(app app.App) http.HandlerFunc {
	return setUserRole(app, model.RoleAdmin)
}

func UnprivilegeUser(app app.App) http.HandlerFunc {
	return setUserRole(app, model.RoleUser)
}

func setUserRole(app app.App, roleID int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := userIdRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if err = valid.Struct(req); err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.validate_body",
				"no user id was provided")
			return
		}

		res, err := app.ExecContext(r.Context(),
			"UPDATE user SET role_id = ? WHERE id = ?", roleID, req.UserID)
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_user.role", err)
			return
		}
		n, err := res.RowsAffected()
		if err != nil {
			httpx.LogInternalError(w, r, "db.update_user.role.verify", err)
			return
		}
		if n < 1 {
			httpx.LogNotFound(w, r, "update_user.role", req.UserID)
			return
		}

		render.JSON(w, r, map[string]any{
			"message": "user role updated",
		})
	}
}

func DeleteUsers(app app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req := userIdsRequest{}
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			httpx.LogStatus(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body")
			return
		}
		if err = valid.Struct(req); err != nil {
			httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.validate_body",
				"no user ids were provided")
			return
		}

		query, args := expandIn("DELETE FROM user WHERE id IN", req.IDs)
		_, err = app.ExecContext(r.Context(), query, args...)
		if err != nil {
			httpx.LogInternalError(w, r, "db.delete_users", err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// expandIn builds "<prefix> (?, ?, ...)" with leading args before the
// id placeholders.
func expandIn(prefix string, ids []int, leading ...any) (string, []any) {
	placeholders := make([]string, len(ids))
	args := append([]any{}, leading...)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	return prefix + " (" + strings.Join(placeholders, ", ") + ")", args
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
