package middlewares

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/oauth"
	"github.com/quizme/quizme/config"
)

// Authenticated rejects requests without a valid bearer token and puts
// the token's claims on the request context.
func Authenticated(cfg config.Config) func(http.Handler) http.Handler {
	return oauth.Authorize(cfg.TokenSecret, nil)
}

// Admin requires the 'admin' role claim. Must run after Authenticated.
func Admin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := r.Context().Value(oauth.ClaimsContext).(map[string]string)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		isAdmin := false
		if rolesClaim, ok := claims["roles"]; ok {
			for _, role := range strings.Split(rolesClaim, ",") {
				if role == "admin" {
					isAdmin = true
					break
				}
			}
		}

		if !isAdmin {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// CurrentUserID reads the authenticated user's id from the token claims.
func CurrentUserID(r *http.Request) (int, error) {
	claims, ok := r.Context().Value(oauth.ClaimsContext).(map[string]string)
	if !ok {
		return 0, errors.New("no claims on request context")
	}
	id, err := strconv.Atoi(claims["user_id"])
	if err != nil {
		return 0, errors.New("missing user_id claim")
	}
	return id, nil
}

// IsAdmin reports whether the current token carries the admin role.
func IsAdmin(r *http.Request) bool {
	claims, ok := r.Context().Value(oauth.ClaimsContext).(map[string]string)
	if !ok {
		return false
	}
	for _, role := range strings.Split(claims["roles"], ",") {
		if role == "admin" {
			return true
		}
	}
	return false
}
