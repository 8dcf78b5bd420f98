package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/device-gatekeeper/internal/http/response"
	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/sl"
)

// AdminChecker проверяет административную роль пользователя.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userUID string) (bool, error)
}

// AdminMiddleware пропускает дальше только администраторов. Роль проверяется
// по базе, а не по claim в токене: отзыв роли действует немедленно.
func AdminMiddleware(checker AdminChecker, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userUID, ok := r.Context().Value(UserUID).(string)
			if !ok || userUID == "" {
				log.Error("user identification missing")
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("user identification missing"))
				return
			}

			isAdmin, err := checker.IsAdmin(r.Context(), userUID)
			if err != nil {
				log.Error("failed to check admin role", sl.Err(err))
				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, response.Error("internal service error"))
				return
			}
			if !isAdmin {
				log.Warn("admin access denied", slog.String("user_uid", userUID))
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, response.Error("admin role required"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
