// Package validate реализует HTTP-обработчик проверки действительности сессии.
//
// Устройства опрашивают этот маршрут периодически: отрицательный ответ
// означает, что сессия была вытеснена и устройство должно выйти.
package validate

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/device-gatekeeper/internal/http/middlewarectx"
	"github.com/magabrotheeeer/device-gatekeeper/internal/http/response"
	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/sessionid"
)

// Handler обрабатывает HTTP-запросы на проверку сессии.
type Handler struct {
	log     *slog.Logger // Логгер для записи операций и ошибок
	service Service      // Сервис жизненного цикла сессий
}

// Service описывает интерфейс проверки действительности сессии.
type Service interface {
	IsValid(ctx context.Context, principalUID, sessionID string) bool
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Проверить сессию устройства
// @Description Сообщает, числится ли сессия текущего устройства среди допущенных.
// @Tags Sessions
// @Produce  json
// @Success 200 {object} map[string]any "Признак действительности сессии"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Security BearerAuth
// @Router /sessions/validate [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.validate"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userUID, ok := r.Context().Value(middlewarectx.UserUID).(string)
	if !ok || userUID == "" {
		log.Error("user identification missing")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}
	token, ok := r.Context().Value(middlewarectx.Token).(string)
	if !ok || token == "" {
		log.Error("token missing in context")
		w.WriteHeader(http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	valid := h.service.IsValid(r.Context(), userUID, sessionid.FromToken(token))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"valid": valid,
	}))
}
