// Package signout реализует HTTP-обработчик выхода устройства.
package signout

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

// Handler обрабатывает HTTP-запросы на выход устройства.
type Handler struct {
	log     *slog.Logger // Логгер для записи операций и ошибок
	service Service      // Сервис жизненного цикла сессий
}

// Service описывает интерфейс завершения сессии.
type Service interface {
	SignOut(ctx context.Context, principalUID, sessionID string)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Выход устройства
// @Description Удаляет сессию текущего устройства. Выход завершается успешно даже для неизвестной сессии.
// @Tags Sessions
// @Produce  json
// @Success 200 {object} map[string]any "Сессия завершена"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Security BearerAuth
// @Router /sessions [delete]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.signout"

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

	h.service.SignOut(r.Context(), userUID, sessionid.FromToken(token))

	log.Info("device signed out")
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"signed_out": true,
	}))
}
