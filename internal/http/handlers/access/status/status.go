// Package status реализует HTTP-обработчик сводки доступа пользователя.
//
// Клиенты опрашивают этот маршрут периодически, сервер никогда не пушит
// изменения доступа.
package status

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/device-gatekeeper/internal/http/middlewarectx"
	"github.com/magabrotheeeer/device-gatekeeper/internal/http/response"
	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/sl"
	"github.com/magabrotheeeer/device-gatekeeper/internal/models"
)

// Handler обрабатывает HTTP-запросы на получение сводки доступа.
type Handler struct {
	log     *slog.Logger // Логгер для записи операций и ошибок
	service Service      // Сервис разрешения доступа
}

// Service описывает интерфейс разрешения доступа.
type Service interface {
	Resolve(ctx context.Context, principalUID string) (*models.AccessInfo, error)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Сводка доступа
// @Description Возвращает нормализованное состояние доступа: подписка, пробный период, число слотов.
// @Tags Access
// @Produce  json
// @Success 200 {object} map[string]any "Сводка доступа"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Не удалось разрешить доступ"
// @Security BearerAuth
// @Router /access/status [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.access.status"

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

	info, err := h.service.Resolve(r.Context(), userUID)
	if err != nil {
		// Разрешение доступа закрыто при сбоях: клиент не получает доступ
		// по ошибке инфраструктуры.
		log.Error("failed to resolve access", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not resolve access"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(info))
}
