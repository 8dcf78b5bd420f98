// Package admit реализует HTTP-обработчик допуска устройства.
//
// Идентификатор сессии выводится из bearer-токена запроса, поэтому одно
// устройство с одним токеном всегда занимает ровно одну сессию. Допуск
// никогда не отказывает пользователю: при нехватке ёмкости вытесняются
// старейшие сессии других устройств.
package admit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/device-gatekeeper/internal/http/middlewarectx"
	"github.com/magabrotheeeer/device-gatekeeper/internal/http/response"
	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/sessionid"
	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/sl"
	"github.com/magabrotheeeer/device-gatekeeper/internal/models"
)

// Handler обрабатывает HTTP-запросы на допуск устройства.
type Handler struct {
	log       *slog.Logger        // Логгер для записи операций и ошибок
	admission AdmissionService    // Контроллер допуска сессий
	slots     SlotCounter         // Счётчик слотов устройств
	validate  *validator.Validate // Валидатор для проверки входных данных
}

// AdmissionService описывает интерфейс контроллера допуска.
type AdmissionService interface {
	Admit(ctx context.Context, principalUID, sessionID, deviceInfo string, capacity int)
}

// SlotCounter возвращает ёмкость пользователя по устройствам.
type SlotCounter interface {
	CapacityForUser(ctx context.Context, principalUID string) int
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, admission AdmissionService, slots SlotCounter) *Handler {
	return &Handler{
		log:       log,
		admission: admission,
		slots:     slots,
		validate:  validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Допустить устройство
// @Description Регистрирует сессию текущего устройства. При превышении ёмкости вытесняет старейшие сессии.
// @Tags Sessions
// @Accept  json
// @Produce  json
// @Param request body models.DummyAdmitRequest true "Описание устройства"
// @Success 200 {object} map[string]any "Устройство допущено"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Security BearerAuth
// @Router /sessions [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.session.admit"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyAdmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		w.WriteHeader(http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

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

	sessionID := sessionid.FromToken(token)
	capacity := h.slots.CapacityForUser(r.Context(), userUID)
	h.admission.Admit(r.Context(), userUID, sessionID, req.DeviceInfo, capacity)

	log.Info("device admitted",
		slog.String("session_id", sessionID),
		slog.Int("capacity", capacity))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"session_id": sessionID,
		"capacity":   capacity,
	}))
}
