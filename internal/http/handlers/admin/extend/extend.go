// Package extend реализует HTTP-обработчик административного продления доступа.
package extend

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/device-gatekeeper/internal/http/response"
	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/sl"
	"github.com/magabrotheeeer/device-gatekeeper/internal/models"
)

// Handler обрабатывает HTTP-запросы на продление доступа.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Сервис разрешения доступа
	validate *validator.Validate // Валидатор для проверки входных данных
}

// Service описывает интерфейс административного продления доступа.
type Service interface {
	ExtendAccess(ctx context.Context, principalUID string, additionalDays int) (*models.SubscriptionState, error)
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Продлить доступ пользователя
// @Description Продлевает доступ на заданное число дней от позднего из (конец периода, сейчас). Только для администраторов.
// @Tags Admin
// @Accept  json
// @Produce  json
// @Param request body models.DummyExtendRequest true "Параметры продления"
// @Success 200 {object} map[string]any "Доступ продлён"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Требуется роль администратора"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Security BearerAuth
// @Router /admin/extend [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.extend"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyExtendRequest
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

	state, err := h.service.ExtendAccess(r.Context(), req.PrincipalUID, req.AdditionalDays)
	if err != nil {
		log.Error("failed to extend access", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not extend access"))
		return
	}

	log.Info("access extended",
		slog.String("principal_uid", req.PrincipalUID),
		slog.Int("additional_days", req.AdditionalDays))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"status":     state.Status,
		"period_end": state.PeriodEnd,
	}))
}
