// Package invoicecreate реализует HTTP-обработчик выставления счёта.
//
// Успешный запрос немедленно выдаёт семидневный льготный период, не
// дожидаясь оплаты. Отклонения различимы: клиент всегда получает конкретное
// нарушенное правило.
package invoicecreate

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/device-gatekeeper/internal/http/middlewarectx"
	"github.com/magabrotheeeer/device-gatekeeper/internal/http/response"
	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/sl"
	"github.com/magabrotheeeer/device-gatekeeper/internal/models"
	invoiceservice "github.com/magabrotheeeer/device-gatekeeper/internal/services/invoice"
)

// Handler обрабатывает HTTP-запросы на выставление счёта.
type Handler struct {
	log      *slog.Logger        // Логгер для записи операций и ошибок
	service  Service             // Сервис выставления счетов
	validate *validator.Validate // Валидатор для проверки входных данных
}

// Service описывает интерфейс выставления счёта с льготным периодом.
type Service interface {
	Issue(ctx context.Context, principalUID, priceID, description string) error
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
// @Summary Выставить счёт
// @Description Создает счёт на выбранный тариф и немедленно выдаёт семидневный льготный период.
// @Tags Billing
// @Accept  json
// @Produce  json
// @Param request body models.DummyInvoiceRequest true "Параметры счёта"
// @Success 200 {object} map[string]any "Счёт выставлен, льготный период активен"
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 409 {object} response.ErrorResponse "Нарушено бизнес-правило"
// @Failure 422 {object} response.ErrorResponse "Ошибка валидации"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Security BearerAuth
// @Router /billing/invoices [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.billing.invoicecreate"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req models.DummyInvoiceRequest
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

	err := h.service.Issue(r.Context(), userUID, req.PriceID, req.Description)
	switch {
	case errors.Is(err, invoiceservice.ErrGraceActive):
		log.Warn("invoice rejected: grace period active")
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("a grace period is already active"))
		return
	case errors.Is(err, invoiceservice.ErrOpenInvoice):
		log.Warn("invoice rejected: open invoice exists")
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("an open invoice already exists"))
		return
	case errors.Is(err, invoiceservice.ErrTooManyUncollectible):
		log.Warn("invoice rejected: too many uncollectible invoices")
		w.WriteHeader(http.StatusConflict)
		render.JSON(w, r, response.Error("too many uncollectible invoices"))
		return
	case err != nil:
		log.Error("failed to issue invoice", sl.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not issue invoice"))
		return
	}

	log.Info("invoice issued", slog.String("price_id", req.PriceID))
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"grace_period_days": 7,
	}))
}
