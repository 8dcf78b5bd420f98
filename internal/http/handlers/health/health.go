// Package health реализует HTTP-обработчик проверки готовности сервиса.
package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/device-gatekeeper/internal/http/response"
)

// ReadinessChecker проверяет готовность хранилища.
type ReadinessChecker interface {
	CheckDatabaseReady(ctx context.Context) error
}

// Handler обрабатывает HTTP-запросы проверки готовности.
type Handler struct {
	log     *slog.Logger
	checker ReadinessChecker
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, checker ReadinessChecker) *Handler {
	return &Handler{log: log, checker: checker}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"
	if err := h.checker.CheckDatabaseReady(r.Context()); err != nil {
		h.log.Error("database not ready", slog.String("op", op), slog.Any("err", err))
		w.WriteHeader(http.StatusServiceUnavailable)
		render.JSON(w, r, response.Error("database not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"status": "ok",
	}))
}
