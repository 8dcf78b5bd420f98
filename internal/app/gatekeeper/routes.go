// Package gatekeeper предоставляет маршруты и сборку основного приложения.
package gatekeeper

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/device-gatekeeper/internal/http/handlers/access/status"
	"github.com/magabrotheeeer/device-gatekeeper/internal/http/handlers/admin/extend"
	"github.com/magabrotheeeer/device-gatekeeper/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/device-gatekeeper/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/device-gatekeeper/internal/http/handlers/billing/invoicecreate"
	"github.com/magabrotheeeer/device-gatekeeper/internal/http/handlers/health"
	"github.com/magabrotheeeer/device-gatekeeper/internal/http/handlers/session/admit"
	"github.com/magabrotheeeer/device-gatekeeper/internal/http/handlers/session/signout"
	"github.com/magabrotheeeer/device-gatekeeper/internal/http/handlers/session/validate"
	"github.com/magabrotheeeer/device-gatekeeper/internal/http/middlewarectx"
	"github.com/magabrotheeeer/device-gatekeeper/internal/storage/repository"

	admissionservice "github.com/magabrotheeeer/device-gatekeeper/internal/services/admission"
	authservice "github.com/magabrotheeeer/device-gatekeeper/internal/services/auth"
	invoiceservice "github.com/magabrotheeeer/device-gatekeeper/internal/services/invoice"
	resolverservice "github.com/magabrotheeeer/device-gatekeeper/internal/services/resolver"
	sessionservice "github.com/magabrotheeeer/device-gatekeeper/internal/services/session"
	slotsservice "github.com/magabrotheeeer/device-gatekeeper/internal/services/slots"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger,
	auth *authservice.AuthService,
	admission *admissionservice.Service,
	slots *slotsservice.Service,
	sessions *sessionservice.Service,
	resolver *resolverservice.Service,
	invoices *invoiceservice.Service,
	db *repository.Storage) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, auth).ServeHTTP)
		r.Post("/login", login.New(logger, auth).ServeHTTP)
		r.Get("/health", health.New(logger, db).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(auth, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/sessions", admit.New(logger, admission, slots).ServeHTTP)
			r.Get("/sessions/validate", validate.New(logger, sessions).ServeHTTP)
			r.Delete("/sessions", signout.New(logger, sessions).ServeHTTP)
			r.Get("/access/status", status.New(logger, resolver).ServeHTTP)
			r.Post("/billing/invoices", invoicecreate.New(logger, invoices).ServeHTTP)

			// Административные конечные точки
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.AdminMiddleware(auth, logger))
				r.Post("/admin/extend", extend.New(logger, resolver).ServeHTTP)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
