package gatekeeper

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/device-gatekeeper/internal/billing"
	"github.com/magabrotheeeer/device-gatekeeper/internal/cache"
	"github.com/magabrotheeeer/device-gatekeeper/internal/config"
	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/jwt"
	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/sl"
	"github.com/magabrotheeeer/device-gatekeeper/internal/migrations"
	"github.com/magabrotheeeer/device-gatekeeper/internal/storage/repository"

	admissionservice "github.com/magabrotheeeer/device-gatekeeper/internal/services/admission"
	authservice "github.com/magabrotheeeer/device-gatekeeper/internal/services/auth"
	invoiceservice "github.com/magabrotheeeer/device-gatekeeper/internal/services/invoice"
	resolverservice "github.com/magabrotheeeer/device-gatekeeper/internal/services/resolver"
	sessionservice "github.com/magabrotheeeer/device-gatekeeper/internal/services/session"
	slotsservice "github.com/magabrotheeeer/device-gatekeeper/internal/services/slots"
)

// App собирает и запускает HTTP сервер контроля доступа.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	conn   *amqp.Connection
	ch     *amqp.Channel
}

// New собирает приложение: подключает хранилище, кеш и брокер событий,
// прогоняет миграции и регистрирует маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	// Брокер событий необязателен для допуска: без него сервис работает,
	// но письма о вытеснении не отправляются.
	var conn *amqp.Connection
	var ch *amqp.Channel
	var publisher admissionservice.EventPublisher
	conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		logger.Warn("rabbitmq unavailable, eviction notices disabled", sl.Err(err))
	} else {
		ch, err = rabbitmq.SetupChannel(conn, rabbitmq.GetEventQueues())
		if err != nil {
			return nil, err
		}
		publisher = rabbitmq.NewEventPublisher(ch)
	}

	jwtMaker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	billingClient := billing.NewClient(cfg.BillingAPIURL, cfg.AccountID, cfg.SecretKey)

	auth := authservice.NewAuthService(db, jwtMaker)
	slots := slotsservice.New(billingClient, db, cfg.SlotPriceID, logger)
	admission := admissionservice.New(db, db, publisher, logger)
	sessions := sessionservice.New(db, logger)
	resolver := resolverservice.New(db, db, billingClient, slots, cacheRedis, logger)
	invoices := invoiceservice.New(db, db, billingClient, cacheRedis, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, auth, admission, slots, sessions, resolver, invoices, db)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
		conn:   conn,
		ch:     ch,
	}, nil
}

// Run запускает HTTP сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if a.ch != nil {
			if closeErr := a.ch.Close(); closeErr != nil {
				a.logger.Error("failed to close channel", sl.Err(closeErr))
			}
		}
		if a.conn != nil {
			if closeErr := a.conn.Close(); closeErr != nil {
				a.logger.Error("failed to close connection", sl.Err(closeErr))
			}
		}
		if closeErr := a.db.DB.Close(); closeErr != nil {
			a.logger.Error("failed to close database", sl.Err(closeErr))
		}
		return err
	}
}
