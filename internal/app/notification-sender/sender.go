// Package sender собирает воркер почтовых уведомлений о вытеснении сессий.
package sender

import (
	"context"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/device-gatekeeper/internal/config"
	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/sl"
	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/device-gatekeeper/internal/services/notification-sender"
)

// App — воркер, потребляющий события вытеснения и отправляющий письма.
type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	senderService *senderservice.SenderService
	logger        *slog.Logger
}

// New собирает воркер: подключает брокер и почтовый транспорт.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return nil, err
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetEventQueues())
	if err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Error("failed to close connection", sl.Err(closeErr))
		}
		return nil, err
	}

	transport := smtp.NewTransport(cfg, logger)
	senderService := senderservice.NewSenderService(transport, logger)

	return &App{
		conn:          conn,
		ch:            ch,
		senderService: senderService,
		logger:        logger,
	}, nil
}

// Run запускает потребителя и блокируется до отмены контекста.
func (a *App) Run(ctx context.Context) error {
	err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.EvictionQueue, a.senderService.SendEvictionNotice)
	if err != nil {
		a.logger.Error("failed to start eviction queue consumer", sl.Err(err))
		return err
	}

	<-ctx.Done()
	a.logger.Info("notification sender shutting down gracefully")

	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	return nil
}
