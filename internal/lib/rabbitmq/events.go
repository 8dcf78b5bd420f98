package rabbitmq

import (
	"context"
	"fmt"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/device-gatekeeper/internal/models"
)

// EventPublisher публикует события контроля доступа в обменник событий.
type EventPublisher struct {
	ch *amqp.Channel
}

// NewEventPublisher создает новый экземпляр EventPublisher.
func NewEventPublisher(ch *amqp.Channel) *EventPublisher {
	return &EventPublisher{ch: ch}
}

// PublishEvictionEvent публикует событие вытеснения сессии.
func (p *EventPublisher) PublishEvictionEvent(ctx context.Context, event models.EvictionEvent) error {
	const op = "rabbitmq.PublishEvictionEvent"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}
	return PublishMessage(p.ch, EventsExchange, EvictionRoutingKey, event)
}
