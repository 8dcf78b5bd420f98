package rabbitmq

// EventsExchange — обменник событий контроля доступа.
const EventsExchange = "gatekeeper.events"

// EvictionRoutingKey — ключ маршрутизации событий вытеснения сессий.
const EvictionRoutingKey = "session.evicted"

// EvictionQueue — очередь почтовых уведомлений о вытеснении.
const EvictionQueue = "session_evicted_queue"

// QueueConfig описывает очередь и её ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetEventQueues возвращает очереди, потребляемые воркером уведомлений.
func GetEventQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: EvictionQueue, RoutingKey: EvictionRoutingKey},
	}
}
