// Package slots вычисляет ёмкость пользователя по устройствам.
package slots

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/device-gatekeeper/internal/billing"
	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/sl"
	"github.com/magabrotheeeer/device-gatekeeper/internal/models"
)

// BillingProvider описывает операции платёжного провайдера для подсчёта слотов.
type BillingProvider interface {
	FindCustomerByEmail(ctx context.Context, email string) (*billing.Customer, error)
	DeviceSlotQuantity(ctx context.Context, customerID, slotPriceID string) (int, error)
}

// UserProvider возвращает данные пользователя для поиска клиента по email.
type UserProvider interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// Service считает допустимое число одновременных устройств.
type Service struct {
	provider    BillingProvider
	users       UserProvider
	slotPriceID string
	log         *slog.Logger
}

// New создаёт сервис подсчёта слотов. slotPriceID — цена дополнительного
// слота устройства у платёжного провайдера.
func New(provider BillingProvider, users UserProvider, slotPriceID string, log *slog.Logger) *Service {
	return &Service{provider: provider, users: users, slotPriceID: slotPriceID, log: log}
}

// Capacity возвращает ёмкость пользователя: одно базовое устройство плюс
// купленные дополнительные слоты. Результат всегда не меньше единицы.
// Ошибка провайдера не блокирует допуск: возвращается базовая ёмкость.
func (s *Service) Capacity(ctx context.Context, email string) int {
	customer, err := s.provider.FindCustomerByEmail(ctx, email)
	if err != nil {
		s.log.Warn("failed to find billing customer, using base capacity", sl.Err(err),
			slog.String("email", email))
		return 1
	}
	if customer == nil {
		return 1
	}

	extra, err := s.provider.DeviceSlotQuantity(ctx, customer.ID, s.slotPriceID)
	if err != nil {
		s.log.Warn("failed to count device slots, using base capacity", sl.Err(err),
			slog.String("customer_id", customer.ID))
		return 1
	}

	capacity := 1 + extra
	if capacity < 1 {
		capacity = 1
	}
	return capacity
}

// CapacityForUser возвращает ёмкость пользователя по его UID.
func (s *Service) CapacityForUser(ctx context.Context, principalUID string) int {
	user, err := s.users.GetUser(ctx, principalUID)
	if err != nil {
		s.log.Warn("failed to load user for slot count, using base capacity", sl.Err(err),
			slog.String("principal_uid", principalUID))
		return 1
	}
	return s.Capacity(ctx, user.Email)
}
