// Package invoice реализует выставление счёта с оптимистичным льготным периодом.
//
// Доступ выдаётся на фиксированный срок сразу при выставлении счёта, не
// дожидаясь оплаты. Неоплаченный счёт отзывается позже, когда льготный
// период истечёт и резолвер понизит статус.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/device-gatekeeper/internal/billing"
	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/sl"
	"github.com/magabrotheeeer/device-gatekeeper/internal/metrics"
	"github.com/magabrotheeeer/device-gatekeeper/internal/models"
)

// GracePeriod — срок доступа, выдаваемого при выставлении счёта.
const GracePeriod = 7 * 24 * time.Hour

const uncollectibleLimit = 2

// Ошибки бизнес-правил. Каждое отклонение различимо, клиент получает
// конкретное нарушенное правило.
var (
	// ErrGraceActive — льготный период по предыдущему счёту ещё действует.
	ErrGraceActive = errors.New("a grace period is already active")
	// ErrOpenInvoice — у клиента уже есть неоплаченный счёт.
	ErrOpenInvoice = errors.New("an open invoice already exists")
	// ErrTooManyUncollectible — слишком много безнадёжных счетов в истории.
	ErrTooManyUncollectible = errors.New("too many uncollectible invoices")
)

// StateRepository описывает хранилище состояний подписки.
type StateRepository interface {
	GetSubscriptionState(ctx context.Context, principalUID string) (*models.SubscriptionState, error)
	UpsertSubscriptionState(ctx context.Context, state models.SubscriptionState) error
}

// UserProvider возвращает данные пользователя.
type UserProvider interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// BillingProvider описывает операции платёжного провайдера для выставления счетов.
type BillingProvider interface {
	FindCustomerByEmail(ctx context.Context, email string) (*billing.Customer, error)
	CreateCustomer(ctx context.Context, req billing.CreateCustomerRequest) (*billing.Customer, error)
	ListInvoices(ctx context.Context, customerID, status string) ([]billing.Invoice, error)
	GetPrice(ctx context.Context, priceID string) (*billing.Price, error)
	CreateAndSendInvoice(ctx context.Context, req billing.CreateInvoiceRequest) (*billing.Invoice, error)
	CreateSubscriptionWithInvoice(ctx context.Context, customerID, priceID, description string) (*billing.Subscription, error)
}

// AccessCache кеширует сводку доступа, после выдачи гранта кеш сбрасывается.
type AccessCache interface {
	Invalidate(key string) error
}

// Service выставляет счета и выдаёт льготные периоды.
type Service struct {
	states  StateRepository
	users   UserProvider
	billing BillingProvider
	cache   AccessCache
	log     *slog.Logger
	now     func() time.Time
}

// New создаёт сервис выставления счетов. Cache может быть nil.
func New(states StateRepository, users UserProvider, billingProvider BillingProvider,
	cache AccessCache, log *slog.Logger) *Service {
	return &Service{
		states:  states,
		users:   users,
		billing: billingProvider,
		cache:   cache,
		log:     log,
		now:     time.Now,
	}
}

// Issue выставляет счёт на цену priceID и немедленно выдаёт льготный период.
//
// Проверки отклонения выполняются по порядку, срабатывает первая:
// действующий льготный период, существующий открытый счёт, порог
// безнадёжных счетов. Аннулированные счета безнадёжными не считаются.
//
// При прохождении проверок состояние pending_payment с концом периода
// через GracePeriod сохраняется ДО обращения к провайдеру: сбой создания
// счёта не отменяет уже выданный грант.
func (s *Service) Issue(ctx context.Context, principalUID, priceID, description string) error {
	const op = "invoice.Issue"

	now := s.now()

	persisted, err := s.states.GetSubscriptionState(ctx, principalUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if persisted != nil && persisted.Status == models.StatusPendingPayment &&
		persisted.PeriodEnd != nil && now.Before(*persisted.PeriodEnd) {
		metrics.InvoiceRejectionsTotal.WithLabelValues("grace_active").Inc()
		return ErrGraceActive
	}

	user, err := s.users.GetUser(ctx, principalUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	customer, err := s.getOrCreateCustomer(ctx, user)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	open, err := s.billing.ListInvoices(ctx, customer.ID, billing.InvoiceStatusOpen)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(open) > 0 {
		metrics.InvoiceRejectionsTotal.WithLabelValues("open_invoice").Inc()
		return ErrOpenInvoice
	}

	uncollectible, err := s.billing.ListInvoices(ctx, customer.ID, billing.InvoiceStatusUncollectible)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(uncollectible) >= uncollectibleLimit {
		metrics.InvoiceRejectionsTotal.WithLabelValues("uncollectible_limit").Inc()
		return ErrTooManyUncollectible
	}

	price, err := s.billing.GetPrice(ctx, priceID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	planType := models.PlanOneTime
	if price.Recurring != nil {
		switch price.Recurring.Interval {
		case billing.IntervalYear:
			planType = models.PlanYearly
		default:
			planType = models.PlanMonthly
		}
	}

	deviceSlots := 1
	if persisted != nil && persisted.DeviceSlots > deviceSlots {
		deviceSlots = persisted.DeviceSlots
	}

	graceEnd := now.Add(GracePeriod)
	state := models.SubscriptionState{
		PrincipalUID: principalUID,
		Status:       models.StatusPendingPayment,
		PlanType:     planType,
		PeriodStart:  now,
		PeriodEnd:    &graceEnd,
		DeviceSlots:  deviceSlots,
	}
	if err := s.states.UpsertSubscriptionState(ctx, state); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.InvoicesIssuedTotal.Inc()

	if s.cache != nil {
		if err := s.cache.Invalidate("access:" + principalUID); err != nil {
			s.log.Warn("failed to invalidate access cache", sl.Err(err))
		}
	}

	// Разовая цена выставляется прямым счётом, повторяющаяся — подпиской со
	// сбором оплаты через счёт. Льготный период в обоих случаях одинаков.
	if price.Recurring == nil {
		_, err = s.billing.CreateAndSendInvoice(ctx, billing.CreateInvoiceRequest{
			CustomerID:  customer.ID,
			PriceID:     priceID,
			Description: description,
		})
	} else {
		_, err = s.billing.CreateSubscriptionWithInvoice(ctx, customer.ID, priceID, description)
	}
	if err != nil {
		// Грант уже выдан и остаётся в силе, сверка произойдёт на следующем
		// проходе резолвера.
		s.log.Error("invoice creation failed after grace grant", sl.Err(err),
			slog.String("principal_uid", principalUID),
			slog.String("price_id", priceID))
	}
	return nil
}

func (s *Service) getOrCreateCustomer(ctx context.Context, user *models.User) (*billing.Customer, error) {
	customer, err := s.billing.FindCustomerByEmail(ctx, user.Email)
	if err != nil {
		return nil, err
	}
	if customer != nil {
		return customer, nil
	}
	return s.billing.CreateCustomer(ctx, billing.CreateCustomerRequest{
		Email: user.Email,
		Name:  user.Username,
	})
}
