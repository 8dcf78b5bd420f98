// Package resolver нормализует состояние доступа пользователя.
//
// Источник истины по оплате — платёжный провайдер, локальная таблица
// subscription_states хранит последний выведенный результат. В отличие от
// допуска сессий разрешение доступа закрыто при сбоях: лучше недодать
// доступ, чем выдать его без оплаты.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/device-gatekeeper/internal/billing"
	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/sl"
	"github.com/magabrotheeeer/device-gatekeeper/internal/metrics"
	"github.com/magabrotheeeer/device-gatekeeper/internal/models"
)

// TrialDuration — длительность пробного периода от даты создания аккаунта.
const TrialDuration = 3 * 24 * time.Hour

const accessCacheTTL = time.Minute

// UserProvider возвращает данные пользователя.
type UserProvider interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
}

// StateRepository описывает хранилище нормализованных состояний подписки.
type StateRepository interface {
	GetSubscriptionState(ctx context.Context, principalUID string) (*models.SubscriptionState, error)
	UpsertSubscriptionState(ctx context.Context, state models.SubscriptionState) error
}

// BillingProvider описывает операции платёжного провайдера для разрешения доступа.
type BillingProvider interface {
	FindCustomerByEmail(ctx context.Context, email string) (*billing.Customer, error)
	ListActiveSubscriptions(ctx context.Context, customerID string) ([]billing.Subscription, error)
}

// SlotCounter возвращает ёмкость пользователя по устройствам.
type SlotCounter interface {
	Capacity(ctx context.Context, email string) int
}

// AccessCache кеширует сводку доступа между опросами клиентов.
type AccessCache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Service разрешает и продлевает доступ пользователей.
type Service struct {
	users   UserProvider
	states  StateRepository
	billing BillingProvider
	slots   SlotCounter
	cache   AccessCache
	log     *slog.Logger
	now     func() time.Time
}

// New создаёт сервис разрешения доступа. Cache может быть nil, тогда каждый
// опрос идёт к провайдеру.
func New(users UserProvider, states StateRepository, billingProvider BillingProvider,
	slots SlotCounter, cache AccessCache, log *slog.Logger) *Service {
	return &Service{
		users:   users,
		states:  states,
		billing: billingProvider,
		slots:   slots,
		cache:   cache,
		log:     log,
		now:     time.Now,
	}
}

func accessCacheKey(principalUID string) string {
	return "access:" + principalUID
}

// Resolve выводит сводку доступа пользователя и сохраняет нормализованное
// состояние подписки.
//
// Порядок: активная подписка у провайдера даёт доступ безусловно; без неё
// доступ даёт непросроченный льготный период pending_payment; иначе доступ
// определяется пробным окном от даты создания аккаунта. Действующий льготный
// период никогда не затирается статусом inactive.
func (s *Service) Resolve(ctx context.Context, principalUID string) (*models.AccessInfo, error) {
	const op = "resolver.Resolve"

	if s.cache != nil {
		var cached models.AccessInfo
		found, err := s.cache.Get(accessCacheKey(principalUID), &cached)
		if err != nil {
			s.log.Warn("access cache read failed", sl.Err(err))
		}
		if found {
			return &cached, nil
		}
	}

	user, err := s.users.GetUser(ctx, principalUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	trialEnd := user.CreatedAt.Add(TrialDuration)
	inTrial := now.Before(trialEnd)
	trialDaysRemaining := trialDaysLeft(trialEnd, now)

	customer, err := s.billing.FindCustomerByEmail(ctx, user.Email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	deviceSlots := s.slots.Capacity(ctx, user.Email)

	info := &models.AccessInfo{
		IsTrial:            inTrial,
		TrialDaysRemaining: trialDaysRemaining,
		TrialEnd:           trialEnd,
		DeviceSlots:        deviceSlots,
	}

	state := models.SubscriptionState{
		PrincipalUID: principalUID,
		PeriodStart:  user.CreatedAt,
		DeviceSlots:  deviceSlots,
	}

	switch {
	case customer == nil:
		state.Status = trialStatus(inTrial)
		state.PeriodEnd = &trialEnd
		info.Subscribed = inTrial

	default:
		sub, err := s.findActiveRecurring(ctx, customer.ID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if sub != nil {
			periodEnd := sub.CurrentPeriodEnd
			state.Status = models.StatusActive
			state.PlanType = planTypeFromInterval(sub.BillingInterval)
			state.PeriodStart = now
			state.PeriodEnd = &periodEnd
			info.Subscribed = true
			info.IsTrial = false
			info.PlanType = state.PlanType
			info.SubscriptionEnd = state.PeriodEnd
			break
		}

		// Нет активной подписки: прежде чем понижать статус, проверяем
		// сохранённый льготный период.
		persisted, err := s.states.GetSubscriptionState(ctx, principalUID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if persisted != nil && persisted.Status == models.StatusPendingPayment &&
			persisted.PeriodEnd != nil && now.Before(*persisted.PeriodEnd) {
			info.Subscribed = true
			info.IsTrial = false
			info.PlanType = persisted.PlanType
			info.SubscriptionEnd = persisted.PeriodEnd
			s.cacheAccess(principalUID, info)
			return info, nil
		}

		state.Status = trialStatus(inTrial)
		state.PeriodEnd = &trialEnd
		info.Subscribed = inTrial
	}

	if err := s.states.UpsertSubscriptionState(ctx, state); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.cacheAccess(principalUID, info)
	return info, nil
}

// ExtendAccess административно продлевает доступ пользователя: конец периода
// сдвигается на additionalDays от позднего из (текущий конец периода, сейчас),
// статус переводится в trialing.
func (s *Service) ExtendAccess(ctx context.Context, principalUID string, additionalDays int) (*models.SubscriptionState, error) {
	const op = "resolver.ExtendAccess"

	if additionalDays < 1 || additionalDays > 365 {
		return nil, fmt.Errorf("%s: additional days out of range: %d", op, additionalDays)
	}

	now := s.now()
	base := now
	persisted, err := s.states.GetSubscriptionState(ctx, principalUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	state := models.SubscriptionState{
		PrincipalUID: principalUID,
		PeriodStart:  now,
		DeviceSlots:  1,
	}
	if persisted != nil {
		state = *persisted
		if persisted.PeriodEnd != nil && persisted.PeriodEnd.After(now) {
			base = *persisted.PeriodEnd
		}
	}

	newEnd := base.Add(time.Duration(additionalDays) * 24 * time.Hour)
	state.Status = models.StatusTrialing
	state.PeriodEnd = &newEnd

	if err := s.states.UpsertSubscriptionState(ctx, state); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	metrics.AccessExtensionsTotal.Inc()

	if s.cache != nil {
		if err := s.cache.Invalidate(accessCacheKey(principalUID)); err != nil {
			s.log.Warn("failed to invalidate access cache", sl.Err(err))
		}
	}
	return &state, nil
}

func (s *Service) findActiveRecurring(ctx context.Context, customerID string) (*billing.Subscription, error) {
	subs, err := s.billing.ListActiveSubscriptions(ctx, customerID)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if subs[i].BillingInterval != "" {
			return &subs[i], nil
		}
	}
	return nil, nil
}

func (s *Service) cacheAccess(principalUID string, info *models.AccessInfo) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(accessCacheKey(principalUID), info, accessCacheTTL); err != nil {
		s.log.Warn("failed to cache access info", sl.Err(err))
	}
}

func trialStatus(inTrial bool) string {
	if inTrial {
		return models.StatusTrialing
	}
	return models.StatusInactive
}

func trialDaysLeft(trialEnd, now time.Time) int {
	if !now.Before(trialEnd) {
		return 0
	}
	left := trialEnd.Sub(now)
	days := int(left / (24 * time.Hour))
	if left%(24*time.Hour) > 0 {
		days++
	}
	return days
}

func planTypeFromInterval(interval string) string {
	switch interval {
	case billing.IntervalMonth:
		return models.PlanMonthly
	case billing.IntervalYear:
		return models.PlanYearly
	default:
		return models.PlanOneTime
	}
}
