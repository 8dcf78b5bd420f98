package models

import "time"

// Статусы состояния подписки.
const (
	StatusTrialing       = "trialing"
	StatusActive         = "active"
	StatusPendingPayment = "pending_payment"
	StatusInactive       = "inactive"
)

// Типы тарифных планов, выводятся из интервала биллинга у платёжного провайдера.
const (
	PlanMonthly = "monthly"
	PlanYearly  = "yearly"
	PlanOneTime = "one_time"
)

// SubscriptionState хранит нормализованное состояние подписки пользователя,
// одна строка на пользователя. Если PeriodEnd задан, он авторитетен:
// после его прохождения статус должен быть перепроверен.
type SubscriptionState struct {
	PrincipalUID string     // Владелец состояния
	Status       string     // trialing, active, pending_payment или inactive
	PlanType     string     // monthly, yearly или one_time
	PeriodStart  time.Time  // Начало текущего периода
	PeriodEnd    *time.Time // Конец периода, nil для бессрочных состояний
	DeviceSlots  int        // Ёмкость по устройствам, минимум 1
}

// AccessInfo — сводка доступа, отдаваемая клиенту. Клиент опрашивает её
// периодически, сервер никогда не пушит изменения.
type AccessInfo struct {
	Subscribed         bool       `json:"subscribed"`
	PlanType           string     `json:"plan_type,omitempty"`
	SubscriptionEnd    *time.Time `json:"subscription_end,omitempty"`
	IsTrial            bool       `json:"is_trial"`
	TrialDaysRemaining int        `json:"trial_days_remaining"`
	TrialEnd           time.Time  `json:"trial_end"`
	DeviceSlots        int        `json:"device_slots"`
}

// DummyInvoiceRequest используется для приёма данных запроса на выставление
// счёта с льготным периодом.
type DummyInvoiceRequest struct {
	PriceID     string `json:"price_id" validate:"required"`      // Идентификатор цены у провайдера
	Description string `json:"description" validate:"max=255"`    // Назначение платежа
	Country     string `json:"country" validate:"omitempty,len=2"` // Страна плательщика
}

// DummyExtendRequest используется для приёма данных административного
// продления доступа.
type DummyExtendRequest struct {
	PrincipalUID   string `json:"principal_uid" validate:"required,uuid"`
	AdditionalDays int    `json:"additional_days" validate:"required,gte=1,lte=365"`
}
