package billing

import "time"

// Статусы счетов у платёжного провайдера.
const (
	InvoiceStatusOpen          = "open"
	InvoiceStatusDraft         = "draft"
	InvoiceStatusPaid          = "paid"
	InvoiceStatusUncollectible = "uncollectible"
	InvoiceStatusVoid          = "void"
)

// Интервалы биллинга повторяющихся цен.
const (
	IntervalMonth = "month"
	IntervalYear  = "year"
)

// Customer — запись клиента у платёжного провайдера.
type Customer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// LineItem — позиция подписки с ценой и количеством.
type LineItem struct {
	PriceID  string `json:"price_id"`
	Quantity int    `json:"quantity"`
}

// Subscription — повторяющаяся подписка клиента.
type Subscription struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"`
	BillingInterval  string     `json:"billing_interval"`
	CurrentPeriodEnd time.Time  `json:"current_period_end"`
	Items            []LineItem `json:"items"`
}

// Invoice — счёт клиента.
type Invoice struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	PriceID   string    `json:"price_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Recurring — параметры повторяющейся цены.
type Recurring struct {
	Interval string `json:"interval"`
}

// Price — цена; Recurring равен nil для разовых цен.
type Price struct {
	ID        string     `json:"id"`
	Recurring *Recurring `json:"recurring,omitempty"`
}

// CreateCustomerRequest — запрос на создание клиента.
type CreateCustomerRequest struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// CreateInvoiceRequest — запрос на создание разового счёта.
type CreateInvoiceRequest struct {
	CustomerID  string `json:"customer_id"`
	PriceID     string `json:"price_id"`
	Description string `json:"description,omitempty"`
}

// CreateSubscriptionRequest — запрос на создание подписки с выставлением счёта.
// CollectionMethod send_invoice означает, что провайдер не списывает средства
// сам, а отправляет клиенту счёт на оплату.
type CreateSubscriptionRequest struct {
	CustomerID       string     `json:"customer_id"`
	Items            []LineItem `json:"items"`
	CollectionMethod string     `json:"collection_method"`
	Description      string     `json:"description,omitempty"`
}

type listCustomersResponse struct {
	Items []Customer `json:"items"`
}

type listSubscriptionsResponse struct {
	Items []Subscription `json:"items"`
}

type listInvoicesResponse struct {
	Items []Invoice `json:"items"`
}
