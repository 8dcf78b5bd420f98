// Package billing реализует клиент платёжного провайдера.
//
// Провайдер является источником истины по клиентам, ценам, подпискам и
// счетам. Клиент покрывает только операции, нужные контролю доступа:
// поиск клиента по email, активные подписки, счета по статусу,
// количество купленных слотов устройств и выставление счетов.
package billing

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

type Client struct {
	accountID  string
	secretKey  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт новый клиент платёжного провайдера.
func NewClient(apiURL, accountID, secretKey string) *Client {
	return &Client{
		accountID:  accountID,
		secretKey:  secretKey,
		apiURL:     apiURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	requestURL := c.apiURL + path
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, requestURL, &buf)
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.accountID + ":" + c.secretKey))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return errors.New("unexpected status: " + resp.Status)
	}
	if result == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

// FindCustomerByEmail ищет клиента по email.
// Возвращает nil, nil если клиент не зарегистрирован у провайдера.
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	req, err := c.newRequest(ctx, "GET", "/customers?email="+url.QueryEscape(email), nil)
	if err != nil {
		return nil, err
	}

	var listResp listCustomersResponse
	if err := c.do(req, &listResp); err != nil {
		return nil, err
	}
	if len(listResp.Items) == 0 {
		return nil, nil
	}
	return &listResp.Items[0], nil
}

// CreateCustomer создаёт запись клиента у провайдера.
func (c *Client) CreateCustomer(ctx context.Context, reqParams CreateCustomerRequest) (*Customer, error) {
	req, err := c.newRequest(ctx, "POST", "/customers", reqParams)
	if err != nil {
		return nil, err
	}

	var customer Customer
	if err := c.do(req, &customer); err != nil {
		return nil, err
	}
	return &customer, nil
}

// ListActiveSubscriptions возвращает активные повторяющиеся подписки клиента.
func (c *Client) ListActiveSubscriptions(ctx context.Context, customerID string) ([]Subscription, error) {
	req, err := c.newRequest(ctx, "GET",
		"/subscriptions?customer_id="+url.QueryEscape(customerID)+"&status=active", nil)
	if err != nil {
		return nil, err
	}

	var listResp listSubscriptionsResponse
	if err := c.do(req, &listResp); err != nil {
		return nil, err
	}
	return listResp.Items, nil
}

// ListInvoices возвращает счета клиента с заданным статусом.
func (c *Client) ListInvoices(ctx context.Context, customerID, status string) ([]Invoice, error) {
	req, err := c.newRequest(ctx, "GET",
		"/invoices?customer_id="+url.QueryEscape(customerID)+"&status="+url.QueryEscape(status), nil)
	if err != nil {
		return nil, err
	}

	var listResp listInvoicesResponse
	if err := c.do(req, &listResp); err != nil {
		return nil, err
	}
	return listResp.Items, nil
}

// GetPrice возвращает цену по её идентификатору.
func (c *Client) GetPrice(ctx context.Context, priceID string) (*Price, error) {
	req, err := c.newRequest(ctx, "GET", "/prices/"+url.PathEscape(priceID), nil)
	if err != nil {
		return nil, err
	}

	var price Price
	if err := c.do(req, &price); err != nil {
		return nil, err
	}
	return &price, nil
}

// DeviceSlotQuantity возвращает количество купленных дополнительных слотов
// устройств: суммирует количество позиций с ценой слота по всем активным
// подпискам клиента.
func (c *Client) DeviceSlotQuantity(ctx context.Context, customerID, slotPriceID string) (int, error) {
	subs, err := c.ListActiveSubscriptions(ctx, customerID)
	if err != nil {
		return 0, err
	}

	var quantity int
	for _, sub := range subs {
		for _, item := range sub.Items {
			if item.PriceID == slotPriceID {
				quantity += item.Quantity
			}
		}
	}
	return quantity, nil
}

// CreateAndSendInvoice создаёт разовый счёт и отправляет его клиенту.
func (c *Client) CreateAndSendInvoice(ctx context.Context, reqParams CreateInvoiceRequest) (*Invoice, error) {
	req, err := c.newRequest(ctx, "POST", "/invoices", reqParams)
	if err != nil {
		return nil, err
	}

	var invoice Invoice
	if err := c.do(req, &invoice); err != nil {
		return nil, err
	}

	sendReq, err := c.newRequest(ctx, "POST", "/invoices/"+url.PathEscape(invoice.ID)+"/send", nil)
	if err != nil {
		return nil, err
	}
	if err := c.do(sendReq, nil); err != nil {
		return nil, fmt.Errorf("invoice created but not sent: %w", err)
	}
	return &invoice, nil
}

// CreateSubscriptionWithInvoice создаёт повторяющуюся подписку со сбором
// оплаты через счёт. Провайдер выставляет и отправляет счёт сам.
func (c *Client) CreateSubscriptionWithInvoice(ctx context.Context, customerID, priceID, description string) (*Subscription, error) {
	reqParams := CreateSubscriptionRequest{
		CustomerID:       customerID,
		Items:            []LineItem{{PriceID: priceID, Quantity: 1}},
		CollectionMethod: "send_invoice",
		Description:      description,
	}
	req, err := c.newRequest(ctx, "POST", "/subscriptions", reqParams)
	if err != nil {
		return nil, err
	}

	var sub Subscription
	if err := c.do(req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}
