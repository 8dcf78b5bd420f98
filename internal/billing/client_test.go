package billing

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, "acc_1", "sk_test")
}

func TestClient_BasicAuthHeader(t *testing.T) {
	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("acc_1:sk_test"))

	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wantAuth, r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewEncoder(w).Encode(listCustomersResponse{})
	})

	_, err := client.FindCustomerByEmail(context.Background(), "u@example.com")
	require.NoError(t, err)
}

func TestClient_FindCustomerByEmail(t *testing.T) {
	tests := []struct {
		name      string
		items     []Customer
		wantFound bool
	}{
		{
			name:      "customer found",
			items:     []Customer{{ID: "cus_1", Email: "u@example.com"}},
			wantFound: true,
		},
		{
			name:      "no customer registered",
			items:     nil,
			wantFound: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/customers", r.URL.Path)
				assert.Equal(t, "u@example.com", r.URL.Query().Get("email"))
				_ = json.NewEncoder(w).Encode(listCustomersResponse{Items: tt.items})
			})

			customer, err := client.FindCustomerByEmail(context.Background(), "u@example.com")
			require.NoError(t, err)
			if tt.wantFound {
				require.NotNil(t, customer)
				assert.Equal(t, "cus_1", customer.ID)
			} else {
				assert.Nil(t, customer)
			}
		})
	}
}

func TestClient_DeviceSlotQuantity(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscriptions", r.URL.Path)
		assert.Equal(t, "cus_1", r.URL.Query().Get("customer_id"))
		assert.Equal(t, "active", r.URL.Query().Get("status"))
		_ = json.NewEncoder(w).Encode(listSubscriptionsResponse{Items: []Subscription{
			{
				ID:     "sub_1",
				Status: "active",
				Items: []LineItem{
					{PriceID: "price_plan", Quantity: 1},
					{PriceID: "price_slot", Quantity: 2},
				},
			},
			{
				ID:     "sub_2",
				Status: "active",
				Items:  []LineItem{{PriceID: "price_slot", Quantity: 1}},
			},
		}})
	})

	quantity, err := client.DeviceSlotQuantity(context.Background(), "cus_1", "price_slot")
	require.NoError(t, err)
	assert.Equal(t, 3, quantity)
}

func TestClient_CreateAndSendInvoice(t *testing.T) {
	var sendCalled bool
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/invoices":
			require.Equal(t, http.MethodPost, r.Method)
			var req CreateInvoiceRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "cus_1", req.CustomerID)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(Invoice{
				ID:        "in_1",
				Status:    InvoiceStatusOpen,
				CreatedAt: time.Now().UTC(),
			})
		case "/invoices/in_1/send":
			sendCalled = true
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "sent"})
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	})

	invoice, err := client.CreateAndSendInvoice(context.Background(), CreateInvoiceRequest{
		CustomerID: "cus_1",
		PriceID:    "price_1",
	})
	require.NoError(t, err)
	assert.Equal(t, "in_1", invoice.ID)
	assert.True(t, sendCalled)
}

func TestClient_UnexpectedStatus(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.GetPrice(context.Background(), "price_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status")
}
