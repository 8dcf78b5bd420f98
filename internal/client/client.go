// Package client реализует клиент серверного API для устройства.
//
// Клиент держит bearer-токен, полученный при входе, и реализует операции,
// которые устройство выполняет в фоне: допуск, проверку сессии, выход и
// опрос сводки доступа.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/magabrotheeeer/device-gatekeeper/internal/models"
)

// Client — HTTP клиент API контроля доступа.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// New создает новый клиент API. baseURL — адрес сервера без завершающего
// слеша, например http://localhost:8080.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// envelope повторяет формат ответа сервера.
type envelope struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Token возвращает текущий bearer-токен.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// SetToken задаёт bearer-токен, например восстановленный из хранилища.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) do(ctx context.Context, method, path string, body any, result any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("unexpected response (%s): %w", resp.Status, err)
	}
	if resp.StatusCode != http.StatusOK || env.Status != "OK" {
		if env.Error != "" {
			return errors.New(env.Error)
		}
		return errors.New("unexpected status: " + resp.Status)
	}
	if result == nil || env.Data == nil {
		return nil
	}
	return json.Unmarshal(env.Data, result)
}

// Login аутентифицирует пользователя и сохраняет полученный токен.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var data struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/api/v1/login", map[string]string{
		"username": username,
		"password": password,
	}, &data)
	if err != nil {
		return err
	}
	c.SetToken(data.Token)
	return nil
}

// Admit регистрирует сессию этого устройства на сервере.
func (c *Client) Admit(ctx context.Context, deviceInfo string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/sessions", map[string]string{
		"device_info": deviceInfo,
	}, nil)
}

// ValidateSession сообщает, числится ли сессия устройства среди допущенных.
func (c *Client) ValidateSession(ctx context.Context) (bool, error) {
	var data struct {
		Valid bool `json:"valid"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/sessions/validate", nil, &data); err != nil {
		return false, err
	}
	return data.Valid, nil
}

// SignOut удаляет сессию устройства на сервере.
func (c *Client) SignOut(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/sessions", nil, nil)
}

// AccessStatus возвращает сводку доступа пользователя.
func (c *Client) AccessStatus(ctx context.Context) (*models.AccessInfo, error) {
	var info models.AccessInfo
	if err := c.do(ctx, http.MethodGet, "/api/v1/access/status", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}
