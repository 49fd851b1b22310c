// Package razorpay — клиент REST API платёжного шлюза Razorpay.
//
// Клиент не повторяет запросы. Единственный таймаут — http.Client.Timeout.
// Circuit breaker отклоняет запросы, пока шлюз отвечает 5xx или недоступен.
package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"example.com/course-payments/pkg/circuitbreaker"
	"example.com/course-payments/pkg/logger"
	"example.com/course-payments/pkg/metrics"
	"example.com/course-payments/services/payment/internal/domain"
)

// DefaultBaseURL — адрес API шлюза.
const DefaultBaseURL = "https://api.razorpay.com/v1"

// maxResponseSize ограничивает чтение тела ответа.
const maxResponseSize = 1 << 20

// Config — параметры клиента.
type Config struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Timeout   time.Duration
}

// Client — клиент Razorpay.
type Client struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
}

// Option — функциональная опция Client.
type Option func(*Client)

// WithHTTPClient подменяет http.Client (тесты, кастомный транспорт).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBreaker подменяет circuit breaker.
func WithBreaker(b *circuitbreaker.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// New создаёт клиента. Пустые ключи допустимы: вызовы вернут ErrNotConfigured.
func New(cfg Config, opts ...Option) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	settings := circuitbreaker.DefaultSettings()
	settings.IsFailure = isBreakerFailure

	c := &Client{
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    circuitbreaker.NewWithSettings("razorpay", settings),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Configured сообщает, заданы ли ключи API.
func (c *Client) Configured() bool {
	return c.keyID != "" && c.keySecret != ""
}

// KeyID возвращает публичный ключ для checkout на клиенте.
func (c *Client) KeyID() string {
	return c.keyID
}

// CreateOrder создаёт заказ.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	var order Order
	if err := c.do(ctx, "create_order", http.MethodPost, "/orders", req, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// FetchPayment получает платёж по id.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var payment Payment
	if err := c.do(ctx, "fetch_payment", http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FetchOrder получает заказ по id.
func (c *Client) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	if err := c.do(ctx, "fetch_order", http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Refund создаёт возврат по платежу.
func (c *Client) Refund(ctx context.Context, paymentID string, req RefundRequest) (*Refund, error) {
	var refund Refund
	path := "/payments/" + url.PathEscape(paymentID) + "/refund"
	if err := c.do(ctx, "refund", http.MethodPost, path, req, &refund); err != nil {
		return nil, err
	}
	return &refund, nil
}

// do выполняет запрос через breaker и декодирует ответ в out.
func (c *Client) do(ctx context.Context, operation, method, path string, body, out any) error {
	if !c.Configured() {
		return domain.ErrNotConfigured
	}

	start := time.Now()
	err := c.breaker.Execute(func() error {
		return c.roundTrip(ctx, method, path, body, out)
	})
	metrics.RecordGatewayCall(operation, err, time.Since(start))

	if errors.Is(err, circuitbreaker.ErrOpen) {
		logger.Ctx(ctx).Warn().
			Str("operation", operation).
			Msg("Запрос к шлюзу отклонён circuit breaker")
		return domain.ErrGatewayUnavailable
	}
	if err != nil {
		logger.Ctx(ctx).Error().
			Err(err).
			Str("operation", operation).
			Msg("Ошибка вызова платёжного шлюза")
		return err
	}
	return nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("ошибка сериализации запроса: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка запроса к шлюзу: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("ошибка чтения ответа шлюза: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return parseError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("ошибка разбора ответа шлюза: %w", err)
	}
	return nil
}

// parseError строит domain.GatewayError из ответа шлюза.
func parseError(status int, data []byte) error {
	gwErr := &domain.GatewayError{StatusCode: status}

	var resp errorResponse
	if err := json.Unmarshal(data, &resp); err == nil {
		gwErr.Code = resp.Error.Code
		gwErr.Description = resp.Error.Description
		gwErr.Field = resp.Error.Field
	}

	if gwErr.Code == "" {
		gwErr.Code = "GATEWAY_ERROR"
	}
	if gwErr.Description == "" {
		gwErr.Description = http.StatusText(status)
	}
	return gwErr
}

// isBreakerFailure — сбоем считаются транспортные ошибки и 5xx.
// 4xx шлюза — ответ на конкретный запрос, шлюз при этом работает.
func isBreakerFailure(err error) bool {
	var gwErr *domain.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.StatusCode >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled)
}
