package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"example.com/course-payments/services/payment/internal/domain"
	"example.com/course-payments/services/payment/internal/httputil"
	"example.com/course-payments/services/payment/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockOrderService — мок OrderService.
type MockOrderService struct {
	CreateOrderFunc func(ctx context.Context, cmd service.CreateOrderCommand) (*service.OrderResult, error)
}

func (m *MockOrderService) CreateOrder(ctx context.Context, cmd service.CreateOrderCommand) (*service.OrderResult, error) {
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, cmd)
	}
	return nil, nil
}

// MockConfirmationService — мок ConfirmationService.
type MockConfirmationService struct {
	ConfirmClientFunc func(ctx context.Context, cmd service.ClientConfirmation) (*service.ConfirmResult, error)
	HandleWebhookFunc func(ctx context.Context, d service.WebhookDelivery) (*service.WebhookResult, error)
}

func (m *MockConfirmationService) ConfirmClient(ctx context.Context, cmd service.ClientConfirmation) (*service.ConfirmResult, error) {
	if m.ConfirmClientFunc != nil {
		return m.ConfirmClientFunc(ctx, cmd)
	}
	return nil, nil
}

func (m *MockConfirmationService) HandleWebhook(ctx context.Context, d service.WebhookDelivery) (*service.WebhookResult, error) {
	if m.HandleWebhookFunc != nil {
		return m.HandleWebhookFunc(ctx, d)
	}
	return nil, nil
}

// MockRefundService — мок RefundService.
type MockRefundService struct {
	RefundFunc func(ctx context.Context, cmd service.RefundCommand) (*service.RefundResult, error)
}

func (m *MockRefundService) Refund(ctx context.Context, cmd service.RefundCommand) (*service.RefundResult, error) {
	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, cmd)
	}
	return nil, nil
}

// MockLedgerService — мок LedgerService.
type MockLedgerService struct {
	BackfillFunc     func(ctx context.Context, p *domain.Principal) (*domain.BackfillReport, error)
	ListPaymentsFunc func(ctx context.Context, p *domain.Principal, page domain.Page) (*service.PaymentList, error)
	MyPaymentsFunc   func(ctx context.Context, p *domain.Principal) ([]*domain.Payment, error)
}

func (m *MockLedgerService) Backfill(ctx context.Context, p *domain.Principal) (*domain.BackfillReport, error) {
	if m.BackfillFunc != nil {
		return m.BackfillFunc(ctx, p)
	}
	return &domain.BackfillReport{}, nil
}

func (m *MockLedgerService) ListPayments(ctx context.Context, p *domain.Principal, page domain.Page) (*service.PaymentList, error) {
	if m.ListPaymentsFunc != nil {
		return m.ListPaymentsFunc(ctx, p, page)
	}
	return &service.PaymentList{}, nil
}

func (m *MockLedgerService) MyPayments(ctx context.Context, p *domain.Principal) ([]*domain.Payment, error) {
	if m.MyPaymentsFunc != nil {
		return m.MyPaymentsFunc(ctx, p)
	}
	return nil, nil
}

// MockUserService — мок UserService.
type MockUserService struct {
	DeleteUserFunc func(ctx context.Context, p *domain.Principal, userID int64) error
}

func (m *MockUserService) DeleteUser(ctx context.Context, p *domain.Principal, userID int64) error {
	if m.DeleteUserFunc != nil {
		return m.DeleteUserFunc(ctx, p, userID)
	}
	return nil
}

// withPrincipal имитирует auth middleware.
func withPrincipal(p *domain.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p != nil {
			httputil.SetPrincipal(c, p)
		}
		c.Next()
	}
}

func student() *domain.Principal {
	return &domain.Principal{UserID: 7, Role: domain.RoleStudent}
}

func admin() *domain.Principal {
	return &domain.Principal{UserID: 1, Role: domain.RoleAdmin}
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}
