package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"example.com/course-payments/pkg/logger"
	"example.com/course-payments/services/payment/internal/domain"
	"example.com/course-payments/services/payment/internal/httputil"
	"example.com/course-payments/services/payment/internal/service"
)

// PaymentHandler — клиентские маршруты оплаты.
type PaymentHandler struct {
	orders       OrderService
	confirmation ConfirmationService
	ledger       LedgerService
}

// NewPaymentHandler создаёт PaymentHandler.
func NewPaymentHandler(orders OrderService, confirmation ConfirmationService, ledger LedgerService) *PaymentHandler {
	return &PaymentHandler{orders: orders, confirmation: confirmation, ledger: ledger}
}

// === Request/Response DTOs ===

// CreateOrderRequest — запрос на создание заказа.
// amount и course_ids принимаются числом или строкой, разбор в сервисе.
type CreateOrderRequest struct {
	Amount    json.RawMessage `json:"amount"`
	CourseIDs json.RawMessage `json:"course_ids"`
}

// VerifyPaymentRequest — подтверждение оплаты после checkout.
type VerifyPaymentRequest struct {
	OrderID           string `json:"order_id"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

// PaymentResponse — строка журнала в ответе.
type PaymentResponse struct {
	ID        int64     `json:"id"`
	OrderID   string    `json:"order_id,omitempty"`
	PaymentID string    `json:"payment_id"`
	UserID    *int64    `json:"user_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	RefundID  string    `json:"refund_id,omitempty"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ListPaymentsResponse — ответ со списком платежей.
type ListPaymentsResponse struct {
	Payments   []PaymentResponse   `json:"payments"`
	Pagination *PaginationResponse `json:"pagination,omitempty"`
}

// PaginationResponse — информация о пагинации.
type PaginationResponse struct {
	CurrentPage int   `json:"current_page"`
	PageSize    int   `json:"page_size"`
	TotalItems  int64 `json:"total_items"`
	TotalPages  int   `json:"total_pages"`
}

// === Handlers ===

// CreateOrder создаёт заказ в шлюзе.
// POST /api/v1/payments/orders
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Ctx(c.Request.Context()).Debug().Err(err).Msg("Невалидный запрос на создание заказа")
		badRequest(c, "Невалидные данные запроса")
		return
	}

	result, err := h.orders.CreateOrder(c.Request.Context(), service.CreateOrderCommand{
		Principal: httputil.Principal(c),
		Amount:    req.Amount,
		CourseIDs: req.CourseIDs,
	})
	if err != nil {
		HandleError(c, err, "CreateOrder")
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Verify принимает подтверждение оплаты от клиента.
// POST /api/v1/payments/verify
func (h *PaymentHandler) Verify(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Невалидные данные запроса")
		return
	}

	result, err := h.confirmation.ConfirmClient(c.Request.Context(), service.ClientConfirmation{
		Principal:       httputil.Principal(c),
		OrderID:         req.OrderID,
		RazorpayOrderID: req.RazorpayOrderID,
		PaymentID:       req.RazorpayPaymentID,
		Signature:       req.RazorpaySignature,
	})
	if err != nil {
		HandleError(c, err, "Verify")
		return
	}

	c.JSON(http.StatusOK, result)
}

// MyPayments возвращает платежи текущего студента.
// GET /api/v1/payments/me
func (h *PaymentHandler) MyPayments(c *gin.Context) {
	payments, err := h.ledger.MyPayments(c.Request.Context(), httputil.Principal(c))
	if err != nil {
		HandleError(c, err, "MyPayments")
		return
	}

	c.JSON(http.StatusOK, ListPaymentsResponse{Payments: toPaymentResponses(payments)})
}

func toPaymentResponses(payments []*domain.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, PaymentResponse{
			ID:        p.ID,
			OrderID:   p.OrderID,
			PaymentID: p.PaymentID,
			UserID:    p.UserID,
			Amount:    p.Amount,
			Currency:  p.Currency,
			Status:    string(p.Status),
			RefundID:  p.RefundID,
			Source:    string(p.Source),
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		})
	}
	return out
}
