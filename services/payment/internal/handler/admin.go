package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"example.com/course-payments/services/payment/internal/domain"
	"example.com/course-payments/services/payment/internal/httputil"
	"example.com/course-payments/services/payment/internal/service"
)

// AdminHandler — административные маршруты: возвраты, журнал, пользователи.
type AdminHandler struct {
	refunds RefundService
	ledger  LedgerService
	users   UserService
}

// NewAdminHandler создаёт AdminHandler.
func NewAdminHandler(refunds RefundService, ledger LedgerService, users UserService) *AdminHandler {
	return &AdminHandler{refunds: refunds, ledger: ledger, users: users}
}

// RefundRequest — запрос возврата. amount необязателен.
type RefundRequest struct {
	PaymentID string          `json:"paymentId"`
	Amount    json.RawMessage `json:"amount"`
	Reason    string          `json:"reason"`
}

// Refund возвращает платёж.
// POST /api/v1/payments/refund
func (h *AdminHandler) Refund(c *gin.Context) {
	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Невалидные данные запроса")
		return
	}

	result, err := h.refunds.Refund(c.Request.Context(), service.RefundCommand{
		Principal: httputil.Principal(c),
		PaymentID: req.PaymentID,
		Amount:    req.Amount,
		Reason:    req.Reason,
	})
	if err != nil {
		HandleError(c, err, "Refund")
		return
	}

	c.JSON(http.StatusOK, result)
}

// Backfill запускает сверку журнала.
// POST /api/v1/payments/backfill
func (h *AdminHandler) Backfill(c *gin.Context) {
	report, err := h.ledger.Backfill(c.Request.Context(), httputil.Principal(c))
	if err != nil {
		HandleError(c, err, "Backfill")
		return
	}

	c.JSON(http.StatusOK, report)
}

// ListPayments возвращает страницу журнала.
// GET /api/v1/payments?page=1&page_size=20
func (h *AdminHandler) ListPayments(c *gin.Context) {
	page, err := parsePage(c)
	if err != nil {
		HandleError(c, err, "ListPayments")
		return
	}

	list, err := h.ledger.ListPayments(c.Request.Context(), httputil.Principal(c), page)
	if err != nil {
		HandleError(c, err, "ListPayments")
		return
	}

	totalPages := 0
	if list.PageSize > 0 {
		totalPages = int((list.Total + int64(list.PageSize) - 1) / int64(list.PageSize))
	}

	c.JSON(http.StatusOK, ListPaymentsResponse{
		Payments: toPaymentResponses(list.Items),
		Pagination: &PaginationResponse{
			CurrentPage: list.Page,
			PageSize:    list.PageSize,
			TotalItems:  list.Total,
			TotalPages:  totalPages,
		},
	})
}

// DeleteUser удаляет пользователя.
// DELETE /api/v1/admin/users/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	userID, err := domain.ParseUserID(c.Param("id"))
	if err != nil {
		HandleError(c, err, "DeleteUser")
		return
	}

	if err := h.users.DeleteUser(c.Request.Context(), httputil.Principal(c), userID); err != nil {
		HandleError(c, err, "DeleteUser")
		return
	}

	c.Status(http.StatusNoContent)
}

func parsePage(c *gin.Context) (domain.Page, error) {
	var page domain.Page
	for _, q := range []struct {
		name string
		dst  *int
	}{
		{"page", &page.Page},
		{"page_size", &page.PageSize},
	} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return domain.Page{}, domain.InvalidInputf("%s должен быть положительным числом", q.name)
		}
		*q.dst = v
	}
	return page, nil
}
