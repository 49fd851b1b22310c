package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/course-payments/pkg/logger"
	"example.com/course-payments/services/payment/internal/service"
)

// Заголовки webhook'а шлюза.
const (
	HeaderWebhookSignature = "X-Razorpay-Signature"
	HeaderWebhookEventID   = "X-Razorpay-Event-Id"
)

// DefaultMaxWebhookBody — предел тела webhook'а по умолчанию.
const DefaultMaxWebhookBody int64 = 1 << 20

// WebhookHandler принимает webhook'и шлюза. Маршрут публичный,
// подлинность проверяется HMAC подписью сырого тела.
type WebhookHandler struct {
	confirmation ConfirmationService
	maxBodySize  int64
}

// NewWebhookHandler создаёт WebhookHandler.
func NewWebhookHandler(confirmation ConfirmationService, maxBodySize int64) *WebhookHandler {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxWebhookBody
	}
	return &WebhookHandler{confirmation: confirmation, maxBodySize: maxBodySize}
}

// Handle обрабатывает доставку.
// POST /api/v1/payments/webhook
func (h *WebhookHandler) Handle(c *gin.Context) {
	// Подпись считается по байтам как есть, поэтому тело не биндим.
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "payload_too_large", Message: "Тело запроса слишком большое"})
			return
		}
		logger.Ctx(c.Request.Context()).Warn().Err(err).Msg("Ошибка чтения тела webhook")
		badRequest(c, "Не удалось прочитать тело запроса")
		return
	}

	result, err := h.confirmation.HandleWebhook(c.Request.Context(), service.WebhookDelivery{
		Body:      body,
		Signature: c.GetHeader(HeaderWebhookSignature),
		EventID:   c.GetHeader(HeaderWebhookEventID),
	})
	if err != nil {
		HandleError(c, err, "Webhook")
		return
	}

	c.JSON(http.StatusOK, result)
}
