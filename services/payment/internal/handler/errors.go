package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/course-payments/pkg/logger"
	"example.com/course-payments/services/payment/internal/domain"
)

// ErrorResponse — стандартный формат ошибки API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// GatewayErrorResponse — ошибка шлюза, переданная клиенту как есть.
type GatewayErrorResponse struct {
	Error       string `json:"error"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Field       string `json:"field,omitempty"`
}

const internalMessage = "Внутренняя ошибка сервера"

// HandleError преобразует доменную ошибку в HTTP ответ.
// Текст внутренних ошибок наружу не отдаётся, только логируется.
func HandleError(c *gin.Context, err error, operation string) {
	log := logger.FromContext(c.Request.Context())

	if err == nil {
		log.Error().Str("operation", operation).Msg("HandleError вызван с nil ошибкой")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: internalMessage})
		return
	}

	var gatewayErr *domain.GatewayError
	if errors.As(err, &gatewayErr) {
		status := gatewayErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		log.Warn().
			Err(err).
			Str("operation", operation).
			Int("gateway_status", gatewayErr.StatusCode).
			Msg("Ошибка платёжного шлюза")
		c.JSON(status, GatewayErrorResponse{
			Error:       "gateway_error",
			Code:        gatewayErr.Code,
			Description: gatewayErr.Description,
			Field:       gatewayErr.Field,
		})
		return
	}

	status, code, sentinel := classify(err)
	switch {
	case sentinel == nil:
		log.Error().Err(err).Str("operation", operation).Msg("Внутренняя ошибка")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: internalMessage})
		return
	case errors.Is(sentinel, domain.ErrNotConfigured):
		log.Error().Str("operation", operation).Msg("Платёжный шлюз не настроен")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: internalMessage})
		return
	}

	// Подробности (текст декодера, разбор полей) остаются в логе.
	log.Debug().Err(err).Str("operation", operation).Str("code", code).Msg("Запрос отклонён")
	c.JSON(status, ErrorResponse{Error: code, Message: sentinel.Error()})
}

// classify возвращает HTTP статус, код и доменную ошибку, текст которой
// уходит клиенту. nil sentinel — ошибка внутренняя.
func classify(err error) (int, string, error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			return m.status, m.code, m.sentinel
		}
	}
	return http.StatusInternalServerError, "internal_error", nil
}

var errorMappings = []struct {
	sentinel error
	status   int
	code     string
}{
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{domain.ErrInvalidSignature, http.StatusBadRequest, "invalid_signature"},
	{domain.ErrNotRefundable, http.StatusBadRequest, "not_refundable"},
	{domain.ErrAlreadyRefunded, http.StatusConflict, "already_refunded"},
	{domain.ErrEventInProgress, http.StatusConflict, "event_in_progress"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrGatewayUnavailable, http.StatusServiceUnavailable, "gateway_unavailable"},
	{domain.ErrNotConfigured, http.StatusInternalServerError, "internal_error"},
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: message})
}
