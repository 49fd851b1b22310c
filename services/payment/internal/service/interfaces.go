// Package service содержит бизнес-логику журнала оплат курсов:
// создание заказов, подтверждение оплаты двумя путями (клиент и webhook),
// материализацию зачислений, возвраты и backfill.
package service

import (
	"context"
	"time"

	"example.com/course-payments/services/payment/internal/razorpay"
)

// Gateway — платёжный шлюз. Реализуется razorpay.Client.
type Gateway interface {
	Configured() bool
	KeyID() string
	CreateOrder(ctx context.Context, req razorpay.CreateOrderRequest) (*razorpay.Order, error)
	FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error)
	FetchOrder(ctx context.Context, orderID string) (*razorpay.Order, error)
	Refund(ctx context.Context, paymentID string, req razorpay.RefundRequest) (*razorpay.Refund, error)
}

// SignatureVerifier — проверка HMAC подписей. Реализуется signature.Verifier.
type SignatureVerifier interface {
	VerifyPayment(orderRef, paymentID, sig string) error
	VerifyWebhook(body []byte, sig string) error
	WebhookConfigured() bool
}

// EventDeduper — быстрый фильтр повторных доставок webhook'а.
// Корректность не зависит от него: повтор всё равно безопасен для журнала.
type EventDeduper interface {
	// Acquire ставит отметку обработки или сообщает состояние уже существующей.
	Acquire(ctx context.Context, eventID string) (EventMark, error)
	// Complete помечает событие обработанным, после чего повторы пропускаются.
	Complete(ctx context.Context, eventID string)
	// Release снимает отметку, чтобы повтор шлюза был обработан.
	Release(ctx context.Context, eventID string)
}

// TokenRevoker отзывает токены удалённого пользователя. Реализуется jwt.Blacklist.
type TokenRevoker interface {
	InvalidateUser(ctx context.Context, userID string, ttl time.Duration) error
}
