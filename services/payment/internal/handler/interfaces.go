// Package handler содержит HTTP обработчики REST API сервиса платежей.
package handler

import (
	"context"

	"example.com/course-payments/services/payment/internal/domain"
	"example.com/course-payments/services/payment/internal/service"
)

// OrderService создаёт заказы. Реализуется *service.OrderInitiator.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd service.CreateOrderCommand) (*service.OrderResult, error)
}

// ConfirmationService принимает подтверждения оплаты с обоих путей.
// Реализуется *service.ConfirmationService.
type ConfirmationService interface {
	ConfirmClient(ctx context.Context, cmd service.ClientConfirmation) (*service.ConfirmResult, error)
	HandleWebhook(ctx context.Context, d service.WebhookDelivery) (*service.WebhookResult, error)
}

// RefundService выполняет возвраты. Реализуется *service.RefundCoordinator.
type RefundService interface {
	Refund(ctx context.Context, cmd service.RefundCommand) (*service.RefundResult, error)
}

// LedgerService — чтение журнала и backfill. Реализуется *service.Reconciler.
type LedgerService interface {
	Backfill(ctx context.Context, principal *domain.Principal) (*domain.BackfillReport, error)
	ListPayments(ctx context.Context, principal *domain.Principal, page domain.Page) (*service.PaymentList, error)
	MyPayments(ctx context.Context, principal *domain.Principal) ([]*domain.Payment, error)
}

// UserService — администрирование пользователей. Реализуется *service.UserAdmin.
type UserService interface {
	DeleteUser(ctx context.Context, principal *domain.Principal, userID int64) error
}
