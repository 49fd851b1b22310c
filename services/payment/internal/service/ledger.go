package service

import (
	"context"
	"errors"

	"example.com/course-payments/pkg/logger"
	"example.com/course-payments/pkg/metrics"
	"example.com/course-payments/services/payment/internal/domain"
	"example.com/course-payments/services/payment/internal/repository"
)

// Ledger записывает платежи в журнал.
// Корректность при гонках обеспечивают уникальные ключи order_id и payment_id:
// каждая запись — одно SQL выражение, без чтения перед записью.
type Ledger struct {
	payments repository.PaymentRepository
}

// NewLedger создаёт Ledger.
func NewLedger(payments repository.PaymentRepository) *Ledger {
	return &Ledger{payments: payments}
}

// RecordClient — запись с клиентского пути: insert-or-ignore.
// Возвращает true, если строка создана этим вызовом.
func (l *Ledger) RecordClient(ctx context.Context, payment *domain.Payment) (bool, error) {
	payment.Source = domain.SourceClient
	return l.insertIgnore(ctx, "client", payment)
}

// RecordBackfill — синтетическая строка backfill: insert-or-ignore.
func (l *Ledger) RecordBackfill(ctx context.Context, payment *domain.Payment) (bool, error) {
	payment.Source = domain.SourceBackfill
	return l.insertIgnore(ctx, "backfill", payment)
}

// RecordWebhook — запись с webhook пути: upsert с монотонным статусом.
func (l *Ledger) RecordWebhook(ctx context.Context, payment *domain.Payment) (domain.WriteResult, error) {
	payment.Source = domain.SourceWebhook

	if err := payment.Validate(); err != nil {
		return "", err
	}

	result, err := l.payments.Upsert(ctx, payment)
	if err != nil {
		metrics.LedgerWrites.WithLabelValues("webhook", "error").Inc()
		logger.Ctx(logger.WithPaymentRef(ctx, payment.OrderID, payment.PaymentID)).Error().
			Err(err).
			Msg("Ошибка записи платежа из webhook")
		return "", err
	}

	metrics.LedgerWrites.WithLabelValues("webhook", string(result)).Inc()
	return result, nil
}

// MarkRefunded отмечает возврат в журнале.
func (l *Ledger) MarkRefunded(ctx context.Context, paymentID, refundID string) error {
	return l.payments.MarkRefunded(ctx, paymentID, refundID)
}

// Lookup возвращает строку журнала по order_id.
func (l *Ledger) Lookup(ctx context.Context, orderID string) (*domain.Payment, error) {
	return l.payments.GetByOrderID(ctx, orderID)
}

func (l *Ledger) insertIgnore(ctx context.Context, path string, payment *domain.Payment) (bool, error) {
	if err := payment.Validate(); err != nil {
		return false, err
	}

	err := l.payments.InsertIgnore(ctx, payment)
	log := logger.Ctx(logger.WithPaymentRef(ctx, payment.OrderID, ""))

	switch {
	case err == nil:
		metrics.LedgerWrites.WithLabelValues(path, "inserted").Inc()
		return true, nil

	case errors.Is(err, domain.ErrDuplicateWrite):
		metrics.LedgerWrites.WithLabelValues(path, "duplicate").Inc()
		log.Debug().
			Str("path", path).
			Msg("Платёж уже записан")
		return false, nil

	default:
		metrics.LedgerWrites.WithLabelValues(path, "error").Inc()
		log.Error().
			Err(err).
			Str("path", path).
			Msg("Ошибка записи платежа")
		return false, err
	}
}
