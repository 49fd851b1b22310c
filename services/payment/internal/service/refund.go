package service

import (
	"context"
	"encoding/json"
	"strings"

	"example.com/course-payments/pkg/logger"
	"example.com/course-payments/pkg/metrics"
	"example.com/course-payments/services/payment/internal/domain"
	"example.com/course-payments/services/payment/internal/razorpay"
)

// RefundCommand — запрос администратора на возврат.
// Amount необязателен: без него возвращается весь остаток.
type RefundCommand struct {
	Principal *domain.Principal
	PaymentID string
	Amount    json.RawMessage
	Reason    string
}

// RefundResult — итог возврата.
// LedgerSynced=false: шлюз вернул деньги, а журнал не обновился.
type RefundResult struct {
	RefundID     string `json:"refund_id"`
	PaymentID    string `json:"payment_id"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	LedgerSynced bool   `json:"ledger_synced"`
}

// RefundCoordinator выполняет возвраты через шлюз и отражает их в журнале.
type RefundCoordinator struct {
	gateway Gateway
	ledger  *Ledger
}

// NewRefundCoordinator создаёт RefundCoordinator.
func NewRefundCoordinator(gateway Gateway, ledger *Ledger) *RefundCoordinator {
	return &RefundCoordinator{gateway: gateway, ledger: ledger}
}

// Refund возвращает платёж. Автоматических повторов нет.
func (s *RefundCoordinator) Refund(ctx context.Context, cmd RefundCommand) (*RefundResult, error) {
	if err := domain.Require(cmd.Principal, domain.RoleAdmin); err != nil {
		return nil, err
	}

	paymentID := strings.TrimSpace(cmd.PaymentID)
	if paymentID == "" {
		return nil, domain.InvalidInputf("paymentId обязателен")
	}
	if paymentID == domain.UnknownPaymentID {
		metrics.Refunds.WithLabelValues("not_refundable").Inc()
		return nil, domain.ErrNotRefundable
	}

	requested, err := domain.ParseRefundAmount(cmd.Amount)
	if err != nil {
		return nil, err
	}

	ctx = logger.WithPaymentRef(ctx, "", paymentID)
	log := logger.Ctx(ctx)

	payment, err := s.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		metrics.Refunds.WithLabelValues("error").Inc()
		return nil, err
	}

	remaining := domain.RemainingRefundable(payment.Amount, payment.AmountRefunded)
	status, _ := domain.ParseGatewayStatus(payment.Status)

	if status == domain.PaymentStatusRefunded || remaining <= 0 {
		metrics.Refunds.WithLabelValues("already_refunded").Inc()
		return nil, domain.ErrAlreadyRefunded
	}
	if status != domain.PaymentStatusCaptured {
		metrics.Refunds.WithLabelValues("not_refundable").Inc()
		return nil, domain.ErrNotRefundable
	}

	amount := domain.RefundAmount(requested, remaining)

	req := razorpay.RefundRequest{Amount: amount}
	if cmd.Reason != "" {
		req.Notes = razorpay.Notes{razorpay.NoteReason: cmd.Reason}
	}

	refund, err := s.gateway.Refund(ctx, paymentID, req)
	if err != nil {
		metrics.Refunds.WithLabelValues("error").Inc()
		return nil, err
	}

	result := &RefundResult{
		RefundID:     refund.ID,
		PaymentID:    paymentID,
		Amount:       refund.Amount,
		Currency:     payment.Currency,
		Status:       refund.Status,
		LedgerSynced: true,
	}
	if result.Amount == 0 {
		result.Amount = amount
	}

	if err := s.ledger.MarkRefunded(ctx, paymentID, refund.ID); err != nil {
		result.LedgerSynced = false
		metrics.LedgerInconsistent.Inc()
		metrics.Refunds.WithLabelValues("inconsistent").Inc()
		log.Error().
			Err(err).
			Str("condition", "inconsistent_state").
			Str("refund_id", refund.ID).
			Int64("amount", amount).
			Msg("Возврат выполнен в шлюзе, но журнал не обновлён")
		return result, nil
	}

	metrics.Refunds.WithLabelValues("success").Inc()
	log.Info().
		Str("refund_id", refund.ID).
		Int64("amount", amount).
		Int64("remaining_before", remaining).
		Msg("Возврат выполнен")

	return result, nil
}
