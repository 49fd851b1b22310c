package service

import (
	"context"
	"time"

	"example.com/course-payments/pkg/logger"
	"example.com/course-payments/services/payment/internal/domain"
	"example.com/course-payments/services/payment/internal/events"
	"example.com/course-payments/services/payment/internal/razorpay"
)

// ClientConfirmation — подтверждение оплаты от клиента после checkout.
// OrderRef берётся из RazorpayOrderID, если он передан, иначе из OrderID.
type ClientConfirmation struct {
	Principal       *domain.Principal
	OrderID         string
	RazorpayOrderID string
	PaymentID       string
	Signature       string
}

// OrderRef возвращает ссылку на заказ, по которой считается подпись.
func (c ClientConfirmation) OrderRef() string {
	if c.RazorpayOrderID != "" {
		return c.RazorpayOrderID
	}
	return c.OrderID
}

// ConfirmResult — итог клиентского подтверждения.
type ConfirmResult struct {
	OrderID     string                   `json:"order_id"`
	PaymentID   string                   `json:"payment_id"`
	Status      domain.PaymentStatus     `json:"status"`
	Amount      int64                    `json:"amount"`
	Currency    string                   `json:"currency"`
	Recorded    bool                     `json:"recorded"` // false — платёж уже был в журнале
	Enrollments domain.MaterializeResult `json:"enrollments"`
}

// ConfirmationService обрабатывает оба пути подтверждения оплаты.
// Пути не координируются между собой: сходимость журнала обеспечивают
// уникальные ключи и однострочные записи Ledger.
type ConfirmationService struct {
	gateway      Gateway
	verifier     SignatureVerifier
	ledger       *Ledger
	materializer *Materializer
	publisher    events.Publisher
	deduper      EventDeduper
}

// NewConfirmationService создаёт ConfirmationService. deduper может быть nil.
func NewConfirmationService(
	gateway Gateway,
	verifier SignatureVerifier,
	ledger *Ledger,
	materializer *Materializer,
	publisher events.Publisher,
	deduper EventDeduper,
) *ConfirmationService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &ConfirmationService{
		gateway:      gateway,
		verifier:     verifier,
		ledger:       ledger,
		materializer: materializer,
		publisher:    publisher,
		deduper:      deduper,
	}
}

// ConfirmClient проверяет подпись, получает у шлюза авторитетные данные
// платежа и заказа, пишет журнал insert-or-ignore и создаёт зачисления.
func (s *ConfirmationService) ConfirmClient(ctx context.Context, cmd ClientConfirmation) (*ConfirmResult, error) {
	if err := domain.Require(cmd.Principal, domain.RoleStudent); err != nil {
		return nil, err
	}

	orderRef := cmd.OrderRef()
	ctx = logger.WithPaymentRef(ctx, orderRef, cmd.PaymentID)
	log := logger.Ctx(ctx)

	if err := s.verifier.VerifyPayment(orderRef, cmd.PaymentID, cmd.Signature); err != nil {
		log.Warn().Err(err).Int64("user_id", cmd.Principal.UserID).Msg("Подпись подтверждения отклонена")
		return nil, err
	}

	payment, err := s.gateway.FetchPayment(ctx, cmd.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment.OrderID != "" && payment.OrderID != orderRef {
		return nil, domain.InvalidInputf("платёж относится к другому заказу")
	}

	status, ok := domain.ParseGatewayStatus(payment.Status)
	if !ok {
		return nil, domain.InvalidInputf("платёж в статусе %q не может быть подтверждён", payment.Status)
	}

	order, err := s.gateway.FetchOrder(ctx, orderRef)
	if err != nil {
		return nil, err
	}

	if noteUser := order.Notes[razorpay.NoteUserID]; noteUser != "" && noteUser != cmd.Principal.ID() {
		log.Warn().
			Int64("user_id", cmd.Principal.UserID).
			Str("order_user_id", noteUser).
			Msg("Попытка подтвердить чужой заказ")
		return nil, domain.ErrForbidden
	}

	courseIDs := courseIDsFromNotes(order.Notes, payment.Notes)

	userID := cmd.Principal.UserID
	entry := &domain.Payment{
		OrderID:   orderRef,
		PaymentID: payment.ID,
		UserID:    &userID,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Status:    status,
	}

	inserted, err := s.ledger.RecordClient(ctx, entry)
	if err != nil {
		return nil, err
	}

	result := &ConfirmResult{
		OrderID:   orderRef,
		PaymentID: payment.ID,
		Status:    status,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Recorded:  inserted,
	}

	// Строка могла уже уйти вперёд по webhook'у (например, refunded).
	if !inserted {
		if stored, err := s.ledger.Lookup(ctx, orderRef); err == nil {
			result.Status = stored.Status
		} else {
			log.Warn().Err(err).Msg("Не удалось прочитать существующую строку журнала")
		}
	}

	if status != domain.PaymentStatusCaptured {
		return result, nil
	}

	if len(courseIDs) == 0 {
		log.Warn().Msg("В notes заказа нет course_ids, зачисления не созданы")
	} else {
		result.Enrollments, err = s.materializer.Materialize(ctx, userID, courseIDs, orderRef)
		if err != nil {
			return nil, err
		}
	}

	if inserted {
		s.publishCaptured(ctx, entry)
	}

	log.Info().
		Bool("recorded", inserted).
		Int("enrollments_created", result.Enrollments.Created).
		Msg("Оплата подтверждена клиентом")

	return result, nil
}

func (s *ConfirmationService) publishCaptured(ctx context.Context, p *domain.Payment) {
	if p.UserID == nil {
		return
	}
	s.publisher.Publish(ctx, events.Event{
		Name: events.EventPaymentCaptured,
		Key:  formatID(*p.UserID),
		Payload: events.PaymentCaptured{
			UserID:    *p.UserID,
			OrderID:   p.OrderID,
			PaymentID: p.PaymentID,
			Amount:    p.Amount,
			Currency:  p.Currency,
			Source:    string(p.Source),
			Timestamp: time.Now().UTC(),
		},
	})
}

// courseIDsFromNotes берёт course_ids из первого набора notes, где они разбираются.
func courseIDsFromNotes(notes ...razorpay.Notes) []int64 {
	for _, n := range notes {
		raw := n[razorpay.NoteCourseIDs]
		if raw == "" {
			continue
		}
		if ids, err := domain.ParseCourseIDList(raw); err == nil {
			return ids
		}
	}
	return nil
}
