package service

import (
	"context"
	"encoding/json"
	"errors"

	"example.com/course-payments/pkg/logger"
	"example.com/course-payments/pkg/metrics"
	"example.com/course-payments/services/payment/internal/domain"
	"example.com/course-payments/services/payment/internal/razorpay"
)

// События шлюза, которые пишутся в журнал.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentRefunded = "payment.refunded"
)

// Статусы обработки webhook'а.
const (
	WebhookProcessed = "processed"
	WebhookIgnored   = "ignored"
	WebhookDuplicate = "duplicate"
)

// WebhookDelivery — доставка webhook'а: сырое тело и заголовки.
type WebhookDelivery struct {
	Body      []byte
	Signature string
	EventID   string // x-razorpay-event-id, может быть пустым
}

// WebhookResult — итог обработки.
type WebhookResult struct {
	Status      string                    `json:"status"`
	Event       string                    `json:"event,omitempty"`
	Write       domain.WriteResult        `json:"write,omitempty"`
	Enrollments *domain.MaterializeResult `json:"enrollments,omitempty"`
}

// webhookEnvelope — интересующая нас часть тела webhook'а.
type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity razorpay.Payment `json:"entity"`
		} `json:"payment"`
		Refund *struct {
			Entity razorpay.Refund `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

// HandleWebhook проверяет подпись и пишет событие в журнал upsert'ом.
// Неизвестные события подтверждаются и игнорируются.
func (s *ConfirmationService) HandleWebhook(ctx context.Context, d WebhookDelivery) (result *WebhookResult, err error) {
	log := logger.Ctx(ctx)

	if err := s.verifier.VerifyWebhook(d.Body, d.Signature); err != nil {
		if errors.Is(err, domain.ErrNotConfigured) {
			log.Warn().Str("condition", "webhook_ignored").Msg("Секрет webhook не настроен, событие проигнорировано")
			metrics.WebhookEvents.WithLabelValues("unknown", WebhookIgnored).Inc()
			return &WebhookResult{Status: WebhookIgnored}, nil
		}
		log.Warn().Err(err).Msg("Подпись webhook отклонена")
		metrics.WebhookEvents.WithLabelValues("unknown", "rejected").Inc()
		return nil, err
	}

	var envelope webhookEnvelope
	if err := json.Unmarshal(d.Body, &envelope); err != nil {
		return nil, domain.InvalidInputf("некорректное тело webhook: %v", err)
	}

	switch s.acquire(ctx, d.EventID) {
	case EventDone:
		log.Info().Str("event_id", d.EventID).Msg("Повторная доставка webhook пропущена")
		metrics.WebhookEvents.WithLabelValues(envelope.Event, WebhookDuplicate).Inc()
		return &WebhookResult{Status: WebhookDuplicate, Event: envelope.Event}, nil
	case EventInProgress:
		log.Info().Str("event_id", d.EventID).Msg("Событие webhook ещё обрабатывается, шлюз повторит доставку")
		metrics.WebhookEvents.WithLabelValues(envelope.Event, "in_progress").Inc()
		return nil, domain.ErrEventInProgress
	}
	defer func() {
		// Отметку снимаем, чтобы повтор шлюза обработал событие заново.
		if err != nil {
			s.release(ctx, d.EventID)
			return
		}
		s.complete(ctx, d.EventID)
	}()

	result, err = s.processWebhook(ctx, &envelope)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(envelope.Event, "error").Inc()
		return nil, err
	}

	metrics.WebhookEvents.WithLabelValues(envelope.Event, result.Status).Inc()
	return result, nil
}

func (s *ConfirmationService) processWebhook(ctx context.Context, envelope *webhookEnvelope) (*WebhookResult, error) {
	var status domain.PaymentStatus
	switch envelope.Event {
	case EventPaymentCaptured:
		status = domain.PaymentStatusCaptured
	case EventPaymentRefunded:
		status = domain.PaymentStatusRefunded
	default:
		logger.Ctx(ctx).Debug().Str("event", envelope.Event).Msg("Событие webhook не обрабатывается")
		return &WebhookResult{Status: WebhookIgnored, Event: envelope.Event}, nil
	}

	if envelope.Payload.Payment == nil || envelope.Payload.Payment.Entity.ID == "" {
		return nil, domain.InvalidInputf("в webhook нет payment entity")
	}
	payment := envelope.Payload.Payment.Entity

	ctx = logger.WithPaymentRef(ctx, payment.OrderID, payment.ID)
	log := logger.Ctx(ctx)

	if payment.OrderID == "" {
		log.Warn().Str("condition", "webhook_ignored").Msg("Платёж без order_id, событие проигнорировано")
		return &WebhookResult{Status: WebhookIgnored, Event: envelope.Event}, nil
	}

	userID, courseIDs := s.resolveOwner(ctx, &payment)

	entry := &domain.Payment{
		OrderID:   payment.OrderID,
		PaymentID: payment.ID,
		UserID:    userID,
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		Status:    status,
	}
	if envelope.Payload.Refund != nil {
		entry.RefundID = envelope.Payload.Refund.Entity.ID
	}

	write, err := s.ledger.RecordWebhook(ctx, entry)
	if err != nil {
		return nil, err
	}

	result := &WebhookResult{Status: WebhookProcessed, Event: envelope.Event, Write: write}

	if status == domain.PaymentStatusCaptured && userID != nil && len(courseIDs) > 0 {
		enrollments, err := s.materializer.Materialize(ctx, *userID, courseIDs, payment.OrderID)
		if err != nil {
			return nil, err
		}
		result.Enrollments = &enrollments
	}

	if status == domain.PaymentStatusCaptured && write == domain.WriteInserted {
		s.publishCaptured(ctx, entry)
	}

	log.Info().
		Str("event", envelope.Event).
		Str("write", string(write)).
		Msg("Webhook обработан")

	return result, nil
}

// resolveOwner берёт user_id и course_ids из notes платежа,
// а если их там нет — из notes заказа.
func (s *ConfirmationService) resolveOwner(ctx context.Context, payment *razorpay.Payment) (*int64, []int64) {
	userNote := payment.Notes[razorpay.NoteUserID]
	courseIDs := courseIDsFromNotes(payment.Notes)

	if userNote == "" || len(courseIDs) == 0 {
		order, err := s.gateway.FetchOrder(ctx, payment.OrderID)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("Не удалось получить notes заказа")
		} else {
			if userNote == "" {
				userNote = order.Notes[razorpay.NoteUserID]
			}
			if len(courseIDs) == 0 {
				courseIDs = courseIDsFromNotes(order.Notes)
			}
		}
	}

	if userNote == "" {
		return nil, courseIDs
	}

	id, err := domain.ParseUserID(userNote)
	if err != nil {
		logger.Ctx(ctx).Warn().Str("user_id", userNote).Msg("Некорректный user_id в notes")
		return nil, courseIDs
	}
	return &id, courseIDs
}

func (s *ConfirmationService) acquire(ctx context.Context, eventID string) EventMark {
	if eventID == "" || s.deduper == nil {
		return EventAcquired
	}

	mark, err := s.deduper.Acquire(ctx, eventID)
	if err != nil {
		// Redis недоступен — обрабатываем, журнал защищён уникальными ключами.
		logger.Ctx(ctx).Warn().Err(err).Str("event_id", eventID).Msg("Ошибка дедупликации webhook")
		return EventAcquired
	}
	return mark
}

func (s *ConfirmationService) complete(ctx context.Context, eventID string) {
	if eventID == "" || s.deduper == nil {
		return
	}
	s.deduper.Complete(ctx, eventID)
}

func (s *ConfirmationService) release(ctx context.Context, eventID string) {
	if eventID == "" || s.deduper == nil {
		return
	}
	s.deduper.Release(ctx, eventID)
}
