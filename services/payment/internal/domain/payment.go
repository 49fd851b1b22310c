package domain

import (
	"strings"
	"time"
)

// PaymentStatus — статус платежа в журнале.
type PaymentStatus string

const (
	// PaymentStatusCreated — заказ создан, оплата не захвачена.
	PaymentStatusCreated PaymentStatus = "created"

	// PaymentStatusCaptured — оплата захвачена шлюзом.
	PaymentStatusCaptured PaymentStatus = "captured"

	// PaymentStatusRefunded — оплата возвращена.
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// UnknownPaymentID — идентификатор платежа для строк, синтезированных backfill.
// В БД хранится как NULL.
const UnknownPaymentID = "unknown"

// Rank возвращает порядок статуса: created < captured < refunded.
// Неизвестный статус — 0.
func (s PaymentStatus) Rank() int {
	switch s {
	case PaymentStatusCreated:
		return 1
	case PaymentStatusCaptured:
		return 2
	case PaymentStatusRefunded:
		return 3
	default:
		return 0
	}
}

// Valid сообщает, известен ли статус.
func (s PaymentStatus) Valid() bool {
	return s.Rank() > 0
}

// CanTransitionTo — статус не откатывается назад. Повтор того же статуса допустим.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return next.Valid() && next.Rank() >= s.Rank()
}

// Merge возвращает статус после применения next к s.
func (s PaymentStatus) Merge(next PaymentStatus) PaymentStatus {
	if s.CanTransitionTo(next) {
		return next
	}
	return s
}

// ParseGatewayStatus переводит статус платежа шлюза в статус журнала.
// ok=false для статусов, которые не записываются (failed и прочие).
func ParseGatewayStatus(status string) (PaymentStatus, bool) {
	switch strings.ToLower(status) {
	case "created", "authorized":
		return PaymentStatusCreated, true
	case "captured":
		return PaymentStatusCaptured, true
	case "refunded":
		return PaymentStatusRefunded, true
	default:
		return "", false
	}
}

// Source — путь, которым строка попала в журнал. Только для информации.
type Source string

const (
	SourceClient   Source = "client"
	SourceWebhook  Source = "webhook"
	SourceBackfill Source = "backfill"
)

// Payment — строка журнала платежей.
type Payment struct {
	ID        int64
	OrderID   string // пусто только у старых строк
	PaymentID string // UnknownPaymentID у синтетических строк
	UserID    *int64 // nil после удаления пользователя
	Amount    int64  // в минимальных единицах (пайсы)
	Currency  string
	Status    PaymentStatus
	RefundID  string
	Source    Source
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasRealPaymentID сообщает, пришёл ли payment_id от шлюза.
func (p *Payment) HasRealPaymentID() bool {
	return p.PaymentID != "" && p.PaymentID != UnknownPaymentID
}

// Validate проверяет поля перед записью в журнал.
func (p *Payment) Validate() error {
	if p.OrderID == "" {
		return InvalidInputf("order_id обязателен")
	}
	if p.PaymentID == "" {
		return InvalidInputf("payment_id обязателен")
	}
	if p.Amount < 0 {
		return InvalidInputf("сумма не может быть отрицательной")
	}
	if p.Currency == "" {
		return InvalidInputf("currency обязательна")
	}
	if !p.Status.Valid() {
		return InvalidInputf("неизвестный статус %q", p.Status)
	}
	return nil
}

// WriteResult — итог записи в журнал.
type WriteResult string

const (
	WriteInserted  WriteResult = "inserted"
	WriteUpdated   WriteResult = "updated"
	WriteUnchanged WriteResult = "unchanged"
)

// Page — параметры постраничного чтения.
type Page struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize приводит параметры к допустимым значениям.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// Offset возвращает смещение для SQL.
func (p Page) Offset() int {
	return (p.Page - 1) * p.PageSize
}
