// Package events публикует доменные события в sink реального времени.
// Публикация fire-and-forget: ошибки логируются и считаются, но не
// влияют на результат операции.
package events

import (
	"context"
	"time"
)

// Имена событий.
const (
	EventEnrollmentCreated = "enrollment_created"
	EventPaymentCaptured   = "payment_captured"
)

// Event — событие для публикации. Key — ключ партиционирования (id пользователя).
type Event struct {
	Name    string
	Key     string
	Payload any
}

// Envelope — формат сообщения в топике.
type Envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// EnrollmentCreated — payload события enrollment_created.
type EnrollmentCreated struct {
	UserID    int64     `json:"user_id"`
	CourseID  int64     `json:"course_id"`
	OrderID   string    `json:"order_id"`
	Timestamp time.Time `json:"timestamp"`
}

// PaymentCaptured — payload события payment_captured.
type PaymentCaptured struct {
	UserID    int64     `json:"user_id"`
	OrderID   string    `json:"order_id"`
	PaymentID string    `json:"payment_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher публикует события, не блокируя вызывающего.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Sink — транспорт событий. kafka.Producer удовлетворяет интерфейсу.
type Sink interface {
	Send(ctx context.Context, topic string, key, value []byte) error
}

// NoopPublisher отбрасывает события (Kafka не настроена).
type NoopPublisher struct{}

// Publish ничего не делает.
func (NoopPublisher) Publish(context.Context, Event) {}
