// Package kafka — обёртка над kafka-go для публикации доменных событий
// (зачисления на курсы, подтверждённые платежи) в sink реального времени.
package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"example.com/course-payments/pkg/logger"
)

// TopicCourseEvents — топик по умолчанию для событий enrollment_created и payment_captured.
const TopicCourseEvents = "course.events"

// Ключи headers сообщений.
const (
	HeaderTraceID       = "trace_id"
	HeaderCorrelationID = "correlation_id"
	HeaderTimestamp     = "timestamp"
	HeaderEvent         = "event"
)

// Config содержит настройки подключения к Kafka.
type Config struct {
	Brokers      []string
	WriteTimeout time.Duration // 0 — значение kafka-go по умолчанию
}

// Message — сообщение для отправки.
type Message struct {
	Topic   string
	Key     []byte
	Value   []byte
	Headers map[string]string
	Time    time.Time
}

// toKafkaMessage конвертирует Message в kafka.Message, дополняя
// trace_id, correlation_id и timestamp из контекста, если их нет.
func (m *Message) toKafkaMessage(ctx context.Context) kafka.Message {
	headers := make(map[string]string, len(m.Headers)+3)
	for k, v := range m.Headers {
		headers[k] = v
	}

	if _, ok := headers[HeaderTraceID]; !ok {
		if traceID := logger.TraceIDFromContext(ctx); traceID != "" {
			headers[HeaderTraceID] = traceID
		}
	}
	if _, ok := headers[HeaderCorrelationID]; !ok {
		if correlationID := logger.CorrelationIDFromContext(ctx); correlationID != "" {
			headers[HeaderCorrelationID] = correlationID
		}
	}

	ts := m.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	if _, ok := headers[HeaderTimestamp]; !ok {
		headers[HeaderTimestamp] = ts.UTC().Format(time.RFC3339Nano)
	}

	kafkaHeaders := make([]kafka.Header, 0, len(headers))
	for k, v := range headers {
		kafkaHeaders = append(kafkaHeaders, kafka.Header{Key: k, Value: []byte(v)})
	}

	return kafka.Message{
		Topic:   m.Topic,
		Key:     m.Key,
		Value:   m.Value,
		Headers: kafkaHeaders,
		Time:    ts,
	}
}
