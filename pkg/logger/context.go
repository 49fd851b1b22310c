package logger

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey string

const (
	traceIDKey       ctxKey = "trace_id"
	correlationIDKey ctxKey = "correlation_id"
	paymentRefKey    ctxKey = "payment_ref"
	loggerKey        ctxKey = "logger"
)

// paymentRef — ссылки на платёж, которые попадают в каждую запись лога.
type paymentRef struct {
	orderID   string
	paymentID string
}

// WithTraceID добавляет trace_id в контекст.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceIDFromContext возвращает trace_id или пустую строку.
func TraceIDFromContext(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// WithCorrelationID добавляет correlation_id в контекст.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey, correlationID)
}

// CorrelationIDFromContext возвращает correlation_id или пустую строку.
func CorrelationIDFromContext(ctx context.Context) string {
	if correlationID, ok := ctx.Value(correlationIDKey).(string); ok {
		return correlationID
	}
	return ""
}

// WithPaymentRef привязывает order_id и payment_id шлюза к контексту.
// Пустые значения не перетирают уже сохранённые.
func WithPaymentRef(ctx context.Context, orderID, paymentID string) context.Context {
	ref, _ := ctx.Value(paymentRefKey).(paymentRef)
	if orderID != "" {
		ref.orderID = orderID
	}
	if paymentID != "" {
		ref.paymentID = paymentID
	}
	return context.WithValue(ctx, paymentRefKey, ref)
}

// WithLogger кладёт настроенный логгер в контекст.
func WithLogger(ctx context.Context, l zerolog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext возвращает логгер из контекста (или глобальный) с полями
// trace_id, correlation_id, order_id и payment_id, если они известны.
//
//	log := logger.FromContext(ctx)
//	log.Info().Int64("amount", amount).Msg("Платёж записан")
func FromContext(ctx context.Context) zerolog.Logger {
	l := log
	if ctxLogger, ok := ctx.Value(loggerKey).(zerolog.Logger); ok {
		l = ctxLogger
	}

	fields := l.With()
	if traceID := TraceIDFromContext(ctx); traceID != "" {
		fields = fields.Str("trace_id", traceID)
	}
	if correlationID := CorrelationIDFromContext(ctx); correlationID != "" {
		fields = fields.Str("correlation_id", correlationID)
	}
	if ref, ok := ctx.Value(paymentRefKey).(paymentRef); ok {
		if ref.orderID != "" {
			fields = fields.Str("order_id", ref.orderID)
		}
		if ref.paymentID != "" {
			fields = fields.Str("payment_id", ref.paymentID)
		}
	}

	return fields.Logger()
}

// Ctx — то же, что FromContext, но возвращает указатель.
func Ctx(ctx context.Context) *zerolog.Logger {
	l := FromContext(ctx)
	return &l
}

// NewContextWithIDs добавляет непустые trace_id и correlation_id.
func NewContextWithIDs(ctx context.Context, traceID, correlationID string) context.Context {
	if traceID != "" {
		ctx = WithTraceID(ctx, traceID)
	}
	if correlationID != "" {
		ctx = WithCorrelationID(ctx, correlationID)
	}
	return ctx
}
