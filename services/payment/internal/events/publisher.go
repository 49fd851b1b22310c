package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"example.com/course-payments/pkg/logger"
	"example.com/course-payments/pkg/metrics"
)

// DefaultTimeout — время на одну публикацию.
const DefaultTimeout = 5 * time.Second

// AsyncPublisher отправляет каждое событие в отдельной горутине
// с контекстом, отвязанным от запроса, и ограниченным таймаутом.
type AsyncPublisher struct {
	sink    Sink
	topic   string
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewAsyncPublisher создаёт публикатор поверх sink.
func NewAsyncPublisher(sink Sink, topic string, timeout time.Duration) *AsyncPublisher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &AsyncPublisher{sink: sink, topic: topic, timeout: timeout}
}

// Publish ставит событие на отправку и сразу возвращает управление.
func (p *AsyncPublisher) Publish(ctx context.Context, event Event) {
	// Запрос может завершиться раньше публикации: наследуем только значения контекста.
	detached := context.WithoutCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Ctx(detached).Error().
					Interface("panic", r).
					Str("event", event.Name).
					Msg("Паника при публикации события")
				metrics.EventsPublished.WithLabelValues(event.Name, "error").Inc()
			}
		}()

		pubCtx, cancel := context.WithTimeout(detached, p.timeout)
		defer cancel()

		if err := p.send(pubCtx, event); err != nil {
			logger.Ctx(detached).Warn().
				Err(err).
				Str("event", event.Name).
				Str("key", event.Key).
				Msg("Не удалось опубликовать событие")
			metrics.EventsPublished.WithLabelValues(event.Name, "error").Inc()
			return
		}

		metrics.EventsPublished.WithLabelValues(event.Name, "success").Inc()
	}()
}

func (p *AsyncPublisher) send(ctx context.Context, event Event) error {
	value, err := json.Marshal(Envelope{Event: event.Name, Payload: event.Payload})
	if err != nil {
		return fmt.Errorf("ошибка сериализации события: %w", err)
	}
	return p.sink.Send(ctx, p.topic, []byte(event.Key), value)
}

// Close ждёт завершения отправок, начатых до вызова, но не дольше ctx.
func (p *AsyncPublisher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("не все события отправлены: %w", ctx.Err())
	}
}
