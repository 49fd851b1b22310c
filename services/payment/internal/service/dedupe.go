package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/course-payments/pkg/logger"
)

const (
	// webhookEventKeyPrefix — префикс ключей событий webhook'а в Redis.
	webhookEventKeyPrefix = "webhook:event:"

	// defaultDedupeTTL — сколько помнить обработанный event id.
	defaultDedupeTTL = 24 * time.Hour

	// defaultProcessingTTL — сколько живёт отметка незавершённой обработки.
	// После падения процесса отметка истекает, и повтор шлюза проходит.
	defaultProcessingTTL = 2 * time.Minute

	markProcessing = "processing"
	markDone       = "done"
)

// EventMark — состояние события в дедупликаторе.
type EventMark int

const (
	// EventAcquired — отметка поставлена этим вызовом, событие надо обработать.
	EventAcquired EventMark = iota
	// EventDone — событие уже успешно обработано.
	EventDone
	// EventInProgress — событие обрабатывает другая доставка.
	EventInProgress
)

// RedisDeduper отмечает события webhook'а в Redis.
// SETNX ставит короткую отметку processing; только успешная обработка
// заменяет её на done с длинным TTL.
type RedisDeduper struct {
	client        *redis.Client
	ttl           time.Duration
	processingTTL time.Duration
}

// NewRedisDeduper создаёт RedisDeduper. Нулевые TTL заменяются значениями по умолчанию.
func NewRedisDeduper(client *redis.Client, ttl, processingTTL time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	if processingTTL <= 0 {
		processingTTL = defaultProcessingTTL
	}
	return &RedisDeduper{client: client, ttl: ttl, processingTTL: processingTTL}
}

// Acquire пытается поставить отметку processing.
func (d *RedisDeduper) Acquire(ctx context.Context, eventID string) (EventMark, error) {
	key := webhookEventKeyPrefix + eventID

	// Второй проход нужен, если отметка истекла между SETNX и GET.
	for attempt := 0; attempt < 2; attempt++ {
		ok, err := d.client.SetNX(ctx, key, markProcessing, d.processingTTL).Result()
		if err != nil {
			return EventAcquired, err
		}
		if ok {
			return EventAcquired, nil
		}

		mark, err := d.client.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			return EventAcquired, err
		case mark == markDone:
			return EventDone, nil
		default:
			return EventInProgress, nil
		}
	}
	return EventInProgress, nil
}

// Complete помечает событие обработанным.
func (d *RedisDeduper) Complete(ctx context.Context, eventID string) {
	if err := d.client.Set(context.WithoutCancel(ctx), webhookEventKeyPrefix+eventID, markDone, d.ttl).Err(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("event_id", eventID).Msg("Не удалось отметить webhook обработанным")
	}
}

// Release удаляет отметку.
func (d *RedisDeduper) Release(ctx context.Context, eventID string) {
	if err := d.client.Del(context.WithoutCancel(ctx), webhookEventKeyPrefix+eventID).Err(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("event_id", eventID).Msg("Не удалось снять отметку webhook")
	}
}
