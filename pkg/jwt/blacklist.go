package jwt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ключи совпадают с сервисом аутентификации: он пишет отзыв по jti,
// сервис платежей читает его и сам инвалидирует токены удалённых пользователей.
const (
	prefixToken = "jwt:blacklist:"   // jwt:blacklist:{jti}
	prefixUser  = "jwt:invalidated:" // jwt:invalidated:{userID}
)

// Blacklist — отозванные токены в Redis.
type Blacklist struct {
	redis *redis.Client
}

// NewBlacklist создаёт blacklist поверх клиента Redis.
func NewBlacklist(client *redis.Client) *Blacklist {
	return &Blacklist{redis: client}
}

// Check возвращает true, если токен с данным jti отозван.
func (b *Blacklist) Check(ctx context.Context, jti string) (bool, error) {
	exists, err := b.redis.Exists(ctx, prefixToken+jti).Result()
	if err != nil {
		return false, fmt.Errorf("ошибка проверки blacklist: %w", err)
	}
	return exists > 0, nil
}

// InvalidateUser отзывает все токены пользователя, выданные до текущего момента.
// ttl должен покрывать срок жизни самого долгого токена.
func (b *Blacklist) InvalidateUser(ctx context.Context, userID string, ttl time.Duration) error {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)

	if err := b.redis.Set(ctx, prefixUser+userID, timestamp, ttl).Err(); err != nil {
		return fmt.Errorf("ошибка инвалидации токенов пользователя: %w", err)
	}
	return nil
}

// IsUserInvalidated возвращает true, если токен выдан до инвалидации пользователя.
func (b *Blacklist) IsUserInvalidated(ctx context.Context, userID string, issuedAt time.Time) (bool, error) {
	val, err := b.redis.Get(ctx, prefixUser+userID).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ошибка проверки инвалидации пользователя: %w", err)
	}

	invalidatedAt, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return false, fmt.Errorf("ошибка парсинга timestamp инвалидации: %w", err)
	}

	return issuedAt.Unix() < invalidatedAt, nil
}
