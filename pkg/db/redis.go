package db

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/course-payments/pkg/config"
)

// ConnectRedis создаёт клиент Redis и проверяет доступность.
// Redis используется как быстрый слой (дедупликация webhook, rate limit, blacklist),
// поэтому недоступность возвращается ошибкой, а решение принимает вызывающий.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return client, fmt.Errorf("ошибка ping Redis %s: %w", cfg.Addr(), err)
	}

	return client, nil
}
