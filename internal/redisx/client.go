package redisx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// New создаёт Redis-клиент для кэша статусов заказов.
func New(addr string) *redis.Client {
	r := redis.NewClient(&redis.Options{Addr: addr})
	_ = r.WithTimeout(2 * time.Second)
	return r
}

// Ping проверяет доступность Redis. Используется health-чекером.
func Ping(ctx context.Context, rdb *redis.Client) error {
	return rdb.Ping(ctx).Err()
}
