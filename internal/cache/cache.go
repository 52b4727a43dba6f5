// cache — опциональный Redis-кэш отпечатков refresh-токенов.
// Источник истины — PostgreSQL; кэшированное значение — только подсказка
// для горячего пути /auth/refresh. Решение об отказе всегда принимает БД:
// промах, ошибка и даже расхождение кэша ведут к сверке с БД.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// FingerprintCache — минимальный контракт кэша отпечатков.
type FingerprintCache interface {
	// Get возвращает отпечаток и признак его наличия в кэше.
	Get(ctx context.Context, userID uuid.UUID) (string, bool, error)
	// Set сохраняет отпечаток с TTL (обычно равным TTL refresh-токена).
	Set(ctx context.Context, userID uuid.UUID, fingerprint string, ttl time.Duration) error
	// Delete удаляет отпечаток (выход из системы).
	Delete(ctx context.Context, userID uuid.UUID) error
	// Close закрывает клиент Redis.
	Close() error
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "session:fp:".
func NewRedisCache(redisURL, prefix string) (FingerprintCache, error) {
	if prefix == "" {
		prefix = "session:fp:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &redisCache{rdb: rdb, prefix: prefix}, nil
}

func (c *redisCache) key(userID uuid.UUID) string { return c.prefix + userID.String() }

func (c *redisCache) Get(ctx context.Context, userID uuid.UUID) (string, bool, error) {
	v, err := c.rdb.Get(ctx, c.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}

		return "", false, err
	}

	return v, true, nil
}

func (c *redisCache) Set(ctx context.Context, userID uuid.UUID, fingerprint string, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.key(userID), fingerprint, ttl).Err()
}

func (c *redisCache) Delete(ctx context.Context, userID uuid.UUID) error {
	return c.rdb.Del(ctx, c.key(userID)).Err()
}

func (c *redisCache) Close() error { return c.rdb.Close() }
