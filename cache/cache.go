// cache — опциональный Redis-кэш списка активных refresh-сессий аккаунта.
//
// Горячие пути ротации и выхода читают список сессий по account_id; кэш
// снимает эту выборку с БД. Записи живут с коротким фиксированным TTL и
// инвалидируются при любой мутации (выпуск/отзыв), поэтому устаревание
// ограничено. Устаревшая запись в худшем случае уводит легитимную ротацию
// в ветку replay с отзывом семейства — безопасный по умолчанию исход.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/notes-keeper/auth-service/models"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL — срок жизни кэшированного списка сессий.
const DefaultTTL = 30 * time.Second

// SessionCache — минимальный контракт кэша активных сессий.
type SessionCache interface {
	// ActiveSessions возвращает список и признак наличия записи в кэше.
	ActiveSessions(ctx context.Context, accountID uuid.UUID) ([]models.RefreshSession, bool, error)
	// SetActiveSessions сохраняет список с TTL.
	SetActiveSessions(ctx context.Context, accountID uuid.UUID, sessions []models.RefreshSession, ttl time.Duration) error
	// Invalidate удаляет запись аккаунта.
	Invalidate(ctx context.Context, accountID uuid.UUID) error
	// Close закрывает клиент Redis.
	Close() error
}

type redisCache struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisCache создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "auth:sess:".
func NewRedisCache(redisURL, prefix string) (SessionCache, error) {
	if prefix == "" {
		prefix = "auth:sess:"
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

func (c *redisCache) key(accountID uuid.UUID) string { return c.prefix + accountID.String() }

func (c *redisCache) ActiveSessions(ctx context.Context, accountID uuid.UUID) ([]models.RefreshSession, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(accountID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}

		return nil, false, err
	}

	var sessions []models.RefreshSession
	if err := json.Unmarshal(raw, &sessions); err != nil {
		return nil, false, err
	}

	return sessions, true, nil
}

func (c *redisCache) SetActiveSessions(ctx context.Context, accountID uuid.UUID, sessions []models.RefreshSession, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	raw, err := json.Marshal(sessions)
	if err != nil {
		return err
	}

	return c.rdb.Set(ctx, c.key(accountID), raw, ttl).Err()
}

func (c *redisCache) Invalidate(ctx context.Context, accountID uuid.UUID) error {
	return c.rdb.Del(ctx, c.key(accountID)).Err()
}

func (c *redisCache) Close() error { return c.rdb.Close() }
