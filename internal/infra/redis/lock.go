// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"fmt"
	"time"

	"subs3-ledger/internal/domain"
	"subs3-ledger/internal/domain/ports/repository"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var _ repository.Locker = (*RedisLocker)(nil)

// RedisLocker is a SET NX lease shared by every node using the same Redis.
// It never waits: a held key fails fast with ErrConflict.
type RedisLocker struct {
	c *Client
}

func NewLocker(c *Client) *RedisLocker {
	return &RedisLocker{c: c}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.c.cli.SetNX(ctx, l.c.Key("lock", key), token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %s is locked", domain.ErrConflict, key)
	}
	return token, nil
}

var luaUnlock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end`)

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := luaUnlock.Run(ctx, l.c.cli, []string{l.c.Key("lock", key)}, token).Result()
	return err
}
