package utils

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Unlock releases an acquired lock. Callers defer it immediately after a
// successful TryLock.
type Unlock func()

// Locker is a named mutex with non-blocking "try" semantics: if the lock is
// held elsewhere the campaign is simply skipped this tick, and the next tick
// retries. Any backing store with an atomic compare-and-swap satisfies it.
type Locker interface {
	TryLock(scope string, id uint) (Unlock, bool, error)
}

// Advisory key space per campaign kind, so a transmission and a funnel with
// the same id never collide
var lockScopeOffsets = map[string]int64{
	"transmission": 1 << 32,
	"funnel":       2 << 32,
}

func lockKey(scope string, id uint) int64 {
	return lockScopeOffsets[scope] + int64(id)
}

// PostgresLocker wraps pg_try_advisory_lock. The lock is session-scoped, so
// each acquisition pins one connection from the pool until released.
type PostgresLocker struct {
	DB *gorm.DB
}

func NewPostgresLocker(db *gorm.DB) *PostgresLocker {
	return &PostgresLocker{DB: db}
}

func (pl *PostgresLocker) TryLock(scope string, id uint) (Unlock, bool, error) {
	sqlDB, err := pl.DB.DB()
	if err != nil {
		return nil, false, err
	}

	ctx := context.Background()
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, false, err
	}

	key := lockKey(scope, id)
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		conn.Close()
		return nil, false, err
	}
	if !acquired {
		conn.Close()
		return nil, false, nil
	}

	unlock := func() {
		_, _ = conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", key)
		conn.Close()
	}
	return unlock, true, nil
}

// RedisLocker implements TryLock over SETNX with an expiry so a crashed
// process cannot hold a campaign forever
type RedisLocker struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{Client: client, TTL: 5 * time.Minute}
}

// Release only when we still own the lock (token match)
var redisUnlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (rl *RedisLocker) TryLock(scope string, id uint) (Unlock, bool, error) {
	ctx := context.Background()
	key := fmt.Sprintf("lock:%s:%d", scope, id)
	token := uuid.New().String()

	acquired, err := rl.Client.SetNX(ctx, key, token, rl.TTL).Result()
	if err != nil {
		return nil, false, err
	}
	if !acquired {
		return nil, false, nil
	}

	unlock := func() {
		_ = redisUnlockScript.Run(context.Background(), rl.Client, []string{key}, token).Err()
	}
	return unlock, true, nil
}

// MemoryLocker is the in-process fallback for single-process deployments and
// tests, mirroring how the rate-limit storage falls back to memory when Redis
// is disabled
type MemoryLocker struct {
	mu   sync.Mutex
	held map[int64]bool
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[int64]bool)}
}

func (ml *MemoryLocker) TryLock(scope string, id uint) (Unlock, bool, error) {
	key := lockKey(scope, id)

	ml.mu.Lock()
	defer ml.mu.Unlock()

	if ml.held[key] {
		return nil, false, nil
	}
	ml.held[key] = true

	unlock := func() {
		ml.mu.Lock()
		delete(ml.held, key)
		ml.mu.Unlock()
	}
	return unlock, true, nil
}
