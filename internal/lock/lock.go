package lock

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var (
	ErrNotAcquired = errors.New("lock_not_acquired")
	ErrInvalidKey  = errors.New("lock_key_empty")
	ErrInvalidTTL  = errors.New("lock_ttl_not_positive")
)

// Locker serializes work on a key across service instances.
type Locker interface {
	// Acquire returns ErrNotAcquired when another holder owns key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error)
}

// Release gives the lock back. It is a no-op once the ttl has expired and another holder took over.
type Release func(ctx context.Context) error

// The token check keeps a holder whose ttl expired from deleting its successor's lock.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

type RedisLocker struct {
	client redis.Cmdable
	script *redis.Script
	prefix string
}

func NewRedisLocker(client redis.Cmdable, prefix string) *RedisLocker {
	return &RedisLocker{
		client: client,
		script: redis.NewScript(releaseScript),
		prefix: prefix,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidKey
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	fullKey := l.prefix + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	return func(ctx context.Context) error {
		return l.script.Run(ctx, l.client, []string{fullKey}, token).Err()
	}, nil
}

// InProcessLocker is a single-process Locker used when redis is not configured.
type InProcessLocker struct {
	held chan map[string]time.Time
	now  func() time.Time
}

func NewInProcessLocker() *InProcessLocker {
	held := make(chan map[string]time.Time, 1)
	held <- map[string]time.Time{}
	return &InProcessLocker{held: held, now: time.Now}
}

func (l *InProcessLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, ErrInvalidKey
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	var locks map[string]time.Time
	select {
	case locks = <-l.held:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { l.held <- locks }()

	now := l.now()
	if expires, ok := locks[key]; ok && now.Before(expires) {
		return nil, ErrNotAcquired
	}
	expires := now.Add(ttl)
	locks[key] = expires

	return func(context.Context) error {
		current := <-l.held
		if current[key].Equal(expires) {
			delete(current, key)
		}
		l.held <- current
		return nil
	}, nil
}
