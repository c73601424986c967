package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a SET NX lock with a TTL. The TTL bounds how long a crashed run
// can block the next one.
type Redis struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedis(client redis.Cmdable, key string, ttl time.Duration, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{client: client, key: key, ttl: ttl, logger: logger}
}

func (r *Redis) TryLock(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis lock %s: %w", r.key, err)
	}
	if !ok {
		return nil, false, nil
	}

	r.logger.Debug("redis lock acquired", zap.String("lock_key", r.key), zap.Duration("ttl", r.ttl))
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()

		n, err := releaseScript.Run(ctx, r.client, []string{r.key}, token).Int()
		if err != nil {
			r.logger.Warn("redis unlock failed, lock ends at ttl", zap.String("lock_key", r.key), zap.Error(err))
			return
		}
		if n == 0 {
			r.logger.Warn("redis lock expired before release", zap.String("lock_key", r.key))
		}
	}
	return release, true, nil
}
