package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/dental-booking/pkg/logging"
)

const releaseTimeout = 2 * time.Second

// SubmitGuard keeps one identity from submitting the same slot twice at
// once. The lock expires on its own after ttl if the holder never releases.
type SubmitGuard struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

func NewSubmitGuard(client *redis.Client, ttl time.Duration, logger *logging.Logger) *SubmitGuard {
	if logger == nil {
		logger = logging.Default()
	}
	return &SubmitGuard{client: client, ttl: ttl, logger: logger}
}

// Acquire takes the lock for key. ok is false when someone else holds it.
func (g *SubmitGuard) Acquire(ctx context.Context, key string) (bool, func(), error) {
	lockKey := "lock:submit:" + key
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, lockKey, token, g.ttl).Result()
	if err != nil {
		return false, nil, fmt.Errorf("acquire submit lock: %w", err)
	}
	if !ok {
		return false, nil, nil
	}

	release := func() {
		// The request context may already be cancelled by now.
		relCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := g.release(relCtx, lockKey, token); err != nil {
			g.logger.Warn("release submit lock", "key", lockKey, "error", err)
		}
	}
	return true, release, nil
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (g *SubmitGuard) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, g.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release submit lock: %w", err)
	}
	return nil
}
