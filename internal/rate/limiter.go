package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds attempt tracker tuning parameters.
type Config struct {
	EnableIPTracking bool
	AttemptWindow    time.Duration
	KeyPrefix        string
}

// AttemptTracker persists failed-login attempt counters and the time of the
// last failure so throttling survives process restarts. Counters live in a
// fixed window keyed by login name, optionally doubled by client IP.
type AttemptTracker struct {
	redis  redis.UniversalClient
	config Config
	now    func() time.Time
}

// New creates an [AttemptTracker] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *AttemptTracker {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "wtr"
	}
	if cfg.AttemptWindow <= 0 {
		cfg.AttemptWindow = 10 * time.Minute
	}
	return &AttemptTracker{
		redis:  redisClient,
		config: cfg,
		now:    time.Now,
	}
}

// SetClock overrides the tracker clock. Test hook only.
func (t *AttemptTracker) SetClock(now func() time.Time) {
	if now != nil {
		t.now = now
	}
}

// Attempts returns the failure counter and last-failure time for a login name.
// Missing keys return zero values and do not reveal account existence.
func (t *AttemptTracker) Attempts(ctx context.Context, loginName string) (int, time.Time, error) {
	count, err := t.redis.Get(ctx, t.countKey(loginName)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, time.Time{}, nil
		}
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count <= 0 {
		return 0, time.Time{}, nil
	}

	lastUnix, err := t.redis.Get(ctx, t.lastKey(loginName)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return int(count), time.Time{}, nil
		}
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return int(count), time.Unix(lastUnix, 0), nil
}

// RecordFailure bumps the failure counter for the login name and IP pair
// and stamps the failure time. The first failure in a window sets the TTL.
func (t *AttemptTracker) RecordFailure(ctx context.Context, loginName, ip string) error {
	if err := t.recordFailureKey(ctx, t.countKey(loginName), t.lastKey(loginName)); err != nil {
		return err
	}

	if t.config.EnableIPTracking && ip != "" {
		if err := t.recordFailureKey(ctx, t.ipCountKey(ip), t.ipLastKey(ip)); err != nil {
			return err
		}
	}

	return nil
}

// Reset clears the failure counters for the login name and IP pair.
// Called after a successful authentication.
func (t *AttemptTracker) Reset(ctx context.Context, loginName, ip string) error {
	keys := []string{t.countKey(loginName), t.lastKey(loginName)}
	if t.config.EnableIPTracking && ip != "" {
		keys = append(keys, t.ipCountKey(ip), t.ipLastKey(ip))
	}

	if err := t.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

func (t *AttemptTracker) recordFailureKey(ctx context.Context, countKey, lastKey string) error {
	count, err := t.redis.Incr(ctx, countKey).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := t.redis.Expire(ctx, countKey, t.config.AttemptWindow).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	if err := t.redis.Set(ctx, lastKey, t.now().Unix(), t.config.AttemptWindow).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

func (t *AttemptTracker) countKey(loginName string) string {
	return t.config.KeyPrefix + ":ln:" + loginName
}

func (t *AttemptTracker) lastKey(loginName string) string {
	return t.config.KeyPrefix + ":ln:" + loginName + ":at"
}

func (t *AttemptTracker) ipCountKey(ip string) string {
	return t.config.KeyPrefix + ":ip:" + ip
}

func (t *AttemptTracker) ipLastKey(ip string) string {
	return t.config.KeyPrefix + ":ip:" + ip + ":at"
}
