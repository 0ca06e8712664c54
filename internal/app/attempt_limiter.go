package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// LimitScope names a throttled portal action.
type LimitScope string

const (
	// LimitLogin counts sign-in attempts per username or email.
	LimitLogin LimitScope = "login"
	// LimitOtpSend counts one-time code requests per email address.
	LimitOtpSend LimitScope = "otp"
)

// Attempt is the limiter's verdict for one hit. Limit 0 means the scope is
// not throttled.
type Attempt struct {
	Scope      LimitScope
	Hits       int64
	Limit      int
	RetryAfter time.Duration
}

// Allowed reports whether the hit fits inside the current window.
func (a Attempt) Allowed() bool {
	return a.Limit <= 0 || a.Hits <= int64(a.Limit)
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum one.
func (a Attempt) RetryAfterSeconds() int {
	secs := int((a.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// AttemptLimiter throttles login and OTP requests with per-minute buckets
// shared through Redis, so every API replica sees the same counts.
type AttemptLimiter struct {
	client    redis.UniversalClient
	namespace string
	perMinute map[LimitScope]int
	now       func() time.Time
}

// NewAttemptLimiter builds a limiter. Scopes missing from perMinute, or with
// a non-positive limit, are never throttled.
func NewAttemptLimiter(client redis.UniversalClient, namespace string, perMinute map[LimitScope]int) *AttemptLimiter {
	namespace = strings.TrimSuffix(strings.TrimSpace(namespace), ":")
	if namespace == "" {
		namespace = "finsecure:rate_limit"
	}
	limits := make(map[LimitScope]int, len(perMinute))
	for scope, limit := range perMinute {
		if limit > 0 {
			limits[scope] = limit
		}
	}
	return &AttemptLimiter{
		client:    client,
		namespace: namespace,
		perMinute: limits,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// bucketKey names the counter for subject in the minute containing at.
func (l *AttemptLimiter) bucketKey(scope LimitScope, subject string, at time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%d", l.namespace, scope, strings.ToLower(strings.TrimSpace(subject)), at.Unix()/60)
}

// Hit counts one attempt for subject and returns the verdict.
func (l *AttemptLimiter) Hit(ctx context.Context, scope LimitScope, subject string) (Attempt, error) {
	attempt := Attempt{Scope: scope}
	if l == nil || l.client == nil || strings.TrimSpace(subject) == "" {
		return attempt, nil
	}
	limit, ok := l.perMinute[scope]
	if !ok {
		return attempt, nil
	}
	attempt.Limit = limit

	now := l.now()
	windowEnd := now.Truncate(time.Minute).Add(time.Minute)
	key := l.bucketKey(scope, subject, now)

	var hits *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		hits = pipe.Incr(ctx, key)
		// The bucket outlives its minute slightly so a slow clock cannot reset it early.
		pipe.ExpireAt(ctx, key, windowEnd.Add(5*time.Second))
		return nil
	})
	if err != nil {
		return Attempt{Scope: scope}, fmt.Errorf("rate limiter %s: %w", scope, err)
	}
	attempt.Hits = hits.Val()
	attempt.RetryAfter = windowEnd.Sub(now)
	return attempt, nil
}
