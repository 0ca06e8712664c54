package app

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestAttemptLimiterBucketKey(t *testing.T) {
	at := time.Date(2024, 3, 15, 9, 30, 42, 0, time.UTC)
	minute := at.Unix() / 60

	limiter := NewAttemptLimiter(nil, " finsecure:limits: ", nil)
	if got, want := limiter.bucketKey(LimitLogin, " Asha ", at), fmt.Sprintf("finsecure:limits:login:asha:%d", minute); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if got, want := NewAttemptLimiter(nil, "", nil).bucketKey(LimitOtpSend, "a@b.c", at), fmt.Sprintf("finsecure:rate_limit:otp:a@b.c:%d", minute); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if limiter.bucketKey(LimitLogin, "asha", at) == limiter.bucketKey(LimitLogin, "asha", at.Add(time.Minute)) {
		t.Fatalf("expected the next minute to use a fresh bucket")
	}
}

func TestAttemptLimiterDisabledClient(t *testing.T) {
	limiter := NewAttemptLimiter(nil, "", map[LimitScope]int{LimitLogin: 5})
	attempt, err := limiter.Hit(context.Background(), LimitLogin, "asha")
	if err != nil || !attempt.Allowed() || attempt.Hits != 0 {
		t.Fatalf("expected a nil client to disable limiting, got %+v %v", attempt, err)
	}
}

func TestAttemptAllowed(t *testing.T) {
	tests := []struct {
		name      string
		attempt   Attempt
		want      bool
		wantRetry int
	}{
		{name: "unthrottled scope", attempt: Attempt{Hits: 99}, want: true, wantRetry: 1},
		{name: "at the limit", attempt: Attempt{Hits: 5, Limit: 5, RetryAfter: 1500 * time.Millisecond}, want: true, wantRetry: 2},
		{name: "over the limit", attempt: Attempt{Hits: 6, Limit: 5, RetryAfter: 18 * time.Second}, want: false, wantRetry: 18},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.attempt.Allowed(); got != tt.want {
				t.Fatalf("expected allowed=%v, got %v", tt.want, got)
			}
			if got := tt.attempt.RetryAfterSeconds(); got != tt.wantRetry {
				t.Fatalf("expected retry after %ds, got %ds", tt.wantRetry, got)
			}
		})
	}
}
