package throttle

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type failingStore struct{}

var errStoreDown = errors.New("store unreachable")

func (failingStore) Get(ctx context.Context, key string) (string, error) { return "", errStoreDown }
func (failingStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return errStoreDown
}
func (failingStore) Increment(ctx context.Context, key string) (int64, error) {
	return 0, errStoreDown
}
func (failingStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return errStoreDown
}

func newTestLimiter(store Store, cfg Config) *Limiter {
	return NewLimiter(store, cfg, zap.NewNop())
}

func TestShouldThrottleSameRoomWithinWindow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newTestLimiter(NewMemoryStore(), Config{RoomTTL: 5 * time.Minute, HourlyMax: 100})

	if l.ShouldThrottle(ctx, "room-1") {
		t.Fatal("fresh room was throttled")
	}
	l.RecordSent(ctx, "room-1")

	if !l.ShouldThrottle(ctx, "room-1") {
		t.Fatal("second alert within the window was not suppressed")
	}
	if l.ShouldThrottle(ctx, "room-2") {
		t.Fatal("throttle leaked across rooms")
	}
}

func TestShouldThrottleKeyExpires(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := NewMemoryStore()
	current := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return current }

	l := newTestLimiter(store, Config{RoomTTL: 5 * time.Minute})
	l.RecordSent(ctx, "room-1")

	current = current.Add(6 * time.Minute)
	if l.ShouldThrottle(ctx, "room-1") {
		t.Fatal("expired throttle key still suppressed the room")
	}
}

func TestHourlyCap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newTestLimiter(NewMemoryStore(), Config{HourlyMax: 3})

	for i := 0; i < 3; i++ {
		if l.HourlyCapExceeded(ctx) {
			t.Fatalf("cap reported exceeded after %d sends", i)
		}
		l.RecordHourlySend(ctx)
	}
	if !l.HourlyCapExceeded(ctx) {
		t.Fatal("cap not enforced at the configured maximum")
	}
}

func TestHourlyCapBucketRollsOver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := newTestLimiter(NewMemoryStore(), Config{HourlyMax: 1})
	current := time.Date(2026, 3, 2, 12, 59, 0, 0, time.UTC)
	l.now = func() time.Time { return current }

	l.RecordHourlySend(ctx)
	if !l.HourlyCapExceeded(ctx) {
		t.Fatal("cap not reached inside the bucket")
	}

	current = current.Add(2 * time.Minute)
	if l.HourlyCapExceeded(ctx) {
		t.Fatal("cap carried over into the next hour bucket")
	}
}

func TestHourlyCapDisabledWhenZero(t *testing.T) {
	t.Parallel()

	l := newTestLimiter(NewMemoryStore(), Config{})
	if l.HourlyCapExceeded(context.Background()) {
		t.Fatal("unset cap suppressed sending")
	}
}

func TestStoreFailurePolicy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	closed := newTestLimiter(failingStore{}, Config{HourlyMax: 10})
	if !closed.ShouldThrottle(ctx, "room-1") {
		t.Fatal("store failure did not suppress sending under the default policy")
	}
	if !closed.HourlyCapExceeded(ctx) {
		t.Fatal("store failure did not suppress sending under the default policy")
	}

	open := newTestLimiter(failingStore{}, Config{HourlyMax: 10, FailOpen: true})
	if open.ShouldThrottle(ctx, "room-1") {
		t.Fatal("fail-open policy still suppressed sending on store failure")
	}
	if open.HourlyCapExceeded(ctx) {
		t.Fatal("fail-open policy still suppressed sending on store failure")
	}
}
