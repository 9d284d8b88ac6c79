package throttle

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	roomKeyPrefix    = "throttle:room:"
	hourlyKeyPrefix  = "throttle:hourly:"
	hourBucketLayout = "2006010215"
)

// Config carries the suppression windows and the failure policy. FailOpen
// controls what happens when the store itself is unreachable: the default is
// to suppress sending rather than risk an alert storm.
type Config struct {
	RoomTTL   time.Duration
	HourlyMax int64
	FailOpen  bool
}

// Limiter suppresses repeated alerts per chat room and enforces a global
// hourly cap. It holds no state of its own; every decision goes through the
// shared store.
type Limiter struct {
	store  Store
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

func NewLimiter(store Store, cfg Config, logger *zap.Logger) *Limiter {
	return &Limiter{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// ShouldThrottle reports whether an alert for the room must be suppressed
// because a throttle key from a recent send has not expired yet.
func (l *Limiter) ShouldThrottle(ctx context.Context, chatRoomID string) bool {
	val, err := l.store.Get(ctx, roomKeyPrefix+chatRoomID)
	if err != nil {
		l.logger.Error("throttle check failed",
			zap.String("chat_room", chatRoomID),
			zap.Bool("fail_open", l.cfg.FailOpen),
			zap.Error(err))
		return !l.cfg.FailOpen
	}
	return val != ""
}

// RecordSent sets the room's throttle key. Call it only after a fully
// successful send across all targeted channels.
func (l *Limiter) RecordSent(ctx context.Context, chatRoomID string) {
	if err := l.store.Set(ctx, roomKeyPrefix+chatRoomID, "1", l.cfg.RoomTTL); err != nil {
		l.logger.Error("failed to record throttle key",
			zap.String("chat_room", chatRoomID),
			zap.Error(err))
	}
}

// HourlyCapExceeded reports whether the current hour bucket has reached the
// configured maximum.
func (l *Limiter) HourlyCapExceeded(ctx context.Context) bool {
	if l.cfg.HourlyMax <= 0 {
		return false
	}
	val, err := l.store.Get(ctx, l.hourlyKey())
	if err != nil {
		l.logger.Error("hourly cap check failed",
			zap.Bool("fail_open", l.cfg.FailOpen),
			zap.Error(err))
		return !l.cfg.FailOpen
	}
	if val == "" {
		return false
	}
	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		l.logger.Error("corrupt hourly counter", zap.String("value", val))
		return !l.cfg.FailOpen
	}
	return count >= l.cfg.HourlyMax
}

// RecordHourlySend increments the current hour bucket. The TTL is attached on
// the first increment so the bucket expires on its own.
func (l *Limiter) RecordHourlySend(ctx context.Context) {
	key := l.hourlyKey()
	count, err := l.store.Increment(ctx, key)
	if err != nil {
		l.logger.Error("failed to increment hourly counter", zap.Error(err))
		return
	}
	if count == 1 {
		if err := l.store.Expire(ctx, key, time.Hour); err != nil {
			l.logger.Error("failed to set hourly counter ttl", zap.Error(err))
		}
	}
}

func (l *Limiter) hourlyKey() string {
	return hourlyKeyPrefix + l.now().Format(hourBucketLayout)
}
