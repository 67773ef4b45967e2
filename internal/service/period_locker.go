package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xxiimcha/spcc-backend-sub000/internal/models"
	appErrors "github.com/xxiimcha/spcc-backend-sub000/pkg/errors"
)

// PeriodLocker serialises runs that write to the same period.
type PeriodLocker interface {
	// Acquire returns a release func, or ErrPeriodLocked when another run holds the period.
	Acquire(ctx context.Context, period models.Period) (func(), error)
}

type periodLockStore interface {
	Acquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) error
}

func periodLockKey(period models.Period) string {
	return "timetable:lock:" + period.Key()
}

// RedisPeriodLocker holds a token-guarded Redis key per period so that several API
// instances do not write the same period at once.
type RedisPeriodLocker struct {
	store  periodLockStore
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisPeriodLocker constructs the locker. The ttl bounds how long a crashed holder blocks the period.
func NewRedisPeriodLocker(store periodLockStore, ttl time.Duration, logger *zap.Logger) *RedisPeriodLocker {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPeriodLocker{store: store, ttl: ttl, logger: logger}
}

func (l *RedisPeriodLocker) Acquire(ctx context.Context, period models.Period) (func(), error) {
	key := periodLockKey(period)
	token := uuid.NewString()
	ok, err := l.store.Acquire(ctx, key, token, l.ttl)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire period lock")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrPeriodLocked, "another timetable run is in progress for "+period.String())
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.store.Release(releaseCtx, key, token); err != nil {
			l.logger.Warn("failed to release period lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// LocalPeriodLocker is an in-process try-lock used when Redis is not configured.
type LocalPeriodLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalPeriodLocker constructs an empty locker.
func NewLocalPeriodLocker() *LocalPeriodLocker {
	return &LocalPeriodLocker{held: make(map[string]struct{})}
}

func (l *LocalPeriodLocker) Acquire(_ context.Context, period models.Period) (func(), error) {
	key := periodLockKey(period)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[key]; busy {
		return nil, appErrors.Clone(appErrors.ErrPeriodLocked, "another timetable run is in progress for "+period.String())
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
