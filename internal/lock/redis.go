package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// LeaseStore hands out expiring, token-guarded leases on flights.
type LeaseStore interface {
	AcquireFlightLock(ctx context.Context, flightID int64, ttl time.Duration) (string, bool, error)
	ReleaseFlightLock(ctx context.Context, flightID int64, token string) error
}

var errLeaseHeld = errors.New("lease held by another instance")

// RedisLocker extends per-flight exclusion across service instances.
type RedisLocker struct {
	leases LeaseStore
	ttl    time.Duration
	wait   time.Duration
	log    *zap.Logger
}

func NewRedisLocker(leases LeaseStore, ttl, wait time.Duration, log *zap.Logger) *RedisLocker {
	return &RedisLocker{leases: leases, ttl: ttl, wait: wait, log: log}
}

func (r *RedisLocker) Lock(ctx context.Context, flightID int64) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, r.wait)
	defer cancel()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 200 * time.Millisecond

	token, err := backoff.Retry(waitCtx, func() (string, error) {
		token, ok, err := r.leases.AcquireFlightLock(waitCtx, flightID, r.ttl)
		if err != nil {
			return "", backoff.Permanent(err)
		}
		if !ok {
			return "", errLeaseHeld
		}
		return token, nil
	}, backoff.WithBackOff(policy))
	if err != nil {
		if errors.Is(err, errLeaseHeld) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("flight %d: %w", flightID, ErrLockTimeout)
		}
		return nil, fmt.Errorf("acquire flight %d lease: %w", flightID, err)
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := r.leases.ReleaseFlightLock(releaseCtx, flightID, token); err != nil {
			r.log.Warn("release flight lease", zap.Int64("flight_id", flightID), zap.Error(err))
		}
	}, nil
}
