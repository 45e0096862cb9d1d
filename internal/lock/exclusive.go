package lock

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Outcome describes what happened to one RunExclusive call.
type Outcome string

const (
	OutcomeRan        Outcome = "ran"
	OutcomeLockHeld   Outcome = "lock_held"
	OutcomeLockFailed Outcome = "lock_error"
)

const releaseTimeout = 5 * time.Second

// RunExclusive runs fn only if the lock for jobName can be taken right now.
// The lock is released on every exit path of fn, including a panic and a
// cancelled ctx; the panic is re-raised after release.
func RunExclusive(ctx context.Context, store Store, jobName string, ttl time.Duration, logger *zap.Logger, fn func(ctx context.Context) error) (Outcome, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	key := JobKey(jobName)
	l := New(store)
	ok, err := l.TryAcquire(ctx, key, ttl)
	if err != nil {
		logger.Warn("job lock unavailable, skipping run", zap.String("job", jobName), zap.Error(err))
		return OutcomeLockFailed, err
	}
	if !ok {
		logger.Info("job lock held elsewhere, skipping run", zap.String("job", jobName))
		return OutcomeLockHeld, nil
	}
	defer func() {
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := l.Release(relCtx); err != nil {
			logger.Warn("job lock release failed", zap.String("job", jobName), zap.Error(err))
		}
	}()
	return OutcomeRan, fn(ctx)
}
