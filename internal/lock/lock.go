// Package lock serializes periodic jobs across instances through a shared
// cache key.
//
// A lock is a key holding a random owner token with an expiry. Acquisition
// is a single set-if-absent and release deletes the key only while it still
// holds this owner's token. If the protected job runs longer than the TTL the
// key expires and a second instance may start the same job; jobs must be
// sized so that the TTL comfortably exceeds their run time.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotHeld = errors.New("lock not held")

// Store is the subset of cache.Store the lock needs.
type Store interface {
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error)
}

// JobKey returns the cache key guarding the named job.
func JobKey(jobName string) string {
	return "job:" + jobName
}

// Lock is one acquisition attempt. It is not reusable across keys while
// held.
type Lock struct {
	store Store

	mu    sync.Mutex
	key   string
	token string
}

func New(store Store) *Lock {
	return &Lock{store: store}
}

// TryAcquire attempts to create key with a fresh owner token. It never
// waits: false with a nil error means another owner holds the key, a
// non-nil error means the cache could not be reached.
func (l *Lock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if l == nil || l.store == nil {
		return false, errors.New("lock store unavailable")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token != "" {
		return false, errors.New("lock already held by this instance")
	}
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, key, []byte(token), ttl)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	l.key = key
	l.token = token
	return true, nil
}

// Release deletes the key if it still carries this lock's token. A lock
// that already expired and was taken by someone else is left alone.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.token == "" {
		return ErrNotHeld
	}
	key, token := l.key, l.token
	l.key, l.token = "", ""
	_, err := l.store.CompareAndDelete(ctx, key, []byte(token))
	return err
}

// Held reports whether TryAcquire succeeded and Release has not run yet.
// The key may have expired in the meantime.
func (l *Lock) Held() bool {
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.token != ""
}
