// Package cache is the shared key-value substrate for cross-instance
// coordination: job locks and request counters.
package cache

import (
	"context"
	"time"
)

type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error

	// SetNX stores value only when key is absent. It reports whether this
	// call created the key.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// CompareAndDelete removes key only while it still holds value.
	CompareAndDelete(ctx context.Context, key string, value []byte) (bool, error)
	// IncrWithTTL increments the counter at key. The increment that creates
	// the key also sets its expiry, atomically.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// TTL returns the remaining lifetime of key, or 0 when the key is
	// missing or has no expiry.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Ping(ctx context.Context) error
}
