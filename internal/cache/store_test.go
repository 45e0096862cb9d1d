package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type storeFactory func(t *testing.T) (Store, func(time.Duration))

func memoryFactory(t *testing.T) (Store, func(time.Duration)) {
	t.Helper()
	s := NewMemoryStore()
	var offset atomic.Int64
	base := time.Now()
	s.now = func() time.Time { return base.Add(time.Duration(offset.Load())) }
	return s, func(d time.Duration) { offset.Add(int64(d)) }
}

func redisFactory(t *testing.T) (Store, func(time.Duration)) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewRedisStore(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = s.Close() })
	return s, mr.FastForward
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store, advance func(time.Duration))) {
	factories := map[string]storeFactory{
		"memory": memoryFactory,
		"redis":  redisFactory,
	}
	for name, f := range factories {
		t.Run(name, func(t *testing.T) {
			s, advance := f(t)
			fn(t, s, advance)
		})
	}
}

func TestStore_SetNXOnlyFirstWins(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, _ func(time.Duration)) {
		ctx := context.Background()
		ok, err := s.SetNX(ctx, "job:a", []byte("owner-1"), time.Minute)
		if err != nil || !ok {
			t.Fatalf("first SetNX ok=%v err=%v", ok, err)
		}
		ok, err = s.SetNX(ctx, "job:a", []byte("owner-2"), time.Minute)
		if err != nil || ok {
			t.Fatalf("second SetNX ok=%v err=%v want false", ok, err)
		}
		v, found, err := s.Get(ctx, "job:a")
		if err != nil || !found || string(v) != "owner-1" {
			t.Fatalf("value=%q found=%v err=%v", v, found, err)
		}
	})
}

func TestStore_SetNXAfterExpiry(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, advance func(time.Duration)) {
		ctx := context.Background()
		if ok, _ := s.SetNX(ctx, "job:a", []byte("owner-1"), 5*time.Second); !ok {
			t.Fatalf("first SetNX failed")
		}
		advance(6 * time.Second)
		ok, err := s.SetNX(ctx, "job:a", []byte("owner-2"), 5*time.Second)
		if err != nil || !ok {
			t.Fatalf("SetNX after expiry ok=%v err=%v want true", ok, err)
		}
	})
}

func TestStore_CompareAndDelete(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, _ func(time.Duration)) {
		ctx := context.Background()
		_ = s.Set(ctx, "job:a", []byte("owner-1"), time.Minute)
		deleted, err := s.CompareAndDelete(ctx, "job:a", []byte("owner-2"))
		if err != nil || deleted {
			t.Fatalf("foreign delete deleted=%v err=%v", deleted, err)
		}
		if _, found, _ := s.Get(ctx, "job:a"); !found {
			t.Fatalf("key removed by foreign token")
		}
		deleted, err = s.CompareAndDelete(ctx, "job:a", []byte("owner-1"))
		if err != nil || !deleted {
			t.Fatalf("owner delete deleted=%v err=%v", deleted, err)
		}
		if _, found, _ := s.Get(ctx, "job:a"); found {
			t.Fatalf("key still present")
		}
	})
}

func TestStore_IncrWithTTLConcurrent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, _ func(time.Duration)) {
		ctx := context.Background()
		const n = 50
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				if _, err := s.IncrWithTTL(ctx, "rate_limit:global:1.2.3.4", time.Minute); err != nil {
					t.Errorf("incr: %v", err)
				}
			}()
		}
		wg.Wait()
		v, found, err := s.Get(ctx, "rate_limit:global:1.2.3.4")
		if err != nil || !found || string(v) != "50" {
			t.Fatalf("count=%q found=%v err=%v want 50", v, found, err)
		}
		ttl, err := s.TTL(ctx, "rate_limit:global:1.2.3.4")
		if err != nil {
			t.Fatalf("ttl err=%v", err)
		}
		if ttl <= 0 || ttl > time.Minute {
			t.Fatalf("ttl=%s want (0,1m]", ttl)
		}
	})
}

func TestStore_IncrWindowResets(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, advance func(time.Duration)) {
		ctx := context.Background()
		for i := 0; i < 3; i++ {
			_, _ = s.IncrWithTTL(ctx, "k", time.Minute)
		}
		// Later increments keep the original expiry.
		advance(30 * time.Second)
		if n, _ := s.IncrWithTTL(ctx, "k", time.Minute); n != 4 {
			t.Fatalf("n=%d want 4", n)
		}
		advance(31 * time.Second)
		n, err := s.IncrWithTTL(ctx, "k", time.Minute)
		if err != nil || n != 1 {
			t.Fatalf("n=%d err=%v want 1 after window", n, err)
		}
	})
}
