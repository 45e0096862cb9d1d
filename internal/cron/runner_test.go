package cronrunner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestRunner_EveryRecoversPanics(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	r := New(zap.New(core), context.Background())
	var runs atomic.Int32
	r.Every(time.Second, "panicky", func(context.Context) {
		runs.Add(1)
		panic("boom")
	})
	r.Start()
	defer r.Stop()

	waitFor(t, 5*time.Second, func() bool { return runs.Load() >= 2 })
	if logs.FilterMessageSnippet("panic").Len() == 0 {
		t.Fatalf("panic not logged")
	}
}

func TestRunner_PassesBaseContextAndStopsAfterCancel(t *testing.T) {
	type ctxKey struct{}
	base, cancel := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "base"))
	r := New(nil, base)
	var runs atomic.Int32
	var sawBase atomic.Bool
	r.Every(time.Second, "probe", func(ctx context.Context) {
		runs.Add(1)
		if ctx.Value(ctxKey{}) == "base" {
			sawBase.Store(true)
		}
	})
	r.Start()
	defer r.Stop()

	waitFor(t, 3*time.Second, func() bool { return runs.Load() >= 1 })
	if !sawBase.Load() {
		t.Fatalf("job did not receive the base context")
	}
	cancel()
	after := runs.Load()
	time.Sleep(1500 * time.Millisecond)
	if got := runs.Load(); got > after+1 {
		t.Fatalf("job kept running after cancel: %d -> %d", after, got)
	}
}

func TestRunner_AddCronSpec(t *testing.T) {
	r := New(nil, context.Background())
	var runs atomic.Int32
	if _, err := r.Add("* * * * * *", func(context.Context) { runs.Add(1) }); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := r.Add("not a spec", func(context.Context) {}); err == nil {
		t.Fatalf("invalid spec accepted")
	}
	r.Start()
	defer r.Stop()

	waitFor(t, 3*time.Second, func() bool { return runs.Load() >= 1 })
}
