package core

import (
	"context"
	"duesdesk/internal/infra/persistence/memory"
	"duesdesk/pkg/domain"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

var errInjected = errors.New("injected failure")

// fixedNow is the reference instant used by core package tests.
var fixedNow = time.Date(2024, time.October, 20, 10, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (l *captureLogger) record(prefix, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, prefix+msg)
}

func (l *captureLogger) Debug(msg string, _ ...any) { l.record("d:", msg) }
func (l *captureLogger) Info(msg string, _ ...any)  { l.record("i:", msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.record("w:", msg) }
func (l *captureLogger) Error(msg string, _ ...any) { l.record("e:", msg) }

func (l *captureLogger) has(call string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.calls {
		if c == call {
			return true
		}
	}
	return false
}

// countingKV wraps a KVStore, counts writes and can fail reads or writes on demand.
type countingKV struct {
	domain.KVStore
	sets    int
	failSet bool
	failGet bool
}

func newCountingKV() *countingKV {
	return &countingKV{KVStore: memory.NewStore()}
}

func (c *countingKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c.failGet {
		return nil, false, errInjected
	}
	return c.KVStore.Get(ctx, key)
}

func (c *countingKV) Set(ctx context.Context, key string, value []byte) error {
	if c.failSet {
		return errInjected
	}
	c.sets++
	return c.KVStore.Set(ctx, key, value)
}

// newSeededService returns a service over kv preloaded with the sample dataset
// and a clock fixed at fixedNow.
func newSeededService(t *testing.T, kv domain.KVStore, opts ...ServiceOption) *Service {
	t.Helper()
	if kv == nil {
		kv = memory.NewStore()
	}
	opts = append([]ServiceOption{WithClock(fixedClock(fixedNow))}, opts...)
	svc := NewService(kv, opts...)
	seeded, err := svc.Seed(context.Background())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !seeded {
		t.Fatalf("expected seed to write the sample data")
	}
	return svc
}

func refundByID(t *testing.T, svc *Service, id int) DRCCApplication {
	t.Helper()
	for _, app := range svc.Store().DRCCApplications(context.Background()) {
		if app.ID == id {
			return app
		}
	}
	t.Fatalf("refund application %d not stored", id)
	return DRCCApplication{}
}

func noDueByID(t *testing.T, svc *Service, id int) NoDueApplication {
	t.Helper()
	for _, app := range svc.Store().NoDueApplications(context.Background()) {
		if app.ID == id {
			return app
		}
	}
	t.Fatalf("clearance application %d not stored", id)
	return NoDueApplication{}
}

func ids[T any](items []T, id func(T) int) []int {
	out := make([]int, len(items))
	for i, item := range items {
		out[i] = id(item)
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func strPtr(v string) *string { return &v }

func containsAll(s string, parts ...string) bool {
	for _, p := range parts {
		if !strings.Contains(s, p) {
			return false
		}
	}
	return true
}
