package idempotency

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value any, exp time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = string(value.([]byte))
	f.ttls[key] = exp
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(value, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, exp time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = string(value.([]byte))
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

// EvalSha emulates the release script.
func (f *fakeRedis) EvalSha(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.data[keys[0]]
	if !ok {
		return redis.NewCmdResult(int64(0), nil)
	}
	var record Record
	_ = json.Unmarshal([]byte(raw), &record)
	if record.Fingerprint == args[0] && record.Status == StatusPending {
		delete(f.data, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (f *fakeRedis) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return f.EvalSha(ctx, script, keys, args...)
}

func (f *fakeRedis) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return f.EvalSha(ctx, script, keys, args...)
}

func (f *fakeRedis) EvalShaRO(ctx context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	return f.EvalSha(ctx, sha, keys, args...)
}

func (f *fakeRedis) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeRedis) ScriptLoad(_ context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("sha", nil)
}

func TestRedisStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	store := NewRedisStore(client)

	res, err := store.Reserve(ctx, "key|user-1", "fp", fixedTime, time.Hour)
	if err != nil || res.State != ReservationStateNew {
		t.Fatalf("expected new reservation, got %+v %v", res, err)
	}
	if res, _ := store.Reserve(ctx, "key|user-1", "fp", fixedTime, time.Hour); res.State != ReservationStatePending {
		t.Fatalf("expected pending, got %v", res.State)
	}
	if _, err := store.Reserve(ctx, "key|user-1", "other", fixedTime, time.Hour); err != ErrFingerprintMismatch {
		t.Fatalf("expected fingerprint mismatch, got %v", err)
	}

	resp := Response{Status: http.StatusCreated, Headers: http.Header{"Content-Type": {"application/json"}, "Date": {"x"}}, Body: []byte(`{"ok":true}`)}
	if err := store.SaveResponse(ctx, "key|user-1", "fp", resp, fixedTime, time.Hour); err != nil {
		t.Fatalf("SaveResponse: %v", err)
	}

	res, err = store.Reserve(ctx, "key|user-1", "fp", fixedTime, time.Hour)
	if err != nil || res.State != ReservationStateCompleted {
		t.Fatalf("expected completed, got %+v %v", res, err)
	}
	if string(res.Record.ResponseBody) != `{"ok":true}` || res.Record.ResponseStatus != http.StatusCreated {
		t.Fatalf("unexpected stored record %+v", res.Record)
	}
	if _, ok := res.Record.ResponseHeaders["Date"]; ok {
		t.Fatalf("hop-by-hop headers should be dropped")
	}

	// Completed records survive Release.
	if err := store.Release(ctx, "key|user-1", "fp"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if res, _ := store.Reserve(ctx, "key|user-1", "fp", fixedTime, time.Hour); res.State != ReservationStateCompleted {
		t.Fatalf("expected completed record to remain, got %v", res.State)
	}
}

func TestRedisStoreReleasePending(t *testing.T) {
	ctx := context.Background()
	store := NewRedisStore(newFakeRedis())
	if _, err := store.Reserve(ctx, "k", "fp", fixedTime, 0); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := store.Release(ctx, "k", "fp"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if res, _ := store.Reserve(ctx, "k", "fp", fixedTime, 0); res.State != ReservationStateNew {
		t.Fatalf("expected key to be reusable after release, got %v", res.State)
	}
}
