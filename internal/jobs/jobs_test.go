package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type stubPurger struct {
	mu      sync.Mutex
	batches []int
	calls   int
	err     error
	gotAge  time.Duration
	gotSize int
}

func (p *stubPurger) PurgeStale(_ context.Context, olderThan time.Duration, limit int) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gotAge, p.gotSize = olderThan, limit
	if p.err != nil {
		return 0, p.err
	}
	if p.calls >= len(p.batches) {
		p.calls++
		return 0, nil
	}
	n := p.batches[p.calls]
	p.calls++
	return n, nil
}

func TestCartPurgeJobDrainsFullBatches(t *testing.T) {
	purger := &stubPurger{batches: []int{10, 10, 3}}
	job, err := NewCartPurgeJob(purger, 720*time.Hour, 10)
	if err != nil {
		t.Fatalf("NewCartPurgeJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if purger.calls != 3 {
		t.Fatalf("expected 3 rounds, got %d", purger.calls)
	}
	if purger.gotAge != 720*time.Hour || purger.gotSize != 10 {
		t.Fatalf("unexpected arguments %s/%d", purger.gotAge, purger.gotSize)
	}
}

func TestCartPurgeJobStopsOnError(t *testing.T) {
	boom := errors.New("firestore unavailable")
	purger := &stubPurger{err: boom}
	job, _ := NewCartPurgeJob(purger, time.Hour, 5)
	if err := job.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected purge error, got %v", err)
	}
	if purger.calls != 0 {
		t.Fatalf("expected no further rounds")
	}
}

func TestCartPurgeJobBoundsRounds(t *testing.T) {
	batches := make([]int, maxPurgeRounds+5)
	for i := range batches {
		batches[i] = 2
	}
	purger := &stubPurger{batches: batches}
	job, _ := NewCartPurgeJob(purger, time.Hour, 2)
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if purger.calls != maxPurgeRounds {
		t.Fatalf("expected %d rounds, got %d", maxPurgeRounds, purger.calls)
	}
}

func TestNewCartPurgeJobValidation(t *testing.T) {
	if _, err := NewCartPurgeJob(nil, time.Hour, 1); err == nil {
		t.Fatalf("expected purger validation error")
	}
	if _, err := NewCartPurgeJob(&stubPurger{}, 0, 1); err == nil {
		t.Fatalf("expected window validation error")
	}
	if _, err := NewCartPurgeJob(&stubPurger{}, time.Hour, 0); err == nil {
		t.Fatalf("expected batch validation error")
	}
}

type funcJob struct {
	name string
	fn   func(ctx context.Context) error
}

func (j funcJob) Name() string                  { return j.name }
func (j funcJob) Run(ctx context.Context) error { return j.fn(ctx) }

func TestSchedulerRunNow(t *testing.T) {
	s := NewScheduler(WithJobTimeout(time.Second))
	ran := 0
	job := funcJob{name: "tick", fn: func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Fatalf("expected run deadline")
		}
		ran++
		return nil
	}}
	if err := s.Register("0 0 3 * * *", job); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.RunNow(context.Background(), "tick"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}
	if ran != 1 {
		t.Fatalf("expected one run, got %d", ran)
	}
	if err := s.RunNow(context.Background(), "missing"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
}

func TestSchedulerRegisterValidation(t *testing.T) {
	s := NewScheduler()
	if err := s.Register("not a schedule", funcJob{name: "bad", fn: func(context.Context) error { return nil }}); err == nil {
		t.Fatalf("expected invalid schedule error")
	}
	if err := s.Register("* * * * * *", funcJob{name: " ", fn: func(context.Context) error { return nil }}); err == nil {
		t.Fatalf("expected name validation error")
	}
	if err := s.Register("0 0 3 * * *", funcJob{name: "a", fn: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register("0 0 4 * * *", funcJob{name: "a", fn: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("re-Register: %v", err)
	}
	if names := s.Names(); len(names) != 1 || names[0] != "a" {
		t.Fatalf("expected replaced job, got %v", names)
	}
}

func TestSchedulerRunsOnSchedule(t *testing.T) {
	s := NewScheduler()
	done := make(chan struct{}, 1)
	err := s.Register("* * * * * *", funcJob{name: "every-second", fn: func(context.Context) error {
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	}})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	s.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("job did not run on schedule")
	}
}
