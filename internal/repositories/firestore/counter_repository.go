package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/hanko-field/commerce/internal/platform/firestore"
	"github.com/hanko-field/commerce/internal/repositories"
)

const countersCollection = "counters"

type counterDocument struct {
	CurrentValue int64     `firestore:"currentValue"`
	Step         int64     `firestore:"step"`
	MaxValue     *int64    `firestore:"maxValue,omitempty"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// CounterRepository hands out sequence numbers such as order numbers.
type CounterRepository struct {
	counters *pfirestore.BaseRepository[counterDocument]
	uow      *pfirestore.UnitOfWork
	now      func() time.Time
}

var _ repositories.CounterRepository = (*CounterRepository)(nil)

// NewCounterRepository constructs a Firestore-backed counter repository.
func NewCounterRepository(provider *pfirestore.Provider) (*CounterRepository, error) {
	if provider == nil {
		return nil, errors.New("counter repository requires firestore provider")
	}
	return &CounterRepository{
		counters: pfirestore.NewBaseRepository[counterDocument](provider, countersCollection),
		uow:      pfirestore.NewUnitOfWork(provider),
		now:      time.Now,
	}, nil
}

// Next increments the counter in its own transaction and returns the new value. Callers must not
// invoke it from inside a transaction that has already written.
func (r *CounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required")
	}
	if step < 0 {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, fmt.Sprintf("step must be positive, got %d", step))
	}

	var next int64
	err := r.uow.RunInTx(ctx, func(ctx context.Context) error {
		now := r.now().UTC()
		doc, err := r.counters.Get(ctx, id)
		if err != nil {
			var repoErr repositories.RepositoryError
			if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
				return err
			}
			increment := max(step, 1)
			next = increment
			return r.counters.Create(ctx, id, counterDocument{CurrentValue: increment, Step: increment, UpdatedAt: now})
		}

		counter := doc.Data
		increment := step
		if increment <= 0 {
			increment = max(counter.Step, 1)
		}
		value := counter.CurrentValue + increment
		if counter.MaxValue != nil && value > *counter.MaxValue {
			return repositories.NewCounterError(repositories.CounterErrorExhausted, fmt.Sprintf("counter %s exceeded max value %d", id, *counter.MaxValue))
		}
		counter.CurrentValue = value
		counter.Step = increment
		counter.UpdatedAt = now
		next = value
		return r.counters.Set(ctx, id, counter)
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Configure merges step, max and initial value settings into the counter document.
func (r *CounterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	id := strings.TrimSpace(counterID)
	if id == "" {
		return repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required")
	}
	payload := map[string]any{"updatedAt": r.now().UTC()}
	if cfg.Step > 0 {
		payload["step"] = cfg.Step
	}
	if cfg.MaxValue != nil {
		payload["maxValue"] = *cfg.MaxValue
	}
	if cfg.InitialValue != nil {
		payload["currentValue"] = *cfg.InitialValue
	}
	ref, err := r.counters.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, payload, firestore.MergeAll); err != nil {
		return pfirestore.WrapError("counters.configure", err)
	}
	return nil
}
