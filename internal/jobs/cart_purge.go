package jobs

import (
	"context"
	"errors"
	"time"
)

// CartPurgeJobName identifies the stale cart purge.
const CartPurgeJobName = "cart-purge"

const maxPurgeRounds = 20

// CartPurger deletes carts untouched for longer than olderThan, at most limit per call.
type CartPurger interface {
	PurgeStale(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// CartPurgeJob drains stale carts batch by batch.
type CartPurgeJob struct {
	carts     CartPurger
	olderThan time.Duration
	batch     int
}

// NewCartPurgeJob constructs the purge job.
func NewCartPurgeJob(carts CartPurger, olderThan time.Duration, batch int) (*CartPurgeJob, error) {
	if carts == nil {
		return nil, errors.New("jobs: cart purger is required")
	}
	if olderThan <= 0 {
		return nil, errors.New("jobs: stale window must be positive")
	}
	if batch <= 0 {
		return nil, errors.New("jobs: batch size must be positive")
	}
	return &CartPurgeJob{carts: carts, olderThan: olderThan, batch: batch}, nil
}

// Name implements Job.
func (j *CartPurgeJob) Name() string { return CartPurgeJobName }

// Run purges full batches until a short batch signals the backlog is empty.
func (j *CartPurgeJob) Run(ctx context.Context) error {
	for round := 0; round < maxPurgeRounds; round++ {
		purged, err := j.carts.PurgeStale(ctx, j.olderThan, j.batch)
		if err != nil {
			return err
		}
		if purged < j.batch {
			return nil
		}
	}
	return nil
}
