package engine

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/contactscan/internal/governor"
	"github.com/nao1215/contactscan/internal/model"
)

// DefaultBatchConcurrency is the number of profiles resolved at once.
const DefaultBatchConcurrency = 5

// BatchResult is the outcome for one profile of a batch.
type BatchResult struct {
	// Index is the position of the profile in the input slice.
	Index int

	Profile model.Profile
	Record  model.ContactRecord

	// Err is nil or a *model.RateExceededError.
	Err error
}

// ResolveBatch resolves profiles concurrently, at most concurrency at a
// time, and calls callback as each one completes. Callbacks run on worker
// goroutines and must be safe for concurrent use.
//
// A rate rejection is reported through the callback and does not stop the
// batch. The returned error is non-nil only when ctx is canceled.
func (e *Engine) ResolveBatch(
	ctx context.Context,
	profiles []model.Profile,
	caller governor.Caller,
	concurrency int,
	callback func(BatchResult),
) error {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}

	e.logger.Info("starting batch resolution",
		"total_profiles", len(profiles),
		"concurrency", concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, profile := range profiles {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			record, err := e.Resolve(ctx, profile, caller)
			if err != nil {
				e.logger.Warn("lookup rate limited", "name", profile.DisplayName, "error", err)
			}
			callback(BatchResult{Index: i, Profile: profile, Record: record, Err: err})
			return nil
		})
	}

	err := g.Wait()
	e.logger.Info("batch resolution complete",
		"total_profiles", len(profiles),
		"elapsed", time.Since(startTime),
	)
	return err
}

// ResolveAll is ResolveBatch collecting the results in input order.
func (e *Engine) ResolveAll(ctx context.Context, profiles []model.Profile, caller governor.Caller, concurrency int) ([]BatchResult, error) {
	results := make([]BatchResult, len(profiles))
	err := e.ResolveBatch(ctx, profiles, caller, concurrency, func(r BatchResult) {
		results[r.Index] = r
	})
	return results, err
}
