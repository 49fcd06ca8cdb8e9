package fetch

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Item is one independent unit of fetch work, immutable once submitted.
type Item[T any] struct {
	Key string
	Run func(ctx context.Context) (T, error)
}

// Result is the terminal outcome for one item: a value or an error, never
// both absent. Exactly one Result exists per submitted Item.
type Result[T any] struct {
	Key   string
	Value T
	Err   error
}

// All executes the items across a bounded worker pool of
// min(maxConcurrency, len(items)) and returns once every item has reached a
// terminal state. One item's failure or panic never aborts its siblings.
// maxConcurrency <= 1 takes a sequential path that produces identical
// per-item results, differing only in wall-clock time.
func All[T any](ctx context.Context, logger *logrus.Logger, items []Item[T], maxConcurrency int) map[string]Result[T] {
	if logger == nil {
		logger = logrus.New()
	}

	results := make([]Result[T], len(items))

	if maxConcurrency <= 1 || len(items) <= 1 {
		for i, item := range items {
			results[i] = runItem(ctx, item)
		}
	} else {
		if maxConcurrency > len(items) {
			maxConcurrency = len(items)
		}

		sem := make(chan struct{}, maxConcurrency)
		var wg sync.WaitGroup

		for i, item := range items {
			wg.Add(1)
			go func(i int, item Item[T]) {
				defer wg.Done()

				// Items not yet started when the batch is cancelled are
				// recorded as failures instead of blocking on the semaphore.
				select {
				case <-ctx.Done():
					results[i] = Result[T]{Key: item.Key, Err: ctx.Err()}
					return
				case sem <- struct{}{}:
				}
				defer func() { <-sem }()

				results[i] = runItem(ctx, item)
			}(i, item)
		}

		wg.Wait()
	}

	out := make(map[string]Result[T], len(items))
	for _, result := range results {
		if result.Err != nil {
			logger.WithFields(logrus.Fields{
				"item": result.Key,
			}).WithError(result.Err).Warn("Fetch item failed")
		}
		out[result.Key] = result
	}
	return out
}

// runItem executes one item, converting panics into per-item failures so a
// single faulty item cannot take down the batch.
func runItem[T any](ctx context.Context, item Item[T]) (result Result[T]) {
	result.Key = item.Key

	defer func() {
		if r := recover(); r != nil {
			result.Err = fmt.Errorf("fetch of %q panicked: %v", item.Key, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}

	value, err := item.Run(ctx)
	result.Value = value
	result.Err = err
	return result
}
