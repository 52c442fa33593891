// Package loader turns the batches of an epoch plan into loaded
// datasets.Batch values, fetching the samples of a batch concurrently and
// keeping a bounded number of batches ready ahead of the consumer.
package loader

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/neurlang/varbatch/datasets"
	"github.com/neurlang/varbatch/parallel"
	"github.com/neurlang/varbatch/sampler"
)

// DefaultPrefetch is the number of loaded batches queued ahead of the consumer.
const DefaultPrefetch = 2

// Loader fetches batches from one dataset.
type Loader struct {
	ds       datasets.Dataset
	workers  int
	prefetch int
	runID    string
	log      *zap.Logger
}

// Option configures New.
type Option func(*Loader)

// WithWorkers bounds concurrent Fetch calls per batch. Zero or less means
// one per logical core.
func WithWorkers(n int) Option {
	return func(l *Loader) {
		l.workers = n
	}
}

// WithPrefetch sets how many loaded batches may wait for the consumer.
func WithPrefetch(n int) Option {
	return func(l *Loader) {
		l.prefetch = n
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(l *Loader) {
		l.log = log
	}
}

// WithRunID tags log lines. A random id is used otherwise.
func WithRunID(id string) Option {
	return func(l *Loader) {
		l.runID = id
	}
}

// New returns a loader over ds.
func New(ds datasets.Dataset, opts ...Option) *Loader {
	l := &Loader{ds: ds, prefetch: DefaultPrefetch}
	for _, o := range opts {
		o(l)
	}
	if l.workers <= 0 {
		l.workers = parallel.Workers()
	}
	if l.prefetch < 0 {
		l.prefetch = 0
	}
	if l.runID == "" {
		l.runID = uuid.New().String()
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	l.log = l.log.With(zap.String("run_id", l.runID))
	return l
}

func (l *Loader) Dataset() datasets.Dataset {
	return l.ds
}

func (l *Loader) RunID() string {
	return l.runID
}

// Load fetches every request of b. When fetches fail, the error of the
// earliest failed request is returned as the dataset produced it.
func (l *Loader) Load(ctx context.Context, b sampler.Batch) (*datasets.Batch, error) {
	samples := make([]datasets.Sample, b.Len())
	err := parallel.ForEach(b.Len(), l.workers, func(i int) error {
		s, err := l.ds.Fetch(ctx, b.Requests[i])
		if err != nil {
			return err
		}
		samples[i] = s
		return nil
	})
	if err != nil {
		l.log.Warn("batch failed", zap.Int("step", b.Step), zap.Error(err))
		return nil, err
	}
	out, err := datasets.Stack(b, samples)
	if err != nil {
		return nil, err
	}
	l.log.Debug("batch loaded",
		zap.Int("step", b.Step),
		zap.Stringer("resolution", b.Resolution),
		zap.Int("size", b.Len()),
		zap.Int("padded", b.Padded),
	)
	return out, nil
}

type result struct {
	batch *datasets.Batch
	err   error
}

// Each loads the remaining batches of cur in order and hands them to fn. It
// returns the number of batches fn accepted, and stops at the first error
// from loading, from fn, or from ctx. Running out of batches is not an error.
//
// Loading runs ahead of fn, so when Each stops early the cursor may have
// moved past the last batch fn saw.
func (l *Loader) Each(ctx context.Context, cur *sampler.Cursor, fn func(*datasets.Batch) error) (int, error) {
	ctx, cancel := context.WithCancel(ctx)
	queue := make(chan result, l.prefetch)
	defer func() {
		cancel()
		for range queue {
		}
	}()

	go func() {
		defer close(queue)
		for {
			b, err := cur.Next()
			if err == sampler.ErrExhausted {
				return
			}
			var r result
			if err != nil {
				r.err = err
			} else {
				r.batch, r.err = l.Load(ctx, b)
			}
			select {
			case queue <- r:
			case <-ctx.Done():
				return
			}
			if r.err != nil {
				return
			}
		}
	}()

	var n int
	for r := range queue {
		if r.err != nil {
			return n, r.err
		}
		if err := fn(r.batch); err != nil {
			return n, err
		}
		n++
	}
	if err := ctx.Err(); err != nil {
		return n, err
	}
	l.log.Debug("plan drained", zap.Int("batches", n))
	return n, nil
}
