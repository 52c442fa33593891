package trainer

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/neurlang/varbatch/datasets"
	"github.com/neurlang/varbatch/loader"
	"github.com/neurlang/varbatch/sampler"
)

// StepFunc consumes one loaded batch. An error stops the run.
type StepFunc func(ctx context.Context, b *datasets.Batch) error

// Trainer runs Epochs epochs of Sampler plans through Loader.
type Trainer struct {
	Sampler *sampler.Sampler
	Loader  *loader.Loader
	Epochs  int

	// StatePath, when set, is rewritten after every step and every epoch.
	StatePath string

	Log *zap.Logger
}

// Summary counts the work of one Run.
type Summary struct {
	Epochs  int
	Batches int
	Samples int
}

func fingerprint(p *sampler.Plan) string {
	fp := p.Fingerprint()
	return fmt.Sprintf("%x", fp[:])
}

// Run trains from the saved state, or from epoch 0 when there is none.
func (t *Trainer) Run(ctx context.Context, step StepFunc) (Summary, error) {
	var (
		sum Summary
		log = t.Log
	)
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("run_id", t.Loader.RunID()))

	st, err := Resume(t.StatePath)
	if err != nil {
		return sum, err
	}
	if st.Epoch > 0 || st.Step > 0 {
		log.Info("resuming", zap.Int("epoch", st.Epoch), zap.Int("step", st.Step))
	}

	for epoch := st.Epoch; epoch < t.Epochs; epoch++ {
		if es, ok := t.Loader.Dataset().(datasets.EpochSetter); ok {
			es.SetEpoch(epoch)
		}
		plan, err := t.Sampler.Plan(epoch)
		if err != nil {
			return sum, err
		}
		fp := fingerprint(plan)

		cur := plan.Cursor()
		if epoch == st.Epoch && st.Step > 0 {
			if st.Fingerprint != "" && st.Fingerprint != fp {
				return sum, errors.Wrapf(ErrStateMismatch, "epoch %d", epoch)
			}
			if err := cur.Seek(st.Step); err != nil {
				return sum, errors.Wrap(err, "resume")
			}
		}

		began := time.Now()
		var samples int
		n, err := t.Loader.Each(ctx, cur, func(b *datasets.Batch) error {
			if err := step(ctx, b); err != nil {
				return errors.Wrapf(err, "epoch %d step %d", epoch, b.Step)
			}
			samples += b.Len()
			return t.save(State{Epoch: epoch, Step: b.Step + 1, Fingerprint: fp})
		})
		sum.Batches += n
		sum.Samples += samples
		if err != nil {
			return sum, err
		}
		if err := t.save(State{Epoch: epoch + 1}); err != nil {
			return sum, err
		}
		sum.Epochs++

		log.Info("epoch done",
			zap.Int("epoch", epoch),
			zap.Int("batches", n),
			zap.Int("samples", samples),
			zap.Int("scales", len(plan.Resolutions())),
			zap.Duration("elapsed", time.Since(began)),
		)
	}
	return sum, nil
}

func (t *Trainer) save(st State) error {
	if t.StatePath == "" {
		return nil
	}
	st.RunID = t.Loader.RunID()
	return SaveState(t.StatePath, st)
}
