package trainer

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"github.com/neurlang/varbatch/datasets"
	"github.com/neurlang/varbatch/loader"
	"github.com/neurlang/varbatch/parallel"
	"github.com/neurlang/varbatch/sampler"
)

// MaxClass is the largest class id Evaluate accepts; predictions are digested
// as uint16.
const MaxClass = math.MaxUint16

// PredictFunc returns one predicted class per sample of b.
type PredictFunc func(ctx context.Context, b *datasets.Batch) ([]int, error)

// Evaluation is the score of one pass over an evaluation plan.
type Evaluation struct {
	Correct int
	Total   int

	// Digest covers every prediction at its plan position. Equal digests
	// mean the model answered identically.
	Digest [32]byte
}

// Accuracy is the percentage of correct predictions.
func (e Evaluation) Accuracy() float64 {
	if e.Total == 0 {
		return 0
	}
	return 100 * float64(e.Correct) / float64(e.Total)
}

// EvaluateOption configures Evaluate.
type EvaluateOption func(*evaluateSettings)

type evaluateSettings struct {
	workers      int
	significance byte
}

// WithEvalWorkers bounds how many batches are scored at once.
func WithEvalWorkers(n int) EvaluateOption {
	return func(s *evaluateSettings) {
		s.workers = n
	}
}

// WithSignificance scores only the leading batches covering a sample large
// enough for the given confidence (90, 95 or 99) instead of the whole plan.
func WithSignificance(percent byte) EvaluateOption {
	return func(s *evaluateSettings) {
		s.significance = percent
	}
}

// Evaluate loads the batches of plan through ld, concurrently, and scores
// predict against the targets. Padding requests are not scored.
func Evaluate(ctx context.Context, ld *loader.Loader, plan *sampler.Plan, predict PredictFunc, opts ...EvaluateOption) (Evaluation, error) {
	var s = evaluateSettings{workers: parallel.Workers()}
	for _, o := range opts {
		o(&s)
	}

	var (
		batches = plan.Batches
		offsets = make([]int, len(batches)+1)
	)
	for i, b := range batches {
		offsets[i+1] = offsets[i] + b.Len() - b.Padded
	}
	if s.significance > 0 && s.significance < 100 {
		want := sampleSize(offsets[len(batches)], s.significance)
		for cut := range offsets {
			if offsets[cut] >= want {
				batches = batches[:cut]
				break
			}
		}
	}

	var (
		total   = offsets[len(batches)]
		h       = parallel.NewUint16Hasher(total)
		correct = make([]int, len(batches))
	)
	err := parallel.ForEach(len(batches), s.workers, func(i int) error {
		b, err := ld.Load(ctx, batches[i])
		if err != nil {
			return err
		}
		got, err := predict(ctx, b)
		if err != nil {
			return errors.Wrapf(err, "predicting step %d", b.Step)
		}
		scored := b.Len() - batches[i].Padded
		if len(got) < scored {
			return errors.Errorf("predicting step %d: %d predictions for %d samples", b.Step, len(got), scored)
		}
		for j := 0; j < scored; j++ {
			if got[j] < 0 || got[j] > MaxClass {
				return errors.Errorf("predicting step %d: class %d outside [0, %d]", b.Step, got[j], MaxClass)
			}
		}
		for j := 0; j < scored; j++ {
			h.MustPutUint16(offsets[i]+j, uint16(got[j]))
			if got[j] == b.Targets[j] {
				correct[i]++
			}
		}
		return nil
	})
	if err != nil {
		return Evaluation{}, err
	}

	var ev = Evaluation{Total: total, Digest: h.Sum()}
	for _, c := range correct {
		ev.Correct += c
	}
	return ev, nil
}

// sampleSize is the number of samples that estimate accuracy over n samples
// within a margin of (100-significance)% at that confidence.
func sampleSize(n int, significance byte) int {
	var (
		z = zScoreFromAlpha(100 - significance)
		p = 0.5 // worst case variance
		e = float64(100-significance) * 0.01
	)
	ss := z * z * p * (1 - p) / (e * e)

	// finite population correction
	corrected := ss * float64(n) / (float64(n) - 1 + ss)
	if int(math.Ceil(corrected)) > n {
		return n
	}
	return int(math.Ceil(corrected))
}

// zScoreFromAlpha maps 1, 5 and 10 percent alpha to 99, 95 and 90 percent confidence.
func zScoreFromAlpha(alpha byte) float64 {
	switch {
	case alpha <= 1:
		return 2.576
	case alpha <= 5:
		return 1.96
	case alpha <= 10:
		return 1.645
	default:
		return 1.96
	}
}
