package datasets

import (
	"github.com/pkg/errors"

	"github.com/neurlang/varbatch/sampler"
)

// ErrShapeMismatch is returned by Stack when samples of one batch disagree.
var ErrShapeMismatch = errors.New("datasets: sample shapes differ within a batch")

// Batch is a loaded step: Samples has shape [N, C, H, W].
type Batch struct {
	Step       int
	Resolution sampler.Resolution
	Indices    []int
	Samples    Tensor
	Targets    []int
}

// Len is the number of samples.
func (b *Batch) Len() int {
	return len(b.Indices)
}

// Stack copies the samples of b into one contiguous batch tensor.
func Stack(b sampler.Batch, samples []Sample) (*Batch, error) {
	if len(samples) != b.Len() {
		return nil, errors.Errorf("datasets: %d samples for a batch of %d", len(samples), b.Len())
	}
	out := &Batch{
		Step:       b.Step,
		Resolution: b.Resolution,
		Indices:    b.Indices(),
		Targets:    make([]int, len(samples)),
	}
	if len(samples) == 0 {
		return out, nil
	}

	shape := samples[0].Samples.Shape
	if len(shape) != 3 || shape[1] != b.Resolution.Height || shape[2] != b.Resolution.Width {
		return nil, errors.Wrapf(ErrShapeMismatch, "sample %d has shape %v, batch resolution %s",
			out.Indices[0], shape, b.Resolution)
	}
	size := samples[0].Samples.Size()
	out.Samples = Tensor{
		Shape: append([]int{len(samples)}, shape...),
		Data:  make([]float32, len(samples)*size),
	}
	for i, s := range samples {
		if !sameShape(s.Samples.Shape, shape) || len(s.Samples.Data) != size {
			return nil, errors.Wrapf(ErrShapeMismatch, "sample %d has shape %v, want %v",
				out.Indices[i], s.Samples.Shape, shape)
		}
		copy(out.Samples.Data[i*size:], s.Samples.Data)
		out.Targets[i] = s.Target
	}
	return out, nil
}

func sameShape(a, b []int) bool {
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
