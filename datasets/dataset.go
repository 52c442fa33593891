// Package datasets implements the sample side of a training step: the Dataset
// a loader fetches SampleRequests from, the image transforms that bring a
// sample to the requested crop size, and the Batch a step consumes.
package datasets

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/neurlang/varbatch/sampler"
)

// ErrIndexOutOfRange is returned for a request outside [0, Len()).
var ErrIndexOutOfRange = errors.New("datasets: index out of range")

// Tensor is a dense float32 array in row-major order.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Size is the number of elements Shape describes.
func (t Tensor) Size() int {
	var n = 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Sample is what a Dataset returns for one request: the samples tensor cropped
// to the requested resolution and the target label.
type Sample struct {
	Samples Tensor
	Target  int
}

// Dataset serves samples at the resolution each request asks for.
// Fetch must be safe for concurrent use.
type Dataset interface {
	Len() int
	Fetch(ctx context.Context, req sampler.SampleRequest) (Sample, error)
}

// EpochSetter is implemented by datasets whose augmentation depends on the epoch.
type EpochSetter interface {
	SetEpoch(epoch int)
}

// Split names a partition of a dataset.
type Split string

const (
	Train      Split = "train"
	Validation Split = "val"
	Test       Split = "test"
)

// ParseSplit accepts train, val (or validation) and test.
func ParseSplit(s string) (Split, error) {
	switch strings.ToLower(s) {
	case "train":
		return Train, nil
	case "val", "valid", "validation":
		return Validation, nil
	case "test", "eval":
		return Test, nil
	}
	return "", errors.Errorf("unknown split %q", s)
}

// Training reports whether samples of the split are augmented and shuffled.
func (s Split) Training() bool {
	return s == Train
}

func checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return errors.Wrapf(ErrIndexOutOfRange, "index %d, dataset size %d", i, n)
	}
	return nil
}
