package datasets

import (
	"context"
	"image"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/neurlang/varbatch/sampler"
)

// Memory is a Dataset over decoded images held in memory.
type Memory struct {
	images    []image.Image
	targets   []int
	transform Transform
	epoch     int64
}

// NewMemory pairs images with targets. A nil transform means CenterCrop.
func NewMemory(images []image.Image, targets []int, transform Transform) (*Memory, error) {
	if len(images) != len(targets) {
		return nil, errors.Errorf("datasets: %d images but %d targets", len(images), len(targets))
	}
	if transform == nil {
		transform = CenterCrop{}
	}
	return &Memory{images: images, targets: targets, transform: transform}, nil
}

// Len implements Dataset.
func (m *Memory) Len() int {
	return len(m.images)
}

// SetEpoch implements EpochSetter.
func (m *Memory) SetEpoch(epoch int) {
	atomic.StoreInt64(&m.epoch, int64(epoch))
}

// Fetch implements Dataset.
func (m *Memory) Fetch(ctx context.Context, req sampler.SampleRequest) (Sample, error) {
	if err := ctx.Err(); err != nil {
		return Sample{}, err
	}
	if err := checkIndex(req.Index, len(m.images)); err != nil {
		return Sample{}, err
	}
	img := m.transform.Apply(m.images[req.Index], req, int(atomic.LoadInt64(&m.epoch)))
	return Sample{Samples: ToTensor(img), Target: m.targets[req.Index]}, nil
}
