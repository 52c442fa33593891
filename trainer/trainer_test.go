package trainer

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/neurlang/varbatch/datasets"
	"github.com/neurlang/varbatch/loader"
	"github.com/neurlang/varbatch/sampler"
)

// epochs records SetEpoch calls
type epochs struct {
	*datasets.Memory
	seen []int
}

func (e *epochs) SetEpoch(epoch int) {
	e.seen = append(e.seen, epoch)
	e.Memory.SetEpoch(epoch)
}

func memory(t *testing.T, n int) *datasets.Memory {
	t.Helper()
	var (
		images  = make([]image.Image, n)
		targets = make([]int, n)
	)
	for i := range images {
		images[i] = imaging.New(16, 16, color.NRGBA{G: uint8(i), A: 255})
		targets[i] = i % 3
	}
	m, err := datasets.NewMemory(images, targets, nil)
	require.NoError(t, err)
	return m
}

func newTrainer(t *testing.T, ds datasets.Dataset, epochs int, state string) *Trainer {
	t.Helper()
	s, err := sampler.New(sampler.Config{
		BaseBatchSize:  4,
		BaseResolution: sampler.Resolution{Height: 16, Width: 16},
		MultiScale: sampler.MultiScale{
			Min:       sampler.Resolution{Height: 8, Width: 8},
			Max:       sampler.Resolution{Height: 24, Width: 24},
			NumScales: 3,
			Divisor:   8,
		},
		Seed: 3,
	}, ds.Len())
	require.NoError(t, err)
	return &Trainer{
		Sampler:   s,
		Loader:    loader.New(ds, loader.WithWorkers(2)),
		Epochs:    epochs,
		StatePath: state,
	}
}

type record struct {
	epoch, step int
}

func TestRun(t *testing.T) {
	ds := &epochs{Memory: memory(t, 30)}
	tr := newTrainer(t, ds, 3, "")

	var steps int
	sum, err := tr.Run(context.Background(), func(_ context.Context, b *datasets.Batch) error {
		steps++
		assert.Equal(t, []int{b.Len(), 3, b.Resolution.Height, b.Resolution.Width}, b.Samples.Shape)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Epochs)
	assert.Equal(t, steps, sum.Batches)
	assert.Equal(t, []int{0, 1, 2}, ds.seen)
	assert.GreaterOrEqual(t, sum.Samples, 90)
}

func TestRunResumesAfterFailure(t *testing.T) {
	ds := memory(t, 60)

	var full []record
	_, err := newTrainer(t, ds, 2, "").Run(context.Background(), func(_ context.Context, b *datasets.Batch) error {
		full = append(full, record{len(full), b.Step})
		return nil
	})
	require.NoError(t, err)

	state := filepath.Join(t.TempDir(), "state.yaml")
	boom := errors.New("boom")
	var first []record
	_, err = newTrainer(t, ds, 2, state).Run(context.Background(), func(_ context.Context, b *datasets.Batch) error {
		if len(first) == 3 {
			return boom
		}
		first = append(first, record{len(first), b.Step})
		return nil
	})
	require.True(t, errors.Is(err, boom))

	st, err := Resume(state)
	require.NoError(t, err)
	assert.NotEmpty(t, st.RunID)

	var rest []record
	_, err = newTrainer(t, ds, 2, state).Run(context.Background(), func(_ context.Context, b *datasets.Batch) error {
		rest = append(rest, record{len(first) + len(rest), b.Step})
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, full, append(first, rest...))

	st, err = Resume(state)
	require.NoError(t, err)
	assert.Equal(t, State{Epoch: 2, RunID: st.RunID}, st)
}

func TestRunRejectsChangedPlan(t *testing.T) {
	state := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, SaveState(state, State{Epoch: 0, Step: 1, Fingerprint: "00"}))

	_, err := newTrainer(t, memory(t, 12), 1, state).Run(context.Background(), func(context.Context, *datasets.Batch) error {
		return nil
	})
	assert.True(t, errors.Is(err, ErrStateMismatch))
}

func TestRunFinished(t *testing.T) {
	state := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, SaveState(state, State{Epoch: 4}))

	sum, err := newTrainer(t, memory(t, 12), 4, state).Run(context.Background(), func(context.Context, *datasets.Batch) error {
		t.Fatal("no step expected")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, Summary{}, sum)
}

func TestRunLogsEpochs(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	tr := newTrainer(t, memory(t, 12), 2, "")
	tr.Log = zap.New(core)

	_, err := tr.Run(context.Background(), func(context.Context, *datasets.Batch) error { return nil })
	require.NoError(t, err)
	done := logs.FilterMessage("epoch done").All()
	require.Len(t, done, 2)
	assert.Equal(t, int64(1), done[1].ContextMap()["epoch"])
	assert.Equal(t, tr.Loader.RunID(), done[1].ContextMap()["run_id"])
}

func TestResume(t *testing.T) {
	st, err := Resume("")
	require.NoError(t, err)
	assert.Equal(t, State{}, st)

	dir := t.TempDir()
	st, err = Resume(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, State{}, st)

	path := filepath.Join(dir, "state.yaml")
	want := State{Epoch: 3, Step: 7, Fingerprint: "abc", RunID: "r"}
	require.NoError(t, SaveState(path, want))
	st, err = Resume(path)
	require.NoError(t, err)
	assert.Equal(t, want, st)

	require.NoError(t, SaveState(path, State{Epoch: -1}))
	_, err = Resume(path)
	assert.Error(t, err)
}
