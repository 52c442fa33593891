package config

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neurlang/varbatch/datasets"
	"github.com/neurlang/varbatch/permute"
	"github.com/neurlang/varbatch/sampler"
)

const sample = `
sampler:
  name: variable_batch_sampler
  seed: 7
  num_repeats: 3
  truncated_repeat_aug_sampler: true
  shard_mode: contiguous
  pad_shards: true
  permutation: stride
  vbs:
    crop_size_width: 256
    crop_size_height: 256
    min_crop_size_width: 128
    max_crop_size_width: 320
    min_crop_size_height: 160
    max_crop_size_height: 320
    max_n_scales: 4
    check_scale: 16
    scale_inc: true
    ep_intervals: [10, 20]
    scale_inc_factor: 0.5
dataset:
  root_train: /data/train
  root_val: /data/val
  train_batch_size0: 64
  val_batch_size0: 50
  workers: 4
`

func TestParseTrain(t *testing.T) {
	opts, err := Parse([]byte(sample))
	require.NoError(t, err)

	cfg, err := opts.SamplerConfig(datasets.Train, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, sampler.Config{
		BaseBatchSize:  64,
		BaseResolution: sampler.Resolution{Height: 256, Width: 256},
		MultiScale: sampler.MultiScale{
			Min:       sampler.Resolution{Height: 160, Width: 128},
			Max:       sampler.Resolution{Height: 320, Width: 320},
			NumScales: 4,
			Divisor:   16,
		},
		Schedule:        sampler.ScaleSchedule{Epochs: []int{10, 20}, Factor: 0.5},
		Permutation:     permute.Stride,
		NumRepeats:      3,
		TruncateRepeats: true,
		LastBatch:       sampler.LastBatchPad,
		Shard:           sampler.Shard{Rank: 1, World: 4, Mode: sampler.ShardContiguous, Pad: true},
		Seed:            7,
	}, cfg)
	assert.Equal(t, 4, opts.Dataset.Workers)
	assert.Equal(t, 2, opts.Dataset.PrefetchFactor, "default kept")
}

func TestParseEval(t *testing.T) {
	opts, err := Parse([]byte(sample))
	require.NoError(t, err)

	cfg, err := opts.SamplerConfig(datasets.Validation, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, sampler.Config{
		BaseBatchSize:  50,
		BaseResolution: sampler.Resolution{Height: 256, Width: 256},
		NoShuffle:      true,
		LastBatch:      sampler.LastBatchShort,
		Shard:          sampler.Shard{Rank: 0, World: 2, Mode: sampler.ShardContiguous},
		Seed:           7,
	}, cfg)

	cfg, err = opts.SamplerConfig(datasets.Test, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.BaseBatchSize)
}

func TestBatchSampler(t *testing.T) {
	opts, err := FromMap(map[string]interface{}{
		"sampler.name":              "batch_sampler",
		"dataset.train_batch_size0": 32,
		"dataset":                   nil,
	})
	require.Error(t, err, "dataset is both a group and a value")

	opts, err = FromMap(map[string]interface{}{
		"sampler.name":                "batch_sampler",
		"sampler.bs.crop_size_width":  192,
		"sampler.bs.crop_size_height": 160,
		"sampler.last_batch":          "short",
		"dataset": map[string]interface{}{
			"train_batch_size0": 32,
		},
	})
	require.NoError(t, err)
	cfg, err := opts.SamplerConfig(datasets.Train, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, sampler.Resolution{Height: 160, Width: 192}, cfg.BaseResolution)
	assert.False(t, cfg.MultiScale.Enabled())
	assert.Equal(t, sampler.LastBatchShort, cfg.LastBatch)
	assert.Equal(t, 32, cfg.BaseBatchSize)
	assert.Equal(t, permute.Feistel, cfg.Permutation)
}

func TestFromMapLeavesInputAlone(t *testing.T) {
	vbs := map[string]interface{}{"max_n_scales": 3}
	group := map[string]interface{}{"vbs": vbs}
	in := map[string]interface{}{
		"sampler":                   group,
		"sampler.seed":              11,
		"sampler.vbs.check_scale":   16,
		"dataset.train_batch_size0": 8,
	}

	opts, err := FromMap(in)
	require.NoError(t, err)
	assert.Equal(t, uint64(11), opts.Sampler.Seed)
	assert.Equal(t, 3, opts.Sampler.VBS.MaxNScales)
	assert.Equal(t, 16, opts.Sampler.VBS.CheckScale)

	assert.Equal(t, map[string]interface{}{"vbs": vbs}, group)
	assert.Equal(t, map[string]interface{}{"max_n_scales": 3}, vbs)
	assert.Len(t, in, 4)
}

func TestDefaultsBuildPlans(t *testing.T) {
	opts := Default()
	for _, split := range []datasets.Split{datasets.Train, datasets.Validation, datasets.Test} {
		cfg, err := opts.SamplerConfig(split, 0, 1)
		require.NoError(t, err)
		s, err := sampler.New(cfg, 1000)
		require.NoError(t, err)
		p, err := s.Plan(0)
		require.NoError(t, err)
		assert.Greater(t, p.Len(), 0)
	}
}

func TestRoot(t *testing.T) {
	opts, err := Parse([]byte(sample))
	require.NoError(t, err)

	root, err := opts.Root(datasets.Train)
	require.NoError(t, err)
	assert.Equal(t, "/data/train", root)
	root, err = opts.Root(datasets.Validation)
	require.NoError(t, err)
	assert.Equal(t, "/data/val", root)

	_, err = opts.Root(datasets.Test)
	require.True(t, errors.Is(err, sampler.ErrConfiguration), "test does not fall back to val")
	var ce *sampler.ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "dataset.root_test", ce.Field)
}

func TestConfigErrors(t *testing.T) {
	cases := map[string]string{
		"sampler:\n  name: random\n":        "sampler.name",
		"sampler:\n  permutation: shuffle\n": "sampler.permutation",
		"sampler:\n  last_batch: drop\n":     "last_batch",
		"sampler:\n  shard_mode: ring\n":     "shard_mode",
		"dataset:\n  train_batch_size0: 0\n": "dataset.train_batch_size0",
	}
	for doc, field := range cases {
		opts, err := Parse([]byte(doc))
		require.NoError(t, err, doc)
		_, err = opts.SamplerConfig(datasets.Train, 0, 1)
		var ce *sampler.ConfigError
		require.True(t, errors.As(err, &ce), doc)
		assert.Equal(t, field, ce.Field, doc)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("sampler:\n  nmae: vbs\n"))
	assert.Error(t, err)
	_, err = Parse([]byte("sampler: [1, 2]\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(sample), 0o644))
	opts, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), opts.Sampler.Seed)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
