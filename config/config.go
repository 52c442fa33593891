// Package config reads the sampler and dataset options of a training run
// from YAML, or from a flat map of dotted option names, and turns them into
// sampler.Config values per split.
package config

import (
	"io/ioutil"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/neurlang/varbatch/datasets"
	"github.com/neurlang/varbatch/permute"
	"github.com/neurlang/varbatch/sampler"
)

// Sampler names.
const (
	VariableBatchSampler = "variable_batch_sampler"
	BatchSampler         = "batch_sampler"
)

// Options is the root of the configuration file.
type Options struct {
	Sampler SamplerOptions `yaml:"sampler"`
	Dataset DatasetOptions `yaml:"dataset"`
}

type SamplerOptions struct {
	Name               string `yaml:"name"`
	Seed               uint64 `yaml:"seed"`
	NumRepeats         int    `yaml:"num_repeats"`
	TruncatedRepeatAug bool   `yaml:"truncated_repeat_aug_sampler"`
	LastBatch          string `yaml:"last_batch"`
	ShardMode          string `yaml:"shard_mode"`
	PadShards          bool   `yaml:"pad_shards"`
	Permutation        string `yaml:"permutation"`

	BS  FixedOptions    `yaml:"bs"`
	VBS VariableOptions `yaml:"vbs"`
}

// FixedOptions configures the single-resolution batch sampler.
type FixedOptions struct {
	CropWidth  int `yaml:"crop_size_width"`
	CropHeight int `yaml:"crop_size_height"`
}

// VariableOptions configures the variable-batch sampler.
type VariableOptions struct {
	CropWidth     int `yaml:"crop_size_width"`
	CropHeight    int `yaml:"crop_size_height"`
	MinCropWidth  int `yaml:"min_crop_size_width"`
	MaxCropWidth  int `yaml:"max_crop_size_width"`
	MinCropHeight int `yaml:"min_crop_size_height"`
	MaxCropHeight int `yaml:"max_crop_size_height"`
	MaxNScales    int `yaml:"max_n_scales"`
	CheckScale    int `yaml:"check_scale"`

	ScaleInc       bool    `yaml:"scale_inc"`
	EpIntervals    []int   `yaml:"ep_intervals"`
	ScaleIncFactor float64 `yaml:"scale_inc_factor"`
}

type DatasetOptions struct {
	RootTrain string `yaml:"root_train"`
	RootVal   string `yaml:"root_val"`
	RootTest  string `yaml:"root_test"`

	TrainBatchSize int `yaml:"train_batch_size0"`
	ValBatchSize   int `yaml:"val_batch_size0"`
	EvalBatchSize  int `yaml:"eval_batch_size0"`

	Workers        int `yaml:"workers"`
	PrefetchFactor int `yaml:"prefetch_factor"`
}

// Default returns the options every file is read on top of.
func Default() *Options {
	return &Options{
		Sampler: SamplerOptions{
			Name:       VariableBatchSampler,
			NumRepeats: 1,
			BS:         FixedOptions{CropWidth: 224, CropHeight: 224},
			VBS: VariableOptions{
				CropWidth:      256,
				CropHeight:     256,
				MinCropWidth:   160,
				MaxCropWidth:   320,
				MinCropHeight:  160,
				MaxCropHeight:  320,
				MaxNScales:     5,
				CheckScale:     sampler.DefaultDivisor,
				ScaleIncFactor: 0.25,
			},
		},
		Dataset: DatasetOptions{
			TrainBatchSize: 128,
			ValBatchSize:   100,
			EvalBatchSize:  100,
			PrefetchFactor: 2,
		},
	}
}

// Load reads the YAML file at path.
func Load(path string) (*Options, error) {
	buf, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}
	opts, err := Parse(buf)
	if err != nil {
		return nil, errors.WithMessagef(err, "config %s", path)
	}
	return opts, nil
}

// Parse reads YAML. Unknown keys are rejected.
func Parse(buf []byte) (*Options, error) {
	opts := Default()
	if err := yaml.UnmarshalStrict(buf, opts); err != nil {
		return nil, errors.Wrap(err, "config")
	}
	return opts, nil
}

// FromMap reads named options such as "sampler.vbs.max_n_scales". Nested
// maps and dotted names may be mixed; m is not modified.
func FromMap(m map[string]interface{}) (*Options, error) {
	tree := make(map[string]interface{})
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := insert(tree, strings.Split(k, "."), m[k]); err != nil {
			return nil, errors.WithMessagef(err, "option %q", k)
		}
	}
	buf, err := yaml.Marshal(tree)
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}
	return Parse(buf)
}

func insert(tree map[string]interface{}, path []string, v interface{}) error {
	if len(path) == 1 {
		if _, ok := tree[path[0]].(map[string]interface{}); ok {
			return errors.New("config: value set on an option group")
		}
		tree[path[0]] = clone(v)
		return nil
	}
	sub, ok := tree[path[0]]
	if !ok {
		sub = make(map[string]interface{})
		tree[path[0]] = sub
	}
	next, ok := sub.(map[string]interface{})
	if !ok {
		return errors.Errorf("config: %s is a value, not an option group", path[0])
	}
	return insert(next, path[1:], v)
}

// clone copies nested option groups so that inserting dotted names never
// writes into maps owned by the caller.
func clone(v interface{}) interface{} {
	m, ok := v.(map[string]interface{})
	if !ok {
		return v
	}
	out := make(map[string]interface{}, len(m))
	for k, sub := range m {
		out[k] = clone(sub)
	}
	return out
}

func invalid(field string, value interface{}, reason string) error {
	return &sampler.ConfigError{Field: field, Value: value, Reason: reason}
}

// Root returns the data directory of split.
func (o *Options) Root(split datasets.Split) (string, error) {
	var root, key string
	switch split {
	case datasets.Train:
		root, key = o.Dataset.RootTrain, "dataset.root_train"
	case datasets.Validation:
		root, key = o.Dataset.RootVal, "dataset.root_val"
	case datasets.Test:
		root, key = o.Dataset.RootTest, "dataset.root_test"
	default:
		return "", invalid("split", split, "unknown split")
	}
	if root == "" {
		return "", invalid(key, root, "no directory configured for the "+string(split)+" split")
	}
	return root, nil
}

// BatchSize returns the base batch size of split.
func (o *Options) BatchSize(split datasets.Split) (int, error) {
	var bs int
	var key string
	switch split {
	case datasets.Train:
		bs, key = o.Dataset.TrainBatchSize, "dataset.train_batch_size0"
	case datasets.Validation:
		bs, key = o.Dataset.ValBatchSize, "dataset.val_batch_size0"
	case datasets.Test:
		bs, key = o.Dataset.EvalBatchSize, "dataset.eval_batch_size0"
	default:
		return 0, invalid("split", split, "unknown split")
	}
	if bs <= 0 {
		return 0, invalid(key, bs, "must be positive")
	}
	return bs, nil
}

// SamplerConfig builds the plan configuration of split for one rank.
//
// Training follows the configured sampler, with last_batch defaulting to
// pad. Validation and test batches are unshuffled, unrepeated, single scale
// at the base crop size, and keep a short last batch so no sample is
// scored twice.
func (o *Options) SamplerConfig(split datasets.Split, rank, world int) (sampler.Config, error) {
	var cfg sampler.Config
	s := o.Sampler

	bs, err := o.BatchSize(split)
	if err != nil {
		return cfg, err
	}
	cfg.BaseBatchSize = bs
	cfg.Seed = s.Seed

	mode, err := sampler.ParseShardMode(s.ShardMode)
	if err != nil {
		return cfg, err
	}
	cfg.Shard = sampler.Shard{Rank: rank, World: world, Mode: mode}

	switch s.Name {
	case VariableBatchSampler, "vbs", "":
		v := s.VBS
		cfg.BaseResolution = sampler.Resolution{Height: v.CropHeight, Width: v.CropWidth}
		if split.Training() {
			cfg.MultiScale = sampler.MultiScale{
				Min:       sampler.Resolution{Height: v.MinCropHeight, Width: v.MinCropWidth},
				Max:       sampler.Resolution{Height: v.MaxCropHeight, Width: v.MaxCropWidth},
				NumScales: v.MaxNScales,
				Divisor:   v.CheckScale,
			}
			if v.ScaleInc {
				cfg.Schedule = sampler.ScaleSchedule{Epochs: v.EpIntervals, Factor: v.ScaleIncFactor}
			}
		}
	case BatchSampler, "bs":
		cfg.BaseResolution = sampler.Resolution{Height: s.BS.CropHeight, Width: s.BS.CropWidth}
	default:
		return cfg, invalid("sampler.name", s.Name, "want "+VariableBatchSampler+" or "+BatchSampler)
	}

	if !split.Training() {
		cfg.NoShuffle = true
		cfg.LastBatch = sampler.LastBatchShort
		return cfg, nil
	}

	cfg.Permutation, err = permute.ParseKind(s.Permutation)
	if err != nil {
		return cfg, invalid("sampler.permutation", s.Permutation, err.Error())
	}
	cfg.LastBatch = sampler.LastBatchPad
	if s.LastBatch != "" {
		if cfg.LastBatch, err = sampler.ParseLastBatch(s.LastBatch); err != nil {
			return cfg, err
		}
	}
	cfg.NumRepeats = s.NumRepeats
	cfg.TruncateRepeats = s.TruncatedRepeatAug
	cfg.Shard.Pad = s.PadShards
	return cfg, nil
}
