package sampler

import "github.com/neurlang/varbatch/permute"

// LastBatch decides what happens to a final batch with too few samples.
type LastBatch int

const (
	// LastBatchShort keeps the final batch shorter than its batch size.
	LastBatchShort LastBatch = iota
	// LastBatchPad fills the final batch by wrapping around to the start of
	// the rank's order.
	LastBatchPad
)

func (l LastBatch) String() string {
	switch l {
	case LastBatchShort:
		return "short"
	case LastBatchPad:
		return "pad"
	}
	return "unknown"
}

// ParseLastBatch is the inverse of LastBatch.String.
func ParseLastBatch(s string) (LastBatch, error) {
	switch s {
	case "short":
		return LastBatchShort, nil
	case "pad":
		return LastBatchPad, nil
	}
	return LastBatchShort, configError("last_batch", s, "want short or pad")
}

// ShardMode selects how the global order is cut between ranks.
type ShardMode int

const (
	// ShardStrided gives rank r the positions r, r+world, r+2*world, ...
	ShardStrided ShardMode = iota
	// ShardContiguous gives each rank one balanced run of positions.
	ShardContiguous
)

func (m ShardMode) String() string {
	switch m {
	case ShardStrided:
		return "strided"
	case ShardContiguous:
		return "contiguous"
	}
	return "unknown"
}

// ParseShardMode is the inverse of ShardMode.String.
func ParseShardMode(s string) (ShardMode, error) {
	switch s {
	case "", "strided":
		return ShardStrided, nil
	case "contiguous":
		return ShardContiguous, nil
	}
	return ShardStrided, configError("shard_mode", s, "want strided or contiguous")
}

// Shard places this process among World distributed ranks.
type Shard struct {
	Rank  int
	World int // 0 means 1
	Mode  ShardMode
	// Pad repeats the start of the global order so that every rank gets
	// the same number of samples.
	Pad bool
}

func (s Shard) world() int {
	if s.World == 0 {
		return 1
	}
	return s.World
}

// Config holds every plan-shaping setting.
type Config struct {
	BaseBatchSize  int
	BaseResolution Resolution
	MultiScale     MultiScale
	Schedule       ScaleSchedule

	// NoShuffle keeps dataset order (validation and evaluation).
	NoShuffle   bool
	Permutation permute.Kind

	// NumRepeats repeats every index consecutively before sharding. 0 means 1.
	NumRepeats int
	// TruncateRepeats cuts the repeated order back to about one dataset
	// length, so an epoch sees a subset of indices several times each.
	TruncateRepeats bool

	LastBatch LastBatch
	Shard     Shard

	// Seed is the base seed Sampler derives epoch seeds from.
	Seed uint64
}

func (c Config) repeats() int {
	if c.NumRepeats == 0 {
		return 1
	}
	return c.NumRepeats
}

// Validate checks the configuration against a dataset of the given size.
func (c Config) Validate(datasetSize int) error {
	if c.BaseBatchSize <= 0 {
		return configError("base_batch_size", c.BaseBatchSize, "must be positive")
	}
	if !c.BaseResolution.Valid() {
		return configError("base_resolution", c.BaseResolution, "dimensions must be positive")
	}
	if datasetSize <= 0 || uint64(datasetSize) > permute.MaxLen {
		return configError("dataset_size", datasetSize, "must be in [1, %d]", uint64(permute.MaxLen))
	}
	if err := c.MultiScale.validate(); err != nil {
		return err
	}
	if err := c.Schedule.validate(); err != nil {
		return err
	}
	switch c.Permutation {
	case permute.Feistel, permute.Stride, permute.Identity:
	default:
		return configError("permutation", int(c.Permutation), "unknown kind")
	}
	if c.NumRepeats < 0 {
		return configError("num_repeats", c.NumRepeats, "must not be negative")
	}
	if uint64(datasetSize)*uint64(c.repeats()) > permute.MaxLen {
		return configError("num_repeats", c.NumRepeats, "repeated dataset exceeds %d samples", uint64(permute.MaxLen))
	}
	switch c.LastBatch {
	case LastBatchShort, LastBatchPad:
	default:
		return configError("last_batch", int(c.LastBatch), "unknown policy")
	}
	if c.Shard.World < 0 {
		return configError("world", c.Shard.World, "must not be negative")
	}
	if c.Shard.Rank < 0 || c.Shard.Rank >= c.Shard.world() {
		return configError("rank", c.Shard.Rank, "must be in [0, %d)", c.Shard.world())
	}
	switch c.Shard.Mode {
	case ShardStrided, ShardContiguous:
	default:
		return configError("shard_mode", int(c.Shard.Mode), "unknown mode")
	}
	return nil
}

// Option adjusts the settings of BuildEpochPlan.
type Option func(*settings)

type settings struct {
	cfg   Config
	epoch int
}

// WithMultiScale enables multi-scale batches.
func WithMultiScale(ms MultiScale) Option {
	return func(s *settings) { s.cfg.MultiScale = ms }
}

// WithSchedule grows the multi-scale range over epochs; see WithEpoch.
func WithSchedule(sch ScaleSchedule) Option {
	return func(s *settings) { s.cfg.Schedule = sch }
}

// WithEpoch records the epoch number in the plan and selects the scale
// schedule step. It does not change the seed.
func WithEpoch(epoch int) Option {
	return func(s *settings) { s.epoch = epoch }
}

// WithShard restricts the plan to one rank's share of the global order.
func WithShard(sh Shard) Option {
	return func(s *settings) { s.cfg.Shard = sh }
}

// WithLastBatch selects the final batch policy.
func WithLastBatch(policy LastBatch) Option {
	return func(s *settings) { s.cfg.LastBatch = policy }
}

// WithRepeats enables repeated augmentation.
func WithRepeats(n int, truncate bool) Option {
	return func(s *settings) { s.cfg.NumRepeats, s.cfg.TruncateRepeats = n, truncate }
}

// WithPermutation selects the permutation family.
func WithPermutation(kind permute.Kind) Option {
	return func(s *settings) { s.cfg.Permutation = kind }
}

// WithoutShuffle keeps dataset order.
func WithoutShuffle() Option {
	return func(s *settings) { s.cfg.NoShuffle = true }
}

// WithConfig replaces every setting except the base batch size and resolution.
func WithConfig(cfg Config) Option {
	return func(s *settings) {
		cfg.BaseBatchSize, cfg.BaseResolution = s.cfg.BaseBatchSize, s.cfg.BaseResolution
		s.cfg = cfg
	}
}
