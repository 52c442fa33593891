package sampler

import (
	"encoding/hex"

	"go.uber.org/zap"
)

// Sampler builds the plan of every epoch from one validated Config.
type Sampler struct {
	cfg Config
	n   int
	log *zap.Logger
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithLogger logs every built plan at debug level.
func WithLogger(l *zap.Logger) SamplerOption {
	return func(s *Sampler) { s.log = l }
}

// New validates cfg for a dataset of datasetSize samples.
func New(cfg Config, datasetSize int, opts ...SamplerOption) (*Sampler, error) {
	if err := cfg.Validate(datasetSize); err != nil {
		return nil, err
	}
	s := &Sampler{cfg: cfg, n: datasetSize, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Config returns the sampler configuration.
func (s *Sampler) Config() Config {
	return s.cfg
}

// DatasetSize returns the number of samples planned over.
func (s *Sampler) DatasetSize() int {
	return s.n
}

// Scales returns the scale set in effect at the given epoch.
func (s *Sampler) Scales(epoch int) []Scale {
	return Scales(s.cfg.BaseResolution, s.cfg.BaseBatchSize, s.cfg.Schedule.Apply(s.cfg.MultiScale, epoch))
}

// Plan builds the plan of the given epoch, seeded with EpochSeed(cfg.Seed, epoch).
func (s *Sampler) Plan(epoch int) (*Plan, error) {
	p, err := build(s.cfg, s.n, epoch, EpochSeed(s.cfg.Seed, epoch))
	if err != nil {
		return nil, err
	}
	if ce := s.log.Check(zap.DebugLevel, "epoch plan built"); ce != nil {
		fp := p.Fingerprint()
		ce.Write(
			zap.Int("epoch", epoch),
			zap.Int("rank", p.Rank),
			zap.Int("world", p.World),
			zap.Int("batches", p.Len()),
			zap.Int("samples", p.NumSamples()),
			zap.Int("padded", p.NumPadded()),
			zap.Int("scales", len(p.Resolutions())),
			zap.String("fingerprint", hex.EncodeToString(fp[:8])),
		)
	}
	return p, nil
}

// EpochSeed derives the seed of an epoch from a base seed.
func EpochSeed(base uint64, epoch int) uint64 {
	return base ^ uint64(epoch)*0x9e3779b97f4a7c15
}
