package sampler

import (
	"github.com/neurlang/varbatch/hash"
	"github.com/neurlang/varbatch/permute"
)

// scaleLane keeps the salt of the per-step scale choice apart from the
// permutation salts of the same seed. It does not depend on the rank, so all
// ranks draw the same scale sequence and, with equal shares, the same number
// of steps.
const scaleLane = 1 << 16

// slot is one occurrence of a dataset index in the epoch order.
type slot struct {
	index  int
	repeat int
}

// BuildEpochPlan builds the ordered batches of one epoch over the indices
// [0, datasetSize). Without options the plan is single-scale, shuffled with a
// Feistel permutation keyed by epochSeed, unsharded, and keeps a short final
// batch.
func BuildEpochPlan(datasetSize, baseBatchSize int, base Resolution, epochSeed uint64, opts ...Option) (*Plan, error) {
	var s = settings{cfg: Config{BaseBatchSize: baseBatchSize, BaseResolution: base}}
	for _, o := range opts {
		o(&s)
	}
	return build(s.cfg, datasetSize, s.epoch, epochSeed)
}

func build(cfg Config, n, epoch int, seed uint64) (*Plan, error) {
	if err := cfg.Validate(n); err != nil {
		return nil, err
	}
	var (
		world  = cfg.Shard.world()
		scales = Scales(cfg.BaseResolution, cfg.BaseBatchSize, cfg.Schedule.Apply(cfg.MultiScale, epoch))
		kind   = cfg.Permutation
	)
	if cfg.NoShuffle {
		kind = permute.Identity
	}
	perm, err := permute.New(kind, n, seed)
	if err != nil {
		return nil, configError("permutation", kind.String(), "%v", err)
	}

	order := repeat(permute.Slice(perm), cfg.repeats())
	if cfg.TruncateRepeats && cfg.repeats() > 1 {
		if keep := ceilDiv(n, world) * world; keep < len(order) {
			order = order[:keep]
		}
	}
	if cfg.Shard.Pad {
		order = padToMultiple(order, world)
	}
	local := shard(order, cfg.Shard.Rank, world, cfg.Shard.Mode)

	return &Plan{
		Epoch:       epoch,
		Seed:        seed,
		Rank:        cfg.Shard.Rank,
		World:       world,
		DatasetSize: n,
		Batches:     batchify(local, scales, hash.Key(seed, scaleLane), cfg.LastBatch),
	}, nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// repeat lists every index times in a row, numbering the copies.
func repeat(order []int, times int) []slot {
	if times < 1 {
		times = 1
	}
	var out = make([]slot, 0, len(order)*times)
	for _, v := range order {
		for r := 0; r < times; r++ {
			out = append(out, slot{index: v, repeat: r})
		}
	}
	return out
}

// padToMultiple extends order by wrapping around to its start.
func padToMultiple(order []slot, k int) []slot {
	var want = ceilDiv(len(order), k) * k
	for i := 0; len(order) < want; i++ {
		order = append(order, order[i])
	}
	return order
}

func shard(order []slot, rank, world int, mode ShardMode) []slot {
	if world == 1 {
		return order
	}
	if mode == ShardContiguous {
		lo, hi := balanced(len(order), rank, world)
		return order[lo:hi]
	}
	var out = make([]slot, 0, ceilDiv(len(order), world))
	for i := rank; i < len(order); i += world {
		out = append(out, order[i])
	}
	return out
}

func batchify(local []slot, scales []Scale, key uint32, policy LastBatch) []Batch {
	var batches []Batch
	for start, step := 0, 0; start < len(local); step++ {
		var sc = scales[0]
		if len(scales) > 1 {
			sc = scales[hash.Hash(uint32(step), key, uint32(len(scales)))]
		}
		end := start + sc.BatchSize
		if end > len(local) {
			end = len(local)
		}

		b := Batch{
			Step:       step,
			Resolution: sc.Resolution,
			Requests:   make([]SampleRequest, 0, sc.BatchSize),
		}
		for _, o := range local[start:end] {
			b.Requests = append(b.Requests, SampleRequest{Height: sc.Height, Width: sc.Width, Index: o.index, Repeat: o.repeat})
		}
		if policy == LastBatchPad {
			for j := 0; len(b.Requests) < sc.BatchSize; j++ {
				o := local[j%len(local)]
				b.Requests = append(b.Requests, SampleRequest{Height: sc.Height, Width: sc.Width, Index: o.index, Repeat: o.repeat})
				b.Padded++
			}
		}
		batches = append(batches, b)
		start = end
	}
	return batches
}
