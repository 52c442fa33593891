package sampler

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// Resolution is a crop size in pixels.
type Resolution struct {
	Height int `yaml:"height"`
	Width  int `yaml:"width"`
}

// Area is Height*Width.
func (r Resolution) Area() int {
	return r.Height * r.Width
}

// Valid reports whether both dimensions are positive.
func (r Resolution) Valid() bool {
	return r.Height > 0 && r.Width > 0
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Height, r.Width)
}

// SampleRequest asks the dataset for sample Index cropped to Height x Width.
// Repeat numbers the copies of Index within an epoch under repeated
// augmentation, so each copy can be augmented differently.
type SampleRequest struct {
	Height int `yaml:"h"`
	Width  int `yaml:"w"`
	Index  int `yaml:"i"`
	Repeat int `yaml:"r,omitempty"`
}

// Resolution returns the requested crop size.
func (r SampleRequest) Resolution() Resolution {
	return Resolution{Height: r.Height, Width: r.Width}
}

// Batch is the work of one step. All requests share Resolution.
type Batch struct {
	Step       int             `yaml:"step"`
	Resolution Resolution      `yaml:"resolution"`
	Requests   []SampleRequest `yaml:"requests"`

	// Padded counts the trailing requests that wrap around to the start of
	// the order to fill the last batch.
	Padded int `yaml:"padded,omitempty"`
}

// Len is the number of requests.
func (b Batch) Len() int {
	return len(b.Requests)
}

// Indices returns the dataset indices of the batch in order.
func (b Batch) Indices() []int {
	var out = make([]int, len(b.Requests))
	for i, r := range b.Requests {
		out[i] = r.Index
	}
	return out
}

// Plan is the ordered list of batches of one epoch on one rank.
type Plan struct {
	Epoch       int     `yaml:"epoch"`
	Seed        uint64  `yaml:"seed"`
	Rank        int     `yaml:"rank"`
	World       int     `yaml:"world"`
	DatasetSize int     `yaml:"dataset_size"`
	Batches     []Batch `yaml:"batches"`
}

// Len is the number of batches.
func (p *Plan) Len() int {
	return len(p.Batches)
}

// NumSamples is the number of requests over all batches, padding included.
func (p *Plan) NumSamples() (n int) {
	for _, b := range p.Batches {
		n += len(b.Requests)
	}
	return
}

// NumPadded is the number of padding requests over all batches.
func (p *Plan) NumPadded() (n int) {
	for _, b := range p.Batches {
		n += b.Padded
	}
	return
}

// Indices returns every requested index in plan order.
func (p *Plan) Indices() []int {
	var out = make([]int, 0, p.NumSamples())
	for _, b := range p.Batches {
		for _, r := range b.Requests {
			out = append(out, r.Index)
		}
	}
	return out
}

// Resolutions counts batches per resolution.
func (p *Plan) Resolutions() map[Resolution]int {
	var out = make(map[Resolution]int)
	for _, b := range p.Batches {
		out[b.Resolution]++
	}
	return out
}

// Fingerprint digests the batch layout and every request in order. Two plans
// with equal fingerprints schedule the same work.
func (p *Plan) Fingerprint() (sum [32]byte) {
	var (
		h   = sha256.New()
		buf [8]byte
	)
	put := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		h.Write(buf[:])
	}
	for _, b := range p.Batches {
		put(b.Step)
		put(b.Resolution.Height)
		put(b.Resolution.Width)
		put(len(b.Requests))
		for _, r := range b.Requests {
			put(r.Index)
			put(r.Repeat)
		}
	}
	copy(sum[:], h.Sum(nil))
	return
}

// SplitMode selects how Split deals batches to data-loading workers.
type SplitMode int

const (
	// SplitStrided gives worker w the batches w, w+workers, ...
	SplitStrided SplitMode = iota
	// SplitContiguous gives each worker one balanced run of batches.
	SplitContiguous
)

// Split returns the disjoint share of batches for one of several workers.
// Batches keep their Step numbers.
func (p *Plan) Split(worker, workers int, mode SplitMode) (*Plan, error) {
	if workers <= 0 {
		return nil, configError("workers", workers, "must be positive")
	}
	if worker < 0 || worker >= workers {
		return nil, configError("worker", worker, "must be in [0, %d)", workers)
	}
	out := *p
	out.Batches = nil
	switch mode {
	case SplitStrided:
		for i := worker; i < len(p.Batches); i += workers {
			out.Batches = append(out.Batches, p.Batches[i])
		}
	case SplitContiguous:
		lo, hi := balanced(len(p.Batches), worker, workers)
		out.Batches = append(out.Batches, p.Batches[lo:hi]...)
	default:
		return nil, configError("split_mode", int(mode), "unknown mode")
	}
	return &out, nil
}

// balanced returns the bounds of part i of n items cut into k nearly equal runs.
func balanced(n, i, k int) (lo, hi int) {
	return i * n / k, (i + 1) * n / k
}
