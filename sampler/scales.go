package sampler

import (
	"math"
	"sort"
)

// DefaultDivisor is the multiple every multi-scale crop dimension is rounded to.
const DefaultDivisor = 32

// MultiScale spreads NumScales crop sizes between Min and Max.
// With NumScales <= 1 only the base resolution is used.
type MultiScale struct {
	Min       Resolution
	Max       Resolution
	NumScales int
	// Divisor rounds every dimension to a multiple of itself. 0 means
	// DefaultDivisor, 1 disables rounding.
	Divisor int
}

// Enabled reports whether more than the base resolution is in play.
func (m MultiScale) Enabled() bool {
	return m.NumScales > 1
}

func (m MultiScale) validate() error {
	if !m.Enabled() {
		return nil
	}
	if !m.Min.Valid() || !m.Max.Valid() {
		return configError("multi_scale", m, "min and max crop sizes must be positive")
	}
	if m.Min.Height > m.Max.Height || m.Min.Width > m.Max.Width {
		return configError("multi_scale", m, "min crop size exceeds max crop size")
	}
	if m.Divisor < 0 {
		return configError("multi_scale", m, "divisor must not be negative")
	}
	return nil
}

// Scale is one crop resolution with the batch size used at it.
type Scale struct {
	Resolution
	BatchSize int
}

// Scales lists the (resolution, batch size) pairs a plan draws from, sorted
// by height then width. Smaller crops get proportionally larger batches so a
// step processes about the same number of pixels as a base batch; no scale
// gets fewer samples than baseBatch.
func Scales(base Resolution, baseBatch int, ms MultiScale) []Scale {
	if !ms.Enabled() {
		return []Scale{{Resolution: base, BatchSize: baseBatch}}
	}
	var div = ms.Divisor
	if div == 0 {
		div = DefaultDivisor
	}

	var heights = linspace(ms.Min.Height, ms.Max.Height, ms.NumScales)
	var widths = linspace(ms.Min.Width, ms.Max.Width, ms.NumScales)
	heights = append(heights, float64(base.Height))
	widths = append(widths, float64(base.Width))

	var (
		pixels = float64(base.Area()) * float64(baseBatch)
		seen   = make(map[Resolution]struct{})
		out    []Scale
	)
	for i := range heights {
		res := Resolution{Height: makeDivisible(heights[i], div), Width: makeDivisible(widths[i], div)}
		if _, ok := seen[res]; ok {
			continue
		}
		seen[res] = struct{}{}
		bs := int(math.Round(pixels / float64(res.Area())))
		if bs < baseBatch {
			bs = baseBatch
		}
		out = append(out, Scale{Resolution: res, BatchSize: bs})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Height != out[j].Height {
			return out[i].Height < out[j].Height
		}
		return out[i].Width < out[j].Width
	})
	return out
}

func linspace(lo, hi, n int) []float64 {
	var out = make([]float64, n)
	for i := range out {
		out[i] = float64(lo) + float64(hi-lo)*float64(i)/float64(n-1)
	}
	return out
}

// makeDivisible rounds v to the nearest multiple of div, never below div and
// never more than 10% below v.
func makeDivisible(v float64, div int) int {
	var d = float64(div)
	var out = int((v+d/2)/d) * div
	if out < div {
		out = div
	}
	if float64(out) < 0.9*v {
		out += div
	}
	return out
}

// ScaleSchedule grows the multi-scale crop range as training progresses.
// At every listed epoch each min and max dimension grows by int(dim*Factor).
type ScaleSchedule struct {
	Epochs []int
	Factor float64
}

func (s ScaleSchedule) validate() error {
	if s.Factor < 0 || math.IsNaN(s.Factor) || math.IsInf(s.Factor, 0) {
		return configError("scale_schedule", s.Factor, "factor must be a finite non-negative number")
	}
	return nil
}

// Apply returns ms as it stands at the given epoch: grown once for every
// scheduled epoch that is not after it.
func (s ScaleSchedule) Apply(ms MultiScale, epoch int) MultiScale {
	if s.Factor == 0 || len(s.Epochs) == 0 {
		return ms
	}
	grow := func(v int) int {
		return v + int(float64(v)*s.Factor)
	}
	for _, e := range s.Epochs {
		if e > epoch {
			continue
		}
		ms.Min.Height, ms.Min.Width = grow(ms.Min.Height), grow(ms.Min.Width)
		ms.Max.Height, ms.Max.Width = grow(ms.Max.Height), grow(ms.Max.Width)
	}
	return ms
}
