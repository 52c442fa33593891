package datasets

import (
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/neurlang/varbatch/hash"
	"github.com/neurlang/varbatch/sampler"
)

// Channels is the number of colour channels ToTensor produces.
const Channels = 3

// Transform brings a decoded image to the size a request asks for.
type Transform interface {
	Apply(img image.Image, req sampler.SampleRequest, epoch int) image.Image
}

// CenterCrop scales the shorter side to fit and cuts the centre out.
type CenterCrop struct{}

// Apply implements Transform.
func (CenterCrop) Apply(img image.Image, req sampler.SampleRequest, _ int) image.Image {
	return imaging.Fill(img, req.Width, req.Height, imaging.Center, imaging.Lanczos)
}

// RandomResizedCrop cuts a random region covering MinArea to 100% of the image
// with an aspect ratio between 3/4 and 4/3, then resizes it to the request.
// The region depends only on (Seed, epoch, index, repeat), so a replayed
// epoch sees the same crops while repeated copies of one sample differ.
type RandomResizedCrop struct {
	Seed    uint64
	MinArea float64 // 0 means 0.08
	Flip    bool
}

const cropAttempts = 10

// Apply implements Transform.
func (t RandomResizedCrop) Apply(img image.Image, req sampler.SampleRequest, epoch int) image.Image {
	var key = hash.Key(sampler.EpochSeed(t.Seed, epoch), uint32(req.Index))
	if req.Repeat > 0 {
		key = hash.Mix(key, uint32(req.Repeat))
	}
	var (
		rnd     = func(k uint32) float64 { return hash.Float(k, key) }
		minArea = t.MinArea
		bounds  = img.Bounds()
		w, h    = bounds.Dx(), bounds.Dy()
		lo, hi  = math.Log(3.0 / 4.0), math.Log(4.0 / 3.0)
	)
	if minArea <= 0 || minArea > 1 {
		minArea = 0.08
	}

	var out image.Image
	for attempt := uint32(0); attempt < cropAttempts; attempt++ {
		area := float64(w*h) * (minArea + (1-minArea)*rnd(4*attempt))
		ratio := math.Exp(lo + (hi-lo)*rnd(4*attempt+1))
		cw := int(math.Round(math.Sqrt(area * ratio)))
		ch := int(math.Round(math.Sqrt(area / ratio)))
		if cw <= 0 || ch <= 0 || cw > w || ch > h {
			continue
		}
		x := bounds.Min.X + int(rnd(4*attempt+2)*float64(w-cw+1))
		y := bounds.Min.Y + int(rnd(4*attempt+3)*float64(h-ch+1))
		out = imaging.Resize(imaging.Crop(img, image.Rect(x, y, x+cw, y+ch)), req.Width, req.Height, imaging.Linear)
		break
	}
	if out == nil {
		out = CenterCrop{}.Apply(img, req, epoch)
	}
	if t.Flip && rnd(4*cropAttempts) < 0.5 {
		out = imaging.FlipH(out)
	}
	return out
}

// ToTensor converts img to a [3, H, W] RGB tensor with values in [0, 1].
func ToTensor(img image.Image) Tensor {
	var (
		src  = imaging.Clone(img)
		w, h = src.Rect.Dx(), src.Rect.Dy()
		data = make([]float32, Channels*h*w)
		c    = h * w
	)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+4*w]
		for x := 0; x < w; x++ {
			for ch := 0; ch < Channels; ch++ {
				data[ch*c+y*w+x] = float32(row[4*x+ch]) / 255
			}
		}
	}
	return Tensor{Shape: []int{Channels, h, w}, Data: data}
}
