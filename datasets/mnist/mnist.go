// Package mnist serves the MNIST digits from the gzipped IDX files as a
// datasets.Dataset. Digits are upscaled to whatever resolution a request asks for.
package mnist

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/neurlang/varbatch/datasets"
	"github.com/neurlang/varbatch/sampler"
)

const (
	inferSetImg = "t10k-images-idx3-ubyte.gz"
	inferSetVal = "t10k-labels-idx1-ubyte.gz"
	trainSetImg = "train-images-idx3-ubyte.gz"
	trainSetVal = "train-labels-idx1-ubyte.gz"
)

var digests = map[string]string{
	inferSetImg: "8d422c7b0a1c1c79245a5bcf07fe86e33eeafee792b84584aec276f5a2dbc4e6",
	inferSetVal: "f7ae60f92e00ec6debd23a6088c31dbd2371eca3ffa0defaefb259924204aec6",
	trainSetImg: "440fcabf73cc546fa21475e81ea370265605f56be210a4024d2ca8f203523609",
	trainSetVal: "3552534a0a558bbed6aed32b30c495cca23d567ec52cac8be1a0730e8010255c",
}

// ImgSize is the side of a stored digit.
const ImgSize = 28

const (
	imagesMagic = 0x00000803
	labelsMagic = 0x00000801
)

// ErrChecksum is returned when a file does not match the published digest.
var ErrChecksum = errors.New("mnist: checksum mismatch")

// Digits is the train (60000) or test (10000) half of MNIST.
type Digits struct {
	images    []*image.Gray
	labels    []byte
	transform datasets.Transform
	verify    bool
	seed      uint64
	epoch     int64
}

// Option configures Open.
type Option func(*Digits)

// WithTransform overrides the per-split default transform.
func WithTransform(t datasets.Transform) Option {
	return func(d *Digits) {
		d.transform = t
	}
}

// WithSeed keys the training augmentation.
func WithSeed(seed uint64) Option {
	return func(d *Digits) {
		d.seed = seed
	}
}

// SkipVerify disables the sha256 check, for re-packed copies of the files.
func SkipVerify() Option {
	return func(d *Digits) {
		d.verify = false
	}
}

// Open loads the split from dir. Train reads the train-* files, the other
// splits read t10k-*.
func Open(dir string, split datasets.Split, opts ...Option) (*Digits, error) {
	d := &Digits{verify: true}
	for _, o := range opts {
		o(d)
	}
	if d.transform == nil {
		if split.Training() {
			d.transform = datasets.RandomResizedCrop{Seed: d.seed, MinArea: 0.5}
		} else {
			d.transform = datasets.CenterCrop{}
		}
	}

	imgName, valName := inferSetImg, inferSetVal
	if split.Training() {
		imgName, valName = trainSetImg, trainSetVal
	}
	raw, err := d.read(filepath.Join(dir, imgName))
	if err != nil {
		return nil, err
	}
	if d.images, err = decodeImages(raw); err != nil {
		return nil, errors.Wrap(err, imgName)
	}
	if raw, err = d.read(filepath.Join(dir, valName)); err != nil {
		return nil, err
	}
	if d.labels, err = decodeLabels(raw); err != nil {
		return nil, errors.Wrap(err, valName)
	}
	if len(d.images) != len(d.labels) {
		return nil, errors.Errorf("mnist: %d images but %d labels", len(d.images), len(d.labels))
	}
	return d, nil
}

func (d *Digits) read(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "mnist")
	}
	defer f.Close()

	h := sha256.New()
	zr, err := gzip.NewReader(io.TeeReader(f, h))
	if err != nil {
		return nil, errors.Wrapf(err, "mnist: gzip %s", path)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(zr); err != nil {
		return nil, errors.Wrapf(err, "mnist: reading %s", path)
	}
	zr.Close()
	if d.verify {
		// drain any trailing bytes the gzip reader left so the digest covers the file
		if _, err := io.Copy(h, f); err != nil {
			return nil, errors.Wrapf(err, "mnist: hashing %s", path)
		}
		if fmt.Sprintf("%x", h.Sum(nil)) != digests[filepath.Base(path)] {
			return nil, errors.Wrap(ErrChecksum, path)
		}
	}
	return buf.Bytes(), nil
}

func decodeImages(raw []byte) ([]*image.Gray, error) {
	if len(raw) < 16 || binary.BigEndian.Uint32(raw) != imagesMagic {
		return nil, errors.New("mnist: not an IDX image file")
	}
	n := int(binary.BigEndian.Uint32(raw[4:]))
	rows, cols := int(binary.BigEndian.Uint32(raw[8:])), int(binary.BigEndian.Uint32(raw[12:]))
	raw = raw[16:]
	if len(raw) < n*rows*cols {
		return nil, errors.Errorf("mnist: %d images of %dx%d need %d bytes, have %d", n, rows, cols, n*rows*cols, len(raw))
	}
	var out = make([]*image.Gray, n)
	for i := range out {
		img := image.NewGray(image.Rect(0, 0, cols, rows))
		copy(img.Pix, raw[i*rows*cols:(i+1)*rows*cols])
		out[i] = img
	}
	return out, nil
}

func decodeLabels(raw []byte) ([]byte, error) {
	if len(raw) < 8 || binary.BigEndian.Uint32(raw) != labelsMagic {
		return nil, errors.New("mnist: not an IDX label file")
	}
	n := int(binary.BigEndian.Uint32(raw[4:]))
	raw = raw[8:]
	if len(raw) < n {
		return nil, errors.Errorf("mnist: %d labels, have %d bytes", n, len(raw))
	}
	return raw[:n], nil
}

// Len implements datasets.Dataset.
func (d *Digits) Len() int {
	return len(d.images)
}

// SetEpoch implements datasets.EpochSetter.
func (d *Digits) SetEpoch(epoch int) {
	atomic.StoreInt64(&d.epoch, int64(epoch))
}

// Fetch implements datasets.Dataset.
func (d *Digits) Fetch(ctx context.Context, req sampler.SampleRequest) (datasets.Sample, error) {
	if err := ctx.Err(); err != nil {
		return datasets.Sample{}, err
	}
	if req.Index < 0 || req.Index >= len(d.images) {
		return datasets.Sample{}, errors.Wrapf(datasets.ErrIndexOutOfRange, "index %d, dataset size %d", req.Index, len(d.images))
	}
	img := d.transform.Apply(d.images[req.Index], req, int(atomic.LoadInt64(&d.epoch)))
	return datasets.Sample{Samples: datasets.ToTensor(img), Target: int(d.labels[req.Index])}, nil
}
