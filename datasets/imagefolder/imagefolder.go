// Package imagefolder serves a directory laid out as root/<class>/<image>.
// Classes are the sorted subdirectory names and targets are their indices.
package imagefolder

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"

	"github.com/neurlang/varbatch/datasets"
	"github.com/neurlang/varbatch/sampler"
)

// Extensions lists the file suffixes Open picks up.
var Extensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// Folder is a datasets.Dataset decoding images from disk on every Fetch.
type Folder struct {
	root      string
	split     datasets.Split
	classes   []string
	files     []string
	targets   []int
	transform datasets.Transform
	seed      uint64
	epoch     int64
}

// Option configures Open.
type Option func(*Folder)

// WithTransform overrides the per-split default transform.
func WithTransform(t datasets.Transform) Option {
	return func(f *Folder) {
		f.transform = t
	}
}

// WithSeed keys the training augmentation.
func WithSeed(seed uint64) Option {
	return func(f *Folder) {
		f.seed = seed
	}
}

// Open scans root. Training splits default to a flipped RandomResizedCrop,
// the others to CenterCrop.
func Open(root string, split datasets.Split, opts ...Option) (*Folder, error) {
	f := &Folder{root: root, split: split}
	for _, o := range opts {
		o(f)
	}
	if f.transform == nil {
		if split.Training() {
			f.transform = datasets.RandomResizedCrop{Seed: f.seed, Flip: true}
		} else {
			f.transform = datasets.CenterCrop{}
		}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrapf(err, "imagefolder: reading %s", root)
	}
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			f.classes = append(f.classes, e.Name())
		}
	}
	sort.Strings(f.classes)

	for target, class := range f.classes {
		var files []string
		err := filepath.WalkDir(filepath.Join(root, class), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && Extensions[strings.ToLower(filepath.Ext(path))] {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrapf(err, "imagefolder: scanning class %s", class)
		}
		sort.Strings(files)
		for _, path := range files {
			f.files = append(f.files, path)
			f.targets = append(f.targets, target)
		}
	}
	if len(f.files) == 0 {
		return nil, errors.Errorf("imagefolder: no images under %s", root)
	}
	return f, nil
}

// Len implements datasets.Dataset.
func (f *Folder) Len() int {
	return len(f.files)
}

func (f *Folder) Classes() []string {
	return f.classes
}

func (f *Folder) Split() datasets.Split {
	return f.split
}

// Path returns the file behind index i.
func (f *Folder) Path(i int) string {
	return f.files[i]
}

// SetEpoch implements datasets.EpochSetter.
func (f *Folder) SetEpoch(epoch int) {
	atomic.StoreInt64(&f.epoch, int64(epoch))
}

// Fetch implements datasets.Dataset.
func (f *Folder) Fetch(ctx context.Context, req sampler.SampleRequest) (datasets.Sample, error) {
	if err := ctx.Err(); err != nil {
		return datasets.Sample{}, err
	}
	if req.Index < 0 || req.Index >= len(f.files) {
		return datasets.Sample{}, errors.Wrapf(datasets.ErrIndexOutOfRange, "index %d, dataset size %d", req.Index, len(f.files))
	}
	img, err := imaging.Open(f.files[req.Index], imaging.AutoOrientation(true))
	if err != nil {
		return datasets.Sample{}, errors.Wrapf(err, "imagefolder: decoding %s", f.files[req.Index])
	}
	img = f.transform.Apply(img, req, int(atomic.LoadInt64(&f.epoch)))
	return datasets.Sample{Samples: datasets.ToTensor(img), Target: f.targets[req.Index]}, nil
}
