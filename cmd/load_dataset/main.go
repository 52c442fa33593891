package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	arg "github.com/alexflint/go-arg"
	humanize "github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/neurlang/varbatch/config"
	"github.com/neurlang/varbatch/datasets"
	"github.com/neurlang/varbatch/datasets/imagefolder"
	"github.com/neurlang/varbatch/datasets/mnist"
	"github.com/neurlang/varbatch/loader"
	"github.com/neurlang/varbatch/logging"
	"github.com/neurlang/varbatch/sampler"
	"github.com/neurlang/varbatch/trainer"
)

type args struct {
	Config  string `arg:"--config,required" help:"YAML options file"`
	Format  string `arg:"--format" help:"imagefolder or mnist"`
	Split   string `arg:"--split" help:"train, val or test"`
	Epochs  int    `arg:"--epochs"`
	Rank    int    `arg:"--rank"`
	World   int    `arg:"--world" help:"number of distributed ranks"`
	State   string `arg:"--state" help:"resume file, rewritten after every step"`
	Pgo     string `arg:"--pgo" help:"write a CPU profile to this file"`
	Quiet   bool   `arg:"-q,--quiet" help:"no progress bar"`
	Verbose bool   `arg:"-v,--verbose"`
}

func main() {
	a := args{Format: "imagefolder", Split: "train", Epochs: 1, World: 1}
	arg.MustParse(&a)
	os.Exit(start(a))
}

func start(a args) int {
	log := logging.New(a.Verbose)
	defer log.Sync()

	if a.Pgo != "" {
		stop, err := startProfile(a.Pgo)
		if err != nil {
			log.Error("profiling", zap.Error(err))
			return 1
		}
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, a, log); err != nil {
		log.Error("run failed", zap.Error(err))
		if errors.Is(err, context.Canceled) {
			return 130
		}
		return 1
	}
	return 0
}

func open(opts *config.Options, format string, split datasets.Split) (datasets.Dataset, error) {
	root, err := opts.Root(split)
	if err != nil {
		return nil, err
	}
	switch format {
	case "imagefolder":
		return imagefolder.Open(root, split, imagefolder.WithSeed(opts.Sampler.Seed))
	case "mnist":
		return mnist.Open(root, split, mnist.WithSeed(opts.Sampler.Seed))
	}
	return nil, errors.Errorf("unknown format %q", format)
}

func run(ctx context.Context, a args, log *zap.Logger) error {
	opts, err := config.Load(a.Config)
	if err != nil {
		return err
	}
	split, err := datasets.ParseSplit(a.Split)
	if err != nil {
		return err
	}
	ds, err := open(opts, a.Format, split)
	if err != nil {
		return err
	}
	cfg, err := opts.SamplerConfig(split, a.Rank, a.World)
	if err != nil {
		return err
	}
	s, err := sampler.New(cfg, ds.Len(), sampler.WithLogger(log))
	if err != nil {
		return err
	}
	ld := loader.New(ds,
		loader.WithWorkers(opts.Dataset.Workers),
		loader.WithPrefetch(opts.Dataset.PrefetchFactor),
		loader.WithLogger(log),
	)
	log.Info("dataset opened",
		zap.String("split", string(split)),
		zap.Int("samples", ds.Len()),
		zap.Int("scales", len(s.Scales(0))),
		zap.String("run_id", ld.RunID()),
	)

	st, err := trainer.Resume(a.State)
	if err != nil {
		return err
	}
	total, err := remaining(s, st, a.Epochs)
	if err != nil {
		return err
	}
	var bar *progressbar.ProgressBar
	if !a.Quiet {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription(fmt.Sprintf("loading %s", split)),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("batches"),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}

	tr := &trainer.Trainer{Sampler: s, Loader: ld, Epochs: a.Epochs, StatePath: a.State, Log: log}
	began := time.Now()
	var pixels uint64
	sum, err := tr.Run(ctx, func(_ context.Context, b *datasets.Batch) error {
		pixels += uint64(b.Len()) * uint64(b.Resolution.Area())
		if bar != nil {
			return bar.Add(1)
		}
		return nil
	})
	if bar != nil {
		_ = bar.Finish()
	}
	elapsed := time.Since(began)
	rate := float64(sum.Samples) / elapsed.Seconds()
	fmt.Printf("%s batches, %s samples, %s pixels in %s (%s samples/s)\n",
		humanize.Comma(int64(sum.Batches)), humanize.Comma(int64(sum.Samples)),
		humanize.SI(float64(pixels), ""), elapsed.Round(time.Millisecond), humanize.Commaf(float64(int64(rate))))
	return err
}

// remaining counts the steps a run resumed at st still has to take.
func remaining(s *sampler.Sampler, st trainer.State, epochs int) (int, error) {
	var total int
	for epoch := st.Epoch; epoch < epochs; epoch++ {
		p, err := s.Plan(epoch)
		if err != nil {
			return 0, err
		}
		n := p.Len()
		if epoch == st.Epoch {
			n -= st.Step
		}
		if n > 0 {
			total += n
		}
	}
	return total, nil
}
