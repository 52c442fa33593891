package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"sort"

	arg "github.com/alexflint/go-arg"
	humanize "github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"github.com/neurlang/varbatch/config"
	"github.com/neurlang/varbatch/datasets"
	"github.com/neurlang/varbatch/logging"
	"github.com/neurlang/varbatch/sampler"
)

type args struct {
	Config      string `arg:"--config" help:"YAML options file; built-in defaults when empty"`
	DatasetSize int    `arg:"--dataset-size,required" help:"number of samples in the split"`
	Split       string `arg:"--split" help:"train, val or test"`
	Epoch       int    `arg:"--epoch"`
	Rank        int    `arg:"--rank"`
	World       int    `arg:"--world" help:"number of distributed ranks"`
	Dump        string `arg:"--dump" help:"write the plan as YAML to this file"`
	Verbose     bool   `arg:"-v,--verbose"`
}

func main() {
	a := args{Split: "train", World: 1}
	arg.MustParse(&a)

	log := logging.New(a.Verbose)
	defer log.Sync()

	plan, err := build(a, log)
	if err != nil {
		log.Fatal("planning failed", zap.Error(err))
	}
	summarize(os.Stdout, plan)

	if a.Dump != "" {
		buf, err := yaml.Marshal(plan)
		if err != nil {
			log.Fatal("encoding plan", zap.Error(err))
		}
		if err := ioutil.WriteFile(a.Dump, buf, 0o644); err != nil {
			log.Fatal("writing plan", zap.Error(err))
		}
		log.Info("plan written", zap.String("path", a.Dump), zap.String("size", humanize.Bytes(uint64(len(buf)))))
	}
}

func build(a args, log *zap.Logger) (*sampler.Plan, error) {
	opts := config.Default()
	if a.Config != "" {
		var err error
		if opts, err = config.Load(a.Config); err != nil {
			return nil, err
		}
	}
	split, err := datasets.ParseSplit(a.Split)
	if err != nil {
		return nil, err
	}
	cfg, err := opts.SamplerConfig(split, a.Rank, a.World)
	if err != nil {
		return nil, err
	}
	s, err := sampler.New(cfg, a.DatasetSize, sampler.WithLogger(log))
	if err != nil {
		return nil, err
	}
	plan, err := s.Plan(a.Epoch)
	return plan, errors.WithMessagef(err, "epoch %d", a.Epoch)
}

type row struct {
	res              sampler.Resolution
	batches, samples int
}

func summarize(w io.Writer, p *sampler.Plan) {
	var (
		rows  = make(map[sampler.Resolution]*row)
		order []sampler.Resolution
	)
	for _, b := range p.Batches {
		r, ok := rows[b.Resolution]
		if !ok {
			r = &row{res: b.Resolution}
			rows[b.Resolution] = r
			order = append(order, b.Resolution)
		}
		r.batches++
		r.samples += b.Len()
	}
	sort.Slice(order, func(i, j int) bool { return order[i].Area() < order[j].Area() })

	fmt.Fprintf(w, "epoch %d rank %d/%d: %s batches, %s samples (%s padded) of %s\n",
		p.Epoch, p.Rank, p.World,
		humanize.Comma(int64(p.Len())), humanize.Comma(int64(p.NumSamples())),
		humanize.Comma(int64(p.NumPadded())), humanize.Comma(int64(p.DatasetSize)))
	for _, res := range order {
		r := rows[res]
		bytes := uint64(r.samples) * datasets.Channels * uint64(res.Area()) * 4
		fmt.Fprintf(w, "  %-9s %8s batches %10s samples %10s\n",
			res, humanize.Comma(int64(r.batches)), humanize.Comma(int64(r.samples)), humanize.Bytes(bytes))
	}
	fp := p.Fingerprint()
	fmt.Fprintf(w, "fingerprint %x\n", fp[:8])
}
