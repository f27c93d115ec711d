package index

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/hermes-indexqueue/internal/cmd/base"
	"github.com/hashicorp-forge/hermes-indexqueue/internal/config"
	"github.com/hashicorp-forge/hermes-indexqueue/pkg/backend"
	"github.com/hashicorp-forge/hermes-indexqueue/pkg/backend/recorder"
	"github.com/hashicorp-forge/hermes-indexqueue/pkg/indexqueue"
	"github.com/hashicorp-forge/hermes-indexqueue/pkg/search"
	"github.com/hashicorp-forge/hermes-indexqueue/pkg/work"
)

type Command struct {
	*base.Command

	flagConfig string
	flagDryRun bool
}

func (c *Command) Synopsis() string {
	return "Queue, prepare and perform index work from a file"
}

func (c *Command) Help() string {
	return `Usage: indexqueue index [options] FILE

  This command reads work items from a YAML or JSON file and runs each batch
  through the queueing processor: items are queued, prepared into index
  operations and performed by the configured backend.

  Without entity blocks in the configuration, every entity type in the file
  is indexed into an index of the same name.` +
		c.Flags().Help()
}

func (c *Command) Flags() *base.FlagSet {
	f := base.NewFlagSet(flag.NewFlagSet("index", flag.ContinueOnError))

	f.StringVar(
		&c.flagConfig, "config", "",
		"Path to indexqueue config file. Defaults are used when empty.",
	)
	f.BoolVar(
		&c.flagDryRun, "dry-run", false,
		"Print the operations that would be performed instead of writing an index.",
	)

	return f
}

func (c *Command) Run(args []string) int {
	f := c.Flags()
	if err := f.Parse(args); err != nil {
		c.UI.Error(fmt.Sprintf("error parsing flags: %v", err))
		return 1
	}
	args = f.Args()
	if len(args) != 1 {
		c.UI.Error("a single work file is required")
		return 1
	}

	cfg, err := c.loadConfig()
	if err != nil {
		c.UI.Error(fmt.Sprintf("error loading configuration: %v", err))
		return 1
	}
	if lvl := hclog.LevelFromString(cfg.LogLevel); lvl != hclog.NoLevel {
		c.Log.SetLevel(lvl)
	}

	batches, err := loadWorkFile(c.Fs, args[0])
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	factory := cfg.SearchFactory()
	if len(cfg.Entities) == 0 {
		for _, t := range entityTypes(batches) {
			factory.Register(t, search.NewDocumentBuilder(t, t))
		}
	}

	props := cfg.Properties()
	if c.flagDryRun {
		props[backend.PropBackend] = recorder.Name
		props[backend.PropExecution] = "sync"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rec, err := c.run(ctx, factory, props, cfg.Options(), batches)
	if err != nil {
		c.UI.Error(err.Error())
		return 1
	}

	if rec != nil {
		for _, op := range rec.Operations() {
			c.UI.Output(op.String())
		}
	}
	return 0
}

func (c *Command) loadConfig() (*config.Config, error) {
	if c.flagConfig == "" {
		return config.Default(), nil
	}
	return config.LoadFile(c.flagConfig)
}

// run performs batches and returns the recorder backend when one is in use.
func (c *Command) run(
	ctx context.Context,
	factory *search.Factory,
	props backend.Properties,
	opts []indexqueue.Option,
	batches []batch,
) (rec *recorder.Factory, err error) {
	p, err := indexqueue.New(factory, props, append(opts, indexqueue.WithLogger(c.Log))...)
	if err != nil {
		return nil, fmt.Errorf("error creating queueing processor: %w", err)
	}
	defer func() {
		if cerr := p.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("error closing queueing processor: %w", cerr)
		}
	}()

	for i, b := range batches {
		q := work.NewQueue()
		for _, w := range b.works {
			if err := p.Add(ctx, w, q); err != nil {
				return nil, fmt.Errorf("batch %d: %w", i+1, err)
			}
		}

		if b.cancel {
			c.UI.Info(fmt.Sprintf("Batch %d: cancelled %d items", i+1, q.Len()))
			p.CancelWorks(q)
			continue
		}

		if err := p.PrepareWorks(q); err != nil {
			return nil, fmt.Errorf("batch %d: %w", i+1, err)
		}
		if err := p.PerformWorks(ctx, q); err != nil {
			return nil, fmt.Errorf("batch %d: %w", i+1, err)
		}

		ops, _ := q.Sealed()
		c.UI.Info(fmt.Sprintf("Batch %d: performed %d operations", i+1, len(ops)))
	}

	rec, _ = p.Backend().(*recorder.Factory)
	return rec, nil
}
