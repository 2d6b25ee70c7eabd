// Package cli holds the command-line plumbing shared by the tier binaries.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/wwsupercheese/tictactoe"
	"github.com/wwsupercheese/tictactoe/internal/logging"
	"github.com/wwsupercheese/tictactoe/internal/metrics"
)

// ServeOptions are the flags shared by the tier binaries.
type ServeOptions struct {
	ConfigPath string
	Listen     string
	Advertise  string
	LogLevel   string
	Dev        bool
}

// ParseServeFlags parses the tier binary flags from args.
func ParseServeFlags(name string, args []string, output io.Writer) (ServeOptions, error) {
	var opts ServeOptions

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.ConfigPath, "config", "", "path to the YAML configuration file")
	fs.StringVar(&opts.Listen, "listen", "", "listen address, overrides the configuration")
	fs.StringVar(&opts.Advertise, "advertise", "", "advertised URL, overrides the configuration")
	fs.StringVar(&opts.LogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.BoolVar(&opts.Dev, "dev", false, "human-readable development logging")

	if err := fs.Parse(args); err != nil {
		return ServeOptions{}, err
	}
	if fs.NArg() > 0 {
		return ServeOptions{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	return opts, nil
}

// LoadTierConfig builds the configuration of tier from opts.
func LoadTierConfig(opts ServeOptions, tier tictactoe.Tier) (tictactoe.Config, error) {
	cfg := tictactoe.DefaultConfig()
	cfg.Tier = tier

	if opts.ConfigPath != "" {
		loaded, err := tictactoe.LoadConfig(opts.ConfigPath, tier)
		if err != nil {
			return tictactoe.Config{}, err
		}
		if loaded.Tier != tier {
			return tictactoe.Config{}, fmt.Errorf("%w: config is for tier %s, not %s",
				tictactoe.ErrInvalidConfig, loaded.Tier, tier)
		}
		cfg = loaded
	}

	if opts.Listen != "" {
		cfg.Listen = opts.Listen
	}
	if opts.Advertise != "" {
		cfg.Advertise = opts.Advertise
	}

	return cfg, nil
}

// Serve runs one tier instance until ctx is cancelled, then shuts it down
// within the configured ShutdownTimeout.
func Serve(ctx context.Context, tier tictactoe.Tier, args []string, output io.Writer) error {
	opts, err := ParseServeFlags(string(tier), args, output)
	if err != nil {
		return err
	}

	cfg, err := LoadTierConfig(opts, tier)
	if err != nil {
		return err
	}

	logger, err := logging.NewZapProduction(opts.LogLevel, opts.Dev)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mgr, err := tictactoe.NewManager(&cfg,
		tictactoe.WithLogger(logger),
		tictactoe.WithMetrics(metrics.NewPrometheus(reg, "tictactoe")),
		tictactoe.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
	)
	if err != nil {
		return err
	}

	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("failed to start %s: %w", tier, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down", "tier", tier)

		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()

		return mgr.Stop(stopCtx)
	})

	return g.Wait()
}
