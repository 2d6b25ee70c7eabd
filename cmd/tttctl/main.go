// Command tttctl plays Ultimate Tic-Tac-Toe against the game tier.
//
// It locates the game-tier leader through the coordination service and
// follows it across failovers.
//
// Usage:
//
//	tttctl [flags] <command> [args]
//
// Commands:
//
//	login  <player>                                       show the player's active room
//	create <player> [room]                                create a room (random 4-digit id by default)
//	join   <player> <room>                                take the open seat of a room
//	move   <player> <room> <boardX> <boardY> <cellX> <cellY>
//	state  <player> <room>                                print the board
//	reset  <player> <room>                                clear the board, keep the players
//	exit   <player> <room>                                leave the room
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wwsupercheese/tictactoe"
	"github.com/wwsupercheese/tictactoe/discovery"
	"github.com/wwsupercheese/tictactoe/internal/logging"
	"github.com/wwsupercheese/tictactoe/transport"
	"github.com/wwsupercheese/tictactoe/types"
)

type options struct {
	configPath string
	backend    string
	natsURL    string
	consul     string
	etcd       string
	wait       time.Duration
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "tttctl:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var opts options

	fs := flag.NewFlagSet("tttctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "game-tier YAML configuration; only the coordination section is used")
	fs.StringVar(&opts.backend, "coordination", "", "coordination backend: nats, consul or etcd")
	fs.StringVar(&opts.natsURL, "nats", "", "NATS server URL")
	fs.StringVar(&opts.consul, "consul", "", "Consul agent address")
	fs.StringVar(&opts.etcd, "etcd", "", "comma-separated etcd endpoints")
	fs.DurationVar(&opts.wait, "wait", 30*time.Second, "how long to wait for a game-tier leader")
	fs.StringVar(&opts.logLevel, "log-level", "error", "log level")
	fs.Usage = func() { usage(fs) }

	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	cmd, cmdArgs, err := parseCommand(fs.Args())
	if err != nil {
		fmt.Fprintln(stderr, err)
		usage(fs)
		return errUsage
	}

	cfg, err := clientConfig(opts)
	if err != nil {
		return err
	}

	logger, err := logging.NewSlogText(stderr, opts.logLevel)
	if err != nil {
		return err
	}

	coord, closeCoord, err := tictactoe.Connect(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = closeCoord() }()

	leader := discovery.New(coord, types.TierGame, transport.DialGame,
		discovery.WithLogger(logger),
		discovery.WithConfig(cfg.Discovery),
	)

	return execute(ctx, leader, cmd, cmdArgs, opts.wait, stdout, stderr)
}

// execute follows the game-tier leader while cmd runs against it.
func execute(ctx context.Context, leader *discovery.Follower[*transport.GameClient], cmd command, args []string, wait time.Duration, stdout, stderr io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return leader.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()

		if err := waitForLeader(gctx, leader, wait, stderr); err != nil {
			return err
		}

		return leader.Do(gctx, func(ctx context.Context, c *transport.GameClient) error {
			return cmd.run(ctx, c, args, stdout)
		})
	})

	return g.Wait()
}

// waitForLeader blocks until a game-tier leader is connected, reporting
// every status change on out.
func waitForLeader(ctx context.Context, leader *discovery.Follower[*transport.GameClient], wait time.Duration, out io.Writer) error {
	updates, unsubscribe := leader.Subscribe()
	defer unsubscribe()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	last := ""
	for {
		status := leader.Status()
		if status.State == types.Connected {
			return nil
		}
		if status.Message != last {
			fmt.Fprintln(out, status.Message)
			last = status.Message
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return fmt.Errorf("%w: no game-tier leader after %v", types.ErrNotConnected, wait)
		case <-updates:
		}
	}
}

func parseCommand(args []string) (command, []string, error) {
	if len(args) == 0 {
		return command{}, nil, errors.New("missing command")
	}

	cmd, ok := findCommand(args[0])
	if !ok {
		return command{}, nil, fmt.Errorf("unknown command %q", args[0])
	}
	if len(args)-1 < cmd.args {
		return command{}, nil, fmt.Errorf("usage: tttctl %s", cmd.usage)
	}

	return cmd, args[1:], nil
}

func clientConfig(opts options) (tictactoe.Config, error) {
	cfg := tictactoe.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := tictactoe.LoadConfig(opts.configPath, tictactoe.TierGame)
		if err != nil {
			return tictactoe.Config{}, err
		}
		cfg = loaded
	}

	if opts.backend != "" {
		cfg.Coordination.Backend = opts.backend
	}
	if opts.natsURL != "" {
		cfg.Coordination.NATS.URL = opts.natsURL
	}
	if opts.consul != "" {
		cfg.Coordination.Consul.Address = opts.consul
	}
	if opts.etcd != "" {
		cfg.Coordination.Etcd.Endpoints = strings.Split(opts.etcd, ",")
	}

	if cfg.Coordination.Backend == tictactoe.BackendMemory {
		return tictactoe.Config{}, fmt.Errorf("%w: the memory backend cannot reach a remote game tier", tictactoe.ErrInvalidConfig)
	}

	return cfg, nil
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintln(out, "usage: tttctl [flags] <command> [args]")
	fmt.Fprintln(out, "\ncommands:")
	for _, c := range commands {
		fmt.Fprintln(out, "  "+c.usage)
	}
	fmt.Fprintln(out, "\nflags:")
	fs.PrintDefaults()
}
