// Command gameserver runs a game-tier (tictactoe-service) instance.
//
// Usage:
//
//	gameserver -config gameserver.yaml [-listen :5001] [-advertise http://host:5001]
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/wwsupercheese/tictactoe"
	"github.com/wwsupercheese/tictactoe/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.Serve(ctx, tictactoe.TierGame, os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "gameserver:", err)
		os.Exit(1)
	}
}
