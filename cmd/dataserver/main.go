// Command dataserver runs a data-tier (tictactoe-orm) instance in front of
// the session store.
//
// Usage:
//
//	dataserver -config dataserver.yaml [-listen :6001] [-advertise http://host:6001]
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

	if err := cli.Serve(ctx, tictactoe.TierData, os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "dataserver:", err)
		os.Exit(1)
	}
}
