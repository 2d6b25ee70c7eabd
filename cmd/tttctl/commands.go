package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"

	"github.com/wwsupercheese/tictactoe/game"
	"github.com/wwsupercheese/tictactoe/transport"
	"github.com/wwsupercheese/tictactoe/types"
)

var errUsage = errors.New("usage")

type command struct {
	name  string
	usage string
	args  int // required arguments; optional ones follow
	run   func(ctx context.Context, api transport.GameAPI, args []string, out io.Writer) error
}

var commands = []command{
	{"login", "login <player>", 1, runLogin},
	{"create", "create <player> [room]", 1, runCreate},
	{"join", "join <player> <room>", 2, runJoin},
	{"move", "move <player> <room> <boardX> <boardY> <cellX> <cellY>", 6, runMove},
	{"state", "state <player> <room>", 2, runState},
	{"reset", "reset <player> <room>", 2, runReset},
	{"exit", "exit <player> <room>", 2, runExit},
}

func findCommand(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}

	return command{}, false
}

func runLogin(ctx context.Context, api transport.GameAPI, args []string, out io.Writer) error {
	room, found, err := api.CheckSession(ctx, args[0])
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintf(out, "no active game for %s\n", args[0])
		return nil
	}
	fmt.Fprintf(out, "%s is playing in room %s\n", args[0], room)

	return nil
}

func runCreate(ctx context.Context, api transport.GameAPI, args []string, out io.Writer) error {
	room := randomRoom()
	if len(args) > 1 {
		room = args[1]
	}

	s, err := api.CreateOrJoin(ctx, args[0], room, false)
	if err != nil {
		return err
	}
	fmt.Fprint(out, renderBoard(s))

	return nil
}

func runJoin(ctx context.Context, api transport.GameAPI, args []string, out io.Writer) error {
	s, err := api.CreateOrJoin(ctx, args[0], args[1], true)
	if err != nil {
		return err
	}
	fmt.Fprint(out, renderBoard(s))

	return nil
}

func runMove(ctx context.Context, api transport.GameAPI, args []string, out io.Writer) error {
	var coords [4]int
	for i := range coords {
		v, err := strconv.Atoi(args[2+i])
		if err != nil {
			return fmt.Errorf("%w: coordinate %q is not a number", types.ErrInvalidRequest, args[2+i])
		}
		coords[i] = v
	}

	move := game.Move{BoardX: coords[0], BoardY: coords[1], CellX: coords[2], CellY: coords[3]}
	if !move.InRange() {
		return fmt.Errorf("%w: coordinates must be between 0 and 2", types.ErrInvalidRequest)
	}

	// A rejected move returns the room unchanged. A missing room is left
	// for MakeMove to report.
	before, err := api.GetState(ctx, args[1], args[0])
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return err
	}
	known := err == nil

	s, err := api.MakeMove(ctx, args[1], args[0], move)
	if err != nil {
		return err
	}

	if known && s.Fingerprint() == before.Fingerprint() {
		fmt.Fprintf(out, "move %s rejected\n", move)
	}
	fmt.Fprint(out, renderBoard(s))

	return nil
}

func runState(ctx context.Context, api transport.GameAPI, args []string, out io.Writer) error {
	s, err := api.GetState(ctx, args[1], args[0])
	if err != nil {
		return err
	}
	fmt.Fprint(out, renderBoard(s))

	return nil
}

func runReset(ctx context.Context, api transport.GameAPI, args []string, out io.Writer) error {
	s, err := api.Reset(ctx, args[1], args[0])
	if err != nil {
		return err
	}
	fmt.Fprint(out, renderBoard(s))

	return nil
}

func runExit(ctx context.Context, api transport.GameAPI, args []string, out io.Writer) error {
	ok, err := api.ExitSeat(ctx, args[1], args[0])
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(out, "%s has no seat in room %s\n", args[0], args[1])
		return nil
	}
	fmt.Fprintf(out, "%s left room %s\n", args[0], args[1])

	return nil
}

// randomRoom returns a 4-digit room id.
func randomRoom() string {
	return strconv.Itoa(1000 + rand.IntN(9000)) //nolint:gosec // room ids are not secrets
}
