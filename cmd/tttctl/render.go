package main

import (
	"fmt"
	"strings"

	"github.com/wwsupercheese/tictactoe/game"
)

// renderBoard draws the 9x9 board with sub-board separators, followed by
// the sub-board outcomes and a status line.
func renderBoard(s game.Session) string {
	var b strings.Builder

	for row := range 9 {
		if row > 0 && row%3 == 0 {
			b.WriteString("------+-------+------\n")
		}
		for col := range 9 {
			switch {
			case col == 0:
			case col%3 == 0:
				b.WriteString(" | ")
			default:
				b.WriteByte(' ')
			}
			b.WriteByte(cellAt(s, row*9+col))
		}
		b.WriteByte('\n')
	}

	b.WriteString("\nboards:\n")
	for by := range 3 {
		b.WriteString("  ")
		for bx := range 3 {
			if bx > 0 {
				b.WriteByte(' ')
			}
			b.WriteByte(cellAt(game.Session{Cells: s.SmallWinners}, by*3+bx))
		}
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "\nroom %s  X: %s  O: %s  status: %s\n", s.Room, seat(s.PlayerX), seat(s.PlayerO), s.Status)
	if s.Status == game.StatusPlaying {
		fmt.Fprintf(&b, "turn: %s  next board: %s\n", seat(s.CurrentPlayer()), activeBoard(s))
	}

	return b.String()
}

func cellAt(s game.Session, i int) byte {
	if i < len(s.Cells) {
		return s.Cells[i]
	}

	return game.Empty
}

func seat(player string) string {
	if player == "" {
		return "(open)"
	}

	return player
}

func activeBoard(s game.Session) string {
	if !s.Constrained() {
		return "any"
	}

	return fmt.Sprintf("(%d,%d)", s.ActiveBoardX, s.ActiveBoardY)
}
