package game

import "strings"

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// ValidateMove reports whether player may play move in s.
func ValidateMove(s Session, move Move, player string) bool {
	if s.Status != StatusPlaying || !move.InRange() {
		return false
	}
	if player == "" || player != s.CurrentPlayer() {
		return false
	}
	if s.Constrained() && (move.BoardX != s.ActiveBoardX || move.BoardY != s.ActiveBoardY) {
		return false
	}
	if s.SmallWinners[move.BoardIndex()] != Empty {
		return false
	}

	return s.Cells[move.CellIndex()] == Empty
}

// ApplyMove plays move for the player whose turn it is and returns the
// resulting session. The move must have passed ValidateMove.
func ApplyMove(s Session, move Move) Session {
	symbol := O
	if s.XTurn {
		symbol = X
	}

	cells := []byte(s.Cells)
	cells[move.CellIndex()] = symbol

	winners := []byte(s.SmallWinners)
	if hasLine(smallBoard(cells, move.BoardX, move.BoardY)) {
		winners[move.BoardIndex()] = symbol
	}

	next := s
	next.Cells = string(cells)
	next.SmallWinners = string(winners)

	target := smallBoard(cells, move.CellX, move.CellY)
	if winners[move.CellY*3+move.CellX] == Empty && contains(target, Empty) {
		next.ActiveBoardX, next.ActiveBoardY = move.CellX, move.CellY
	} else {
		next.ActiveBoardX, next.ActiveBoardY = AnyBoard, AnyBoard
	}

	switch {
	case hasLine([9]byte(winners)):
		if symbol == X {
			next.Status = StatusXWon
		} else {
			next.Status = StatusOWon
		}
	case !strings.ContainsRune(next.Cells, rune(Empty)):
		next.Status = StatusDraw
	}

	next.XTurn = !s.XTurn

	return next
}

// TryMove validates and applies move in one step. It returns s unchanged
// and false when the move is rejected.
func TryMove(s Session, move Move, player string) (Session, bool) {
	if !ValidateMove(s, move, player) {
		return s, false
	}

	return ApplyMove(s, move), true
}

func smallBoard(cells []byte, bx, by int) [9]byte {
	var b [9]byte
	for y := range 3 {
		for x := range 3 {
			b[y*3+x] = cells[(by*3+y)*9+bx*3+x]
		}
	}

	return b
}

func hasLine(b [9]byte) bool {
	for _, l := range lines {
		if b[l[0]] != Empty && b[l[0]] == b[l[1]] && b[l[0]] == b[l[2]] {
			return true
		}
	}

	return false
}

func contains(b [9]byte, c byte) bool {
	for _, v := range b {
		if v == c {
			return true
		}
	}

	return false
}
