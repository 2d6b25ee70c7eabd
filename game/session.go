// Package game implements the Ultimate Tic-Tac-Toe rules.
//
// A Session is a plain value. ApplyMove and Reset return a new Session and
// never mutate their input, so sessions can be shared between goroutines
// without copying.
package game

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

// Board symbols.
const (
	Empty byte = '.'
	X     byte = 'X'
	O     byte = 'O'
)

const (
	// CellCount is the number of cells of the flattened 9x9 board.
	CellCount = 81

	// BoardCount is the number of small boards.
	BoardCount = 9

	// AnyBoard marks an unconstrained active sub-board.
	AnyBoard = -1
)

// Status is the overall outcome of a session.
type Status string

const (
	StatusPlaying Status = "Playing"
	StatusXWon    Status = "X_Won"
	StatusOWon    Status = "O_Won"
	StatusDraw    Status = "Draw"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPlaying, StatusXWon, StatusOWon, StatusDraw:
		return true
	default:
		return false
	}
}

// Session is the persisted state of one room.
type Session struct {
	Room string `json:"room"`

	// Cells is the flattened 9x9 board, row-major over the big grid.
	Cells string `json:"cells"`

	// SmallWinners holds the outcome of each small board, '.' while undecided.
	SmallWinners string `json:"smallWinners"`

	// ActiveBoardX and ActiveBoardY are AnyBoard when the next move is unconstrained.
	ActiveBoardX int `json:"activeBoardX"`
	ActiveBoardY int `json:"activeBoardY"`

	PlayerX string `json:"playerX"`
	PlayerO string `json:"playerO"`
	XTurn   bool   `json:"xTurn"`
	Status  Status `json:"status"`
}

// Move addresses one cell: the small board (BoardX, BoardY) and the cell
// (CellX, CellY) inside it. All coordinates are in 0..2.
type Move struct {
	BoardX int `json:"boardX"`
	BoardY int `json:"boardY"`
	CellX  int `json:"cellX"`
	CellY  int `json:"cellY"`
}

// CellIndex returns the index of the move's cell in Session.Cells.
func (m Move) CellIndex() int {
	return (m.BoardY*3+m.CellY)*9 + m.BoardX*3 + m.CellX
}

// BoardIndex returns the index of the move's small board in Session.SmallWinners.
func (m Move) BoardIndex() int {
	return m.BoardY*3 + m.BoardX
}

// InRange reports whether every coordinate is in 0..2.
func (m Move) InRange() bool {
	return inRange(m.BoardX) && inRange(m.BoardY) && inRange(m.CellX) && inRange(m.CellY)
}

func (m Move) String() string {
	return fmt.Sprintf("(%d,%d)/(%d,%d)", m.BoardX, m.BoardY, m.CellX, m.CellY)
}

func inRange(v int) bool {
	return v >= 0 && v <= 2
}

// NewSession creates a fresh session with playerX seated as X.
func NewSession(room, playerX string) Session {
	return Session{
		Room:         room,
		Cells:        strings.Repeat(string(Empty), CellCount),
		SmallWinners: strings.Repeat(string(Empty), BoardCount),
		ActiveBoardX: AnyBoard,
		ActiveBoardY: AnyBoard,
		PlayerX:      playerX,
		XTurn:        true,
		Status:       StatusPlaying,
	}
}

// Reset returns a fresh board for the same room and players.
func Reset(s Session) Session {
	fresh := NewSession(s.Room, s.PlayerX)
	fresh.PlayerO = s.PlayerO

	return fresh
}

// Validate checks the structural shape of a session read from storage.
func (s Session) Validate() error {
	switch {
	case s.Room == "":
		return fmt.Errorf("session has no room id")
	case len(s.Cells) != CellCount:
		return fmt.Errorf("room %s: board has %d cells, want %d", s.Room, len(s.Cells), CellCount)
	case len(s.SmallWinners) != BoardCount:
		return fmt.Errorf("room %s: %d small board outcomes, want %d", s.Room, len(s.SmallWinners), BoardCount)
	case !s.Status.Valid():
		return fmt.Errorf("room %s: unknown status %q", s.Room, s.Status)
	}

	return nil
}

// Constrained reports whether the next move must target the active sub-board.
func (s Session) Constrained() bool {
	return s.ActiveBoardX != AnyBoard
}

// CurrentPlayer returns the id of the player whose turn it is, empty if that
// seat is open.
func (s Session) CurrentPlayer() string {
	if s.XTurn {
		return s.PlayerX
	}

	return s.PlayerO
}

// Seat returns the symbol player is seated as, or 0 if not seated.
func (s Session) Seat(player string) byte {
	switch {
	case player == "":
		return 0
	case s.PlayerX == player:
		return X
	case s.PlayerO == player:
		return O
	default:
		return 0
	}
}

// HasPlayer reports whether player holds a seat.
func (s Session) HasPlayer(player string) bool {
	return s.Seat(player) != 0
}

// Full reports whether both seats are taken.
func (s Session) Full() bool {
	return s.PlayerX != "" && s.PlayerO != ""
}

// Empty reports whether both seats are open.
func (s Session) Empty() bool {
	return s.PlayerX == "" && s.PlayerO == ""
}

// Join seats player in the first open seat, X before O. It returns false
// when both seats are taken. A player already seated keeps the seat.
func (s Session) Join(player string) (Session, bool) {
	switch {
	case s.HasPlayer(player):
		return s, true
	case s.PlayerX == "":
		s.PlayerX = player
	case s.PlayerO == "":
		s.PlayerO = player
	default:
		return s, false
	}

	return s, true
}

// Vacate frees the seat held by player. It returns false if player was not seated.
func (s Session) Vacate(player string) (Session, bool) {
	switch s.Seat(player) {
	case X:
		s.PlayerX = ""
	case O:
		s.PlayerO = ""
	default:
		return s, false
	}

	return s, true
}

// Fingerprint returns a stable hash of the persisted fields. Two sessions
// with equal fingerprints render identically.
func (s Session) Fingerprint() string {
	var sb strings.Builder
	sb.Grow(CellCount + BoardCount + len(s.Room) + len(s.PlayerX) + len(s.PlayerO) + 32)
	sb.WriteString(s.Room)
	sb.WriteByte(0)
	sb.WriteString(s.Cells)
	sb.WriteString(s.SmallWinners)
	sb.WriteString(strconv.Itoa(s.ActiveBoardX))
	sb.WriteByte(',')
	sb.WriteString(strconv.Itoa(s.ActiveBoardY))
	sb.WriteByte(0)
	sb.WriteString(s.PlayerX)
	sb.WriteByte(0)
	sb.WriteString(s.PlayerO)
	sb.WriteByte(0)
	sb.WriteString(strconv.FormatBool(s.XTurn))
	sb.WriteString(string(s.Status))

	return strconv.FormatUint(xxh3.HashString(sb.String()), 16)
}
