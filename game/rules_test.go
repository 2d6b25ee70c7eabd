package game

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func play(t *testing.T, s Session, player string, bx, by, cx, cy int) Session {
	t.Helper()

	m := Move{BoardX: bx, BoardY: by, CellX: cx, CellY: cy}
	require.True(t, ValidateMove(s, m, player), "move %s by %s should be valid", m, player)

	return ApplyMove(s, m)
}

func seated() Session {
	s := NewSession("1234", "alice")
	s, _ = s.Join("bob")

	return s
}

func TestMove_CellIndex(t *testing.T) {
	require.Equal(t, 0, Move{}.CellIndex())
	require.Equal(t, 40, Move{BoardX: 1, BoardY: 1, CellX: 1, CellY: 1}.CellIndex())
	require.Equal(t, 80, Move{BoardX: 2, BoardY: 2, CellX: 2, CellY: 2}.CellIndex())
	require.Equal(t, 8, Move{BoardX: 2, BoardY: 0, CellX: 2, CellY: 0}.CellIndex())
	require.Equal(t, 72, Move{BoardX: 0, BoardY: 2, CellX: 0, CellY: 2}.CellIndex())
	require.Equal(t, 5, Move{BoardX: 2, BoardY: 1}.BoardIndex())
}

func TestValidateMove(t *testing.T) {
	s := seated()

	tests := []struct {
		name   string
		s      Session
		move   Move
		player string
		want   bool
	}{
		{"x opens anywhere", s, Move{1, 1, 1, 1}, "alice", true},
		{"o cannot open", s, Move{1, 1, 1, 1}, "bob", false},
		{"stranger", s, Move{1, 1, 1, 1}, "mallory", false},
		{"empty player", NewSession("1", ""), Move{0, 0, 0, 0}, "", false},
		{"board out of range", s, Move{3, 0, 0, 0}, "alice", false},
		{"negative cell", s, Move{0, 0, -1, 0}, "alice", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ValidateMove(tt.s, tt.move, tt.player))
		})
	}

	t.Run("game over", func(t *testing.T) {
		over := s
		over.Status = StatusDraw
		require.False(t, ValidateMove(over, Move{0, 0, 0, 0}, "alice"))
	})

	t.Run("occupied cell", func(t *testing.T) {
		next := play(t, s, "alice", 1, 1, 1, 1)
		next.ActiveBoardX, next.ActiveBoardY = AnyBoard, AnyBoard
		require.False(t, ValidateMove(next, Move{1, 1, 1, 1}, "bob"))
	})

	t.Run("decided sub-board", func(t *testing.T) {
		decided := s
		decided.SmallWinners = "X" + strings.Repeat(".", 8)
		require.False(t, ValidateMove(decided, Move{0, 0, 2, 2}, "alice"))
	})
}

func TestActiveSubBoardRule(t *testing.T) {
	s := seated()

	s = play(t, s, "alice", 1, 1, 0, 0)
	require.Equal(t, 0, s.ActiveBoardX)
	require.Equal(t, 0, s.ActiveBoardY)
	require.Equal(t, "bob", s.CurrentPlayer())

	require.False(t, ValidateMove(s, Move{BoardX: 2, BoardY: 2, CellX: 0, CellY: 0}, "bob"))

	s = play(t, s, "bob", 0, 0, 1, 1)
	require.Equal(t, 1, s.ActiveBoardX)
	require.Equal(t, 1, s.ActiveBoardY)
	require.Equal(t, O, s.Cells[Move{BoardX: 0, BoardY: 0, CellX: 1, CellY: 1}.CellIndex()])
	require.Equal(t, X, s.Cells[Move{BoardX: 1, BoardY: 1}.CellIndex()])
}

// fillBoard writes pattern, row-major, into small board (bx, by).
func fillBoard(s Session, bx, by int, pattern string) Session {
	cells := []byte(s.Cells)
	for i := range 9 {
		cells[Move{BoardX: bx, BoardY: by, CellX: i % 3, CellY: i / 3}.CellIndex()] = pattern[i]
	}
	s.Cells = string(cells)

	return s
}

func TestApplyMove_NextActiveBoard(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(Session) Session
		wantX   int
		wantY   int
	}{
		{
			name:    "open target board",
			prepare: func(s Session) Session { return s },
			wantX:   0,
			wantY:   0,
		},
		{
			name: "target board already won",
			prepare: func(s Session) Session {
				s = fillBoard(s, 0, 0, "OOO......")
				s.SmallWinners = "O" + s.SmallWinners[1:]
				return s
			},
			wantX: AnyBoard,
			wantY: AnyBoard,
		},
		{
			name: "target board full without a winner",
			prepare: func(s Session) Session {
				return fillBoard(s, 0, 0, "XOXXOOOXX")
			},
			wantX: AnyBoard,
			wantY: AnyBoard,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := play(t, tt.prepare(seated()), "alice", 1, 1, 0, 0)
			require.Equal(t, tt.wantX, s.ActiveBoardX)
			require.Equal(t, tt.wantY, s.ActiveBoardY)
			require.Equal(t, tt.wantX != AnyBoard, s.Constrained())
			require.Equal(t, tt.prepare(seated()).SmallWinners[0], s.SmallWinners[0], "the target board's outcome is unchanged")
		})
	}
}

func TestGuardedReplayIsIdempotent(t *testing.T) {
	s := seated()
	m := Move{BoardX: 1, BoardY: 1, CellX: 2, CellY: 0}

	once, ok := TryMove(s, m, "alice")
	require.True(t, ok)

	twice, ok := TryMove(once, m, "alice")
	require.False(t, ok)
	require.Equal(t, once, twice)
	require.Equal(t, once.Fingerprint(), twice.Fingerprint())
}

func TestApplyMove_DoesNotMutateInput(t *testing.T) {
	s := seated()
	before := s

	_ = ApplyMove(s, Move{BoardX: 0, BoardY: 0, CellX: 0, CellY: 0})
	require.Equal(t, before, s)
}

func TestApplyMove_SmallBoardWin(t *testing.T) {
	s := seated()

	// O builds the anti-diagonal of board (0,0) while X keeps sending it back.
	s = play(t, s, "alice", 0, 0, 0, 0)
	s = play(t, s, "bob", 0, 0, 1, 1)
	s = play(t, s, "alice", 1, 1, 0, 0)
	s = play(t, s, "bob", 0, 0, 2, 2)
	s = play(t, s, "alice", 2, 2, 0, 0)
	s = play(t, s, "bob", 0, 0, 1, 0)
	s = play(t, s, "alice", 1, 0, 0, 0)
	s = play(t, s, "bob", 0, 0, 2, 0)
	require.Equal(t, Empty, s.SmallWinners[0])

	s = play(t, s, "alice", 2, 0, 0, 0)
	s = play(t, s, "bob", 0, 0, 0, 1)
	s = play(t, s, "alice", 0, 1, 0, 0)
	s = play(t, s, "bob", 0, 0, 0, 2)
	require.Equal(t, O, s.SmallWinners[0])
	require.Equal(t, StatusPlaying, s.Status)

	// Sent to a decided board: the next move is unconstrained.
	s = play(t, s, "alice", 0, 2, 0, 0)
	require.False(t, s.Constrained())
}

func TestApplyMove_OverallWinAndDraw(t *testing.T) {
	t.Run("x wins", func(t *testing.T) {
		s := seated()
		s.SmallWinners = "XX" + strings.Repeat(".", 7)
		cells := []byte(s.Cells)
		// Board (2,0) holds X at (0,0) and (1,0).
		cells[Move{BoardX: 2, CellX: 0}.CellIndex()] = X
		cells[Move{BoardX: 2, CellX: 1}.CellIndex()] = X
		s.Cells = string(cells)

		s = play(t, s, "alice", 2, 0, 2, 0)
		require.Equal(t, X, s.SmallWinners[2])
		require.Equal(t, StatusXWon, s.Status)
		require.False(t, ValidateMove(s, Move{0, 1, 0, 0}, "bob"))
	})

	t.Run("draw when board fills", func(t *testing.T) {
		s := seated()
		cells := []byte(strings.Repeat("O", CellCount))
		cells[Move{BoardX: 1, BoardY: 1, CellX: 1, CellY: 1}.CellIndex()] = Empty
		s.Cells = string(cells)
		s.SmallWinners = "XOXOXOOXO"
		s.SmallWinners = s.SmallWinners[:4] + "." + s.SmallWinners[5:]

		s = play(t, s, "alice", 1, 1, 1, 1)
		require.Equal(t, StatusDraw, s.Status)
		require.False(t, s.XTurn)
	})
}

func TestSeats(t *testing.T) {
	s := NewSession("1234", "alice")
	require.Equal(t, X, s.Seat("alice"))
	require.False(t, s.Full())

	s, ok := s.Join("bob")
	require.True(t, ok)
	require.Equal(t, O, s.Seat("bob"))
	require.True(t, s.Full())

	_, ok = s.Join("carol")
	require.False(t, ok)

	again, ok := s.Join("alice")
	require.True(t, ok)
	require.Equal(t, s, again)

	s, ok = s.Vacate("alice")
	require.True(t, ok)
	require.Empty(t, s.PlayerX)

	s, ok = s.Join("carol")
	require.True(t, ok)
	require.Equal(t, "carol", s.PlayerX)

	_, ok = s.Vacate("mallory")
	require.False(t, ok)

	s, _ = s.Vacate("carol")
	s, _ = s.Vacate("bob")
	require.True(t, s.Empty())
}

func TestReset(t *testing.T) {
	s := play(t, seated(), "alice", 1, 1, 1, 1)

	r := Reset(s)
	require.Equal(t, "alice", r.PlayerX)
	require.Equal(t, "bob", r.PlayerO)
	require.Equal(t, strings.Repeat(".", CellCount), r.Cells)
	require.True(t, r.XTurn)
	require.False(t, r.Constrained())
	require.Equal(t, StatusPlaying, r.Status)
	require.NotEqual(t, s.Fingerprint(), r.Fingerprint())
}

func TestSession_Validate(t *testing.T) {
	require.NoError(t, NewSession("1", "a").Validate())

	bad := NewSession("1", "a")
	bad.Cells = "..."
	require.Error(t, bad.Validate())

	bad = NewSession("1", "a")
	bad.Status = "Won"
	require.Error(t, bad.Validate())

	require.Error(t, Session{}.Validate())
}
