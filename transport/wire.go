package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/wwsupercheese/tictactoe/game"
	"github.com/wwsupercheese/tictactoe/types"
)

// ErrorBody is the body of every failed response.
type ErrorBody struct {
	Code    string `json:"error"`
	Message string `json:"message,omitempty"`
}

// JoinRequest is the body of CreateOrJoin.
type JoinRequest struct {
	Player   string `json:"player"`
	JoinOnly bool   `json:"joinOnly"`
}

// MoveRequest is the body of MakeMove.
type MoveRequest struct {
	Player string `json:"player"`
	game.Move
}

// PlayerRequest carries the acting player.
type PlayerRequest struct {
	Player string `json:"player"`
}

// ExitResponse is the result of ExitSeat.
type ExitResponse struct {
	Success bool `json:"success"`
}

// SessionInfo is the result of CheckSession.
type SessionInfo struct {
	Exists bool   `json:"exists"`
	Room   string `json:"room,omitempty"`
}

// LeaderInfo describes the election state of the answering instance.
type LeaderInfo struct {
	Tier   types.Tier `json:"tier"`
	Role   string     `json:"role"`
	Leader string     `json:"leader"`
	Self   string     `json:"self"`
}

// GameView is the game-tier rendering of a session.
type GameView struct {
	Room          string      `json:"room"`
	Cells         string      `json:"cells"`
	SmallWinners  string      `json:"smallWinners"`
	ActiveBoardX  int         `json:"activeBoardX"`
	ActiveBoardY  int         `json:"activeBoardY"`
	PlayerX       string      `json:"playerX"`
	PlayerO       string      `json:"playerO"`
	CurrentPlayer string      `json:"currentPlayer"`
	XTurn         bool        `json:"xTurn"`
	Status        game.Status `json:"status"`

	// Version changes whenever any other field changes.
	Version string `json:"version"`
}

// NewGameView renders s.
func NewGameView(s game.Session) GameView {
	return GameView{
		Room:          s.Room,
		Cells:         s.Cells,
		SmallWinners:  s.SmallWinners,
		ActiveBoardX:  s.ActiveBoardX,
		ActiveBoardY:  s.ActiveBoardY,
		PlayerX:       s.PlayerX,
		PlayerO:       s.PlayerO,
		CurrentPlayer: s.CurrentPlayer(),
		XTurn:         s.XTurn,
		Status:        s.Status,
		Version:       s.Fingerprint(),
	}
}

// Session rebuilds the session a view was rendered from.
func (v GameView) Session() game.Session {
	return game.Session{
		Room:         v.Room,
		Cells:        v.Cells,
		SmallWinners: v.SmallWinners,
		ActiveBoardX: v.ActiveBoardX,
		ActiveBoardY: v.ActiveBoardY,
		PlayerX:      v.PlayerX,
		PlayerO:      v.PlayerO,
		XTurn:        v.XTurn,
		Status:       v.Status,
	}
}

// StatusCode returns the HTTP status of a wire code.
func StatusCode(code string) int {
	switch code {
	case "":
		return http.StatusOK
	case types.CodeSystemSyncing:
		return http.StatusServiceUnavailable
	case types.CodeRoomNotFound, types.CodeNotFound, types.CodeRoomError:
		return http.StatusNotFound
	case types.CodeRoomFull:
		return http.StatusConflict
	case types.CodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) string {
	code := types.ErrorCode(err)
	writeJSON(w, StatusCode(code), ErrorBody{Code: code, Message: err.Error()})

	return code
}

// readError decodes a failed response into a sentinel-matching error.
func readError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var eb ErrorBody
	if err := json.Unmarshal(body, &eb); err != nil || eb.Code == "" {
		if resp.StatusCode == http.StatusServiceUnavailable {
			return fmt.Errorf("%w: http %d", types.ErrBackingStoreUnavailable, resp.StatusCode)
		}

		return fmt.Errorf("unexpected http status %d: %s", resp.StatusCode, body)
	}

	return types.ErrorFromCode(eb.Code, eb.Message)
}

func decodeBody(r io.Reader, v any) error {
	dec := json.NewDecoder(io.LimitReader(r, 1<<20))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed body: %w", types.ErrInvalidRequest, err)
	}

	return nil
}
