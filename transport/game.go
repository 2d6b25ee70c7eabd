package transport

import (
	"context"
	"net/http"
	"net/url"

	"github.com/wwsupercheese/tictactoe/game"
)

// GameAPI is the game-tier contract served by NewGameServer and
// implemented remotely by GameClient.
type GameAPI interface {
	CheckSession(ctx context.Context, player string) (room string, found bool, err error)
	CreateOrJoin(ctx context.Context, nickname, room string, joinOnly bool) (game.Session, error)
	MakeMove(ctx context.Context, room, player string, move game.Move) (game.Session, error)
	GetState(ctx context.Context, room, player string) (game.Session, error)
	Reset(ctx context.Context, room, player string) (game.Session, error)
	ExitSeat(ctx context.Context, room, player string) (bool, error)
}

// NewGameServer routes the game-tier API under /v1.
func NewGameServer(api GameAPI, opts ...ServerOption) *Server {
	s := newServer(opts)

	s.handle("GET /v1/players/{player}/session", "check_session", func(r *http.Request) (any, error) {
		room, found, err := api.CheckSession(r.Context(), r.PathValue("player"))
		if err != nil {
			return nil, err
		}

		return SessionInfo{Exists: found, Room: room}, nil
	})

	s.handle("POST /v1/rooms/{room}/join", "create_or_join", func(r *http.Request) (any, error) {
		var req JoinRequest
		if err := decodeBody(r.Body, &req); err != nil {
			return nil, err
		}

		return view(api.CreateOrJoin(r.Context(), req.Player, r.PathValue("room"), req.JoinOnly))
	})

	s.handle("POST /v1/rooms/{room}/moves", "make_move", func(r *http.Request) (any, error) {
		var req MoveRequest
		if err := decodeBody(r.Body, &req); err != nil {
			return nil, err
		}

		return view(api.MakeMove(r.Context(), r.PathValue("room"), req.Player, req.Move))
	})

	s.handle("GET /v1/rooms/{room}", "get_state", func(r *http.Request) (any, error) {
		return view(api.GetState(r.Context(), r.PathValue("room"), r.URL.Query().Get("player")))
	})

	s.handle("POST /v1/rooms/{room}/reset", "reset", func(r *http.Request) (any, error) {
		var req PlayerRequest
		if err := decodeBody(r.Body, &req); err != nil {
			return nil, err
		}

		return view(api.Reset(r.Context(), r.PathValue("room"), req.Player))
	})

	s.handle("POST /v1/rooms/{room}/exit", "exit_seat", func(r *http.Request) (any, error) {
		var req PlayerRequest
		if err := decodeBody(r.Body, &req); err != nil {
			return nil, err
		}

		ok, err := api.ExitSeat(r.Context(), r.PathValue("room"), req.Player)
		if err != nil {
			return nil, err
		}

		return ExitResponse{Success: ok}, nil
	})

	return s
}

func view(s game.Session, err error) (any, error) {
	if err != nil {
		return nil, err
	}

	return NewGameView(s), nil
}

// GameClient calls a game-tier instance.
type GameClient struct {
	base
}

var _ GameAPI = (*GameClient)(nil)

// NewGameClient creates a client for the game-tier instance at addr.
func NewGameClient(addr string, hc *http.Client) *GameClient {
	return &GameClient{base: newBase(addr, hc)}
}

// DialGame creates a client for addr and checks it answers. It matches
// discovery.Dialer.
func DialGame(ctx context.Context, addr string) (*GameClient, error) {
	c := NewGameClient(addr, nil)
	if err := c.Health(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

// CheckSession implements GameAPI.
func (c *GameClient) CheckSession(ctx context.Context, player string) (string, bool, error) {
	var out SessionInfo
	if err := c.call(ctx, http.MethodGet, "/v1/players/"+url.PathEscape(player)+"/session", nil, &out); err != nil {
		return "", false, err
	}

	return out.Room, out.Exists, nil
}

// CreateOrJoin implements GameAPI.
func (c *GameClient) CreateOrJoin(ctx context.Context, nickname, room string, joinOnly bool) (game.Session, error) {
	return c.session(ctx, http.MethodPost, roomPath(room, "join"), JoinRequest{Player: nickname, JoinOnly: joinOnly})
}

// MakeMove implements GameAPI.
func (c *GameClient) MakeMove(ctx context.Context, room, player string, move game.Move) (game.Session, error) {
	return c.session(ctx, http.MethodPost, roomPath(room, "moves"), MoveRequest{Player: player, Move: move})
}

// GetState implements GameAPI.
func (c *GameClient) GetState(ctx context.Context, room, player string) (game.Session, error) {
	return c.session(ctx, http.MethodGet, roomPath(room, "")+"?player="+url.QueryEscape(player), nil)
}

// Reset implements GameAPI.
func (c *GameClient) Reset(ctx context.Context, room, player string) (game.Session, error) {
	return c.session(ctx, http.MethodPost, roomPath(room, "reset"), PlayerRequest{Player: player})
}

// ExitSeat implements GameAPI.
func (c *GameClient) ExitSeat(ctx context.Context, room, player string) (bool, error) {
	var out ExitResponse
	if err := c.call(ctx, http.MethodPost, roomPath(room, "exit"), PlayerRequest{Player: player}, &out); err != nil {
		return false, err
	}

	return out.Success, nil
}

func (c *GameClient) session(ctx context.Context, method, path string, in any) (game.Session, error) {
	var out GameView
	if err := c.call(ctx, method, path, in, &out); err != nil {
		return game.Session{}, err
	}

	return out.Session(), nil
}

func roomPath(room, action string) string {
	p := "/v1/rooms/" + url.PathEscape(room)
	if action != "" {
		p += "/" + action
	}

	return p
}
