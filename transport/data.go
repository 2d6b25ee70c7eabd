package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/wwsupercheese/tictactoe/discovery"
	"github.com/wwsupercheese/tictactoe/game"
	"github.com/wwsupercheese/tictactoe/types"
)

// DataAPI is the data-tier contract served by NewDataServer and
// implemented remotely by DataClient and RemoteData.
type DataAPI interface {
	CheckSession(ctx context.Context, player string) (room string, found bool, err error)
	Load(ctx context.Context, room string) (game.Session, error)
	Save(ctx context.Context, s game.Session) error
	Delete(ctx context.Context, room string) error
	ExitSeat(ctx context.Context, room, player string) (bool, error)
}

// NewDataServer routes the data-tier API under /v1/data.
func NewDataServer(api DataAPI, opts ...ServerOption) *Server {
	s := newServer(opts)

	s.handle("GET /v1/data/players/{player}/session", "data_check_session", func(r *http.Request) (any, error) {
		room, found, err := api.CheckSession(r.Context(), r.PathValue("player"))
		if err != nil {
			return nil, err
		}

		return SessionInfo{Exists: found, Room: room}, nil
	})

	s.handle("GET /v1/data/sessions/{room}", "data_load", func(r *http.Request) (any, error) {
		sess, err := api.Load(r.Context(), r.PathValue("room"))
		if err != nil {
			return nil, err
		}

		return sess, nil
	})

	s.handle("PUT /v1/data/sessions/{room}", "data_save", func(r *http.Request) (any, error) {
		var sess game.Session
		if err := decodeBody(r.Body, &sess); err != nil {
			return nil, err
		}
		if sess.Room != r.PathValue("room") {
			return nil, fmt.Errorf("%w: body room %q does not match path", types.ErrInvalidRequest, sess.Room)
		}

		return struct{}{}, api.Save(r.Context(), sess)
	})

	s.handle("DELETE /v1/data/sessions/{room}", "data_delete", func(r *http.Request) (any, error) {
		return struct{}{}, api.Delete(r.Context(), r.PathValue("room"))
	})

	s.handle("POST /v1/data/sessions/{room}/exit", "data_exit_seat", func(r *http.Request) (any, error) {
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

// DataClient calls a data-tier instance.
type DataClient struct {
	base
}

var _ DataAPI = (*DataClient)(nil)

// NewDataClient creates a client for the data-tier instance at addr.
func NewDataClient(addr string, hc *http.Client) *DataClient {
	return &DataClient{base: newBase(addr, hc)}
}

// DialData creates a client for addr and checks it answers. It matches
// discovery.Dialer.
func DialData(ctx context.Context, addr string) (*DataClient, error) {
	c := NewDataClient(addr, nil)
	if err := c.Health(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}

	return c, nil
}

// CheckSession implements DataAPI.
func (c *DataClient) CheckSession(ctx context.Context, player string) (string, bool, error) {
	var out SessionInfo
	if err := c.call(ctx, http.MethodGet, "/v1/data/players/"+url.PathEscape(player)+"/session", nil, &out); err != nil {
		return "", false, err
	}

	return out.Room, out.Exists, nil
}

// Load implements DataAPI.
func (c *DataClient) Load(ctx context.Context, room string) (game.Session, error) {
	var out game.Session
	if err := c.call(ctx, http.MethodGet, sessionPath(room), nil, &out); err != nil {
		return game.Session{}, err
	}

	return out, nil
}

// Save implements DataAPI.
func (c *DataClient) Save(ctx context.Context, s game.Session) error {
	return c.call(ctx, http.MethodPut, sessionPath(s.Room), s, nil)
}

// Delete implements DataAPI.
func (c *DataClient) Delete(ctx context.Context, room string) error {
	return c.call(ctx, http.MethodDelete, sessionPath(room), nil, nil)
}

// ExitSeat implements DataAPI.
func (c *DataClient) ExitSeat(ctx context.Context, room, player string) (bool, error) {
	var out ExitResponse
	if err := c.call(ctx, http.MethodPost, sessionPath(room)+"/exit", PlayerRequest{Player: player}, &out); err != nil {
		return false, err
	}

	return out.Success, nil
}

func sessionPath(room string) string {
	return "/v1/data/sessions/" + url.PathEscape(room)
}

// RemoteData routes DataAPI calls to the current data-tier leader.
//
// While no leader is connected, or after the leader stopped answering,
// calls fail with an error matching types.ErrBackingStoreUnavailable.
type RemoteData struct {
	f *discovery.Follower[*DataClient]
}

var _ DataAPI = (*RemoteData)(nil)

// NewRemoteData wraps a follower of the data tier.
func NewRemoteData(f *discovery.Follower[*DataClient]) *RemoteData {
	return &RemoteData{f: f}
}

// CheckSession implements DataAPI.
func (r *RemoteData) CheckSession(ctx context.Context, player string) (room string, found bool, err error) {
	err = r.do(ctx, func(ctx context.Context, c *DataClient) error {
		var e error
		room, found, e = c.CheckSession(ctx, player)
		return e
	})

	return room, found, err
}

// Load implements DataAPI.
func (r *RemoteData) Load(ctx context.Context, room string) (sess game.Session, err error) {
	err = r.do(ctx, func(ctx context.Context, c *DataClient) error {
		var e error
		sess, e = c.Load(ctx, room)
		return e
	})

	return sess, err
}

// Save implements DataAPI.
func (r *RemoteData) Save(ctx context.Context, s game.Session) error {
	return r.do(ctx, func(ctx context.Context, c *DataClient) error {
		return c.Save(ctx, s)
	})
}

// Delete implements DataAPI.
func (r *RemoteData) Delete(ctx context.Context, room string) error {
	return r.do(ctx, func(ctx context.Context, c *DataClient) error {
		return c.Delete(ctx, room)
	})
}

// ExitSeat implements DataAPI.
func (r *RemoteData) ExitSeat(ctx context.Context, room, player string) (ok bool, err error) {
	err = r.do(ctx, func(ctx context.Context, c *DataClient) error {
		var e error
		ok, e = c.ExitSeat(ctx, room, player)
		return e
	})

	return ok, err
}

func (r *RemoteData) do(ctx context.Context, fn func(ctx context.Context, c *DataClient) error) error {
	err := r.f.Do(ctx, fn)
	if err == nil || errors.Is(err, types.ErrBackingStoreUnavailable) {
		return err
	}
	if errors.Is(err, types.ErrNotConnected) || errors.Is(err, types.ErrUnreachable) {
		return fmt.Errorf("%w: %w", types.ErrBackingStoreUnavailable, err)
	}

	return err
}
