package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/wwsupercheese/tictactoe/types"
)

// DefaultClientTimeout bounds one call when no http.Client is supplied.
const DefaultClientTimeout = 10 * time.Second

var (
	sharedOnce   sync.Once
	sharedClient *http.Client
)

func defaultHTTPClient() *http.Client {
	sharedOnce.Do(func() {
		sharedClient = NewHTTPClient(DefaultClientTimeout)
	})

	return sharedClient
}

// base is the shared part of the tier clients.
type base struct {
	addr string
	hc   *http.Client
}

func newBase(addr string, hc *http.Client) base {
	if hc == nil {
		hc = defaultHTTPClient()
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}

	return base{addr: strings.TrimRight(addr, "/"), hc: hc}
}

// Addr returns the address the client calls.
func (b base) Addr() string {
	return b.addr
}

// Health calls GET /healthz.
func (b base) Health(ctx context.Context) error {
	return b.call(ctx, http.MethodGet, "/healthz", nil, nil)
}

// Leader calls GET /v1/leader.
func (b base) Leader(ctx context.Context) (LeaderInfo, error) {
	var out LeaderInfo
	err := b.call(ctx, http.MethodGet, "/v1/leader", nil, &out)

	return out, err
}

// Close releases idle connections. The shared client is left open.
func (b base) Close() error {
	if b.hc != sharedClient {
		b.hc.CloseIdleConnections()
	}

	return nil
}

func (b base) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.addr+path, body)
	if err != nil {
		return fmt.Errorf("%w: %w", types.ErrInvalidRequest, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return fmt.Errorf("%w: %s %s: %w", types.ErrUnreachable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return readError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: truncated response: %w", types.ErrUnreachable, err)
		}

		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}
