package transport

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// NewHTTPServer returns a server speaking HTTP/2 cleartext and HTTP/1.1 on addr.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr: addr,
		Handler: h2c.NewHandler(h, &http2.Server{
			MaxConcurrentStreams: 250,
			IdleTimeout:          2 * time.Minute,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// NewHTTPClient returns a client speaking HTTP/2 cleartext with prior knowledge.
func NewHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Timeout: timeout,
		Transport: &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				return dialer.DialContext(ctx, network, addr)
			},
			ReadIdleTimeout: 15 * time.Second,
			PingTimeout:     5 * time.Second,
		},
	}
}
