package transport

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/wwsupercheese/tictactoe/internal/logger"
	"github.com/wwsupercheese/tictactoe/internal/metrics"
	"github.com/wwsupercheese/tictactoe/types"
)

// RoleSource exposes the election state of the serving instance.
type RoleSource interface {
	Tier() types.Tier
	Role() types.Role
	Leader() string
	Self() string
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets the logger.
func WithServerLogger(l types.Logger) ServerOption {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithServerMetrics sets the collector recording request outcomes.
func WithServerMetrics(m types.MetricsCollector) ServerOption {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithRoleSource serves GET /v1/leader from src.
func WithRoleSource(src RoleSource) ServerOption {
	return func(s *Server) {
		s.role = src
	}
}

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metricsHandler = h
	}
}

// Server routes one tier's API.
type Server struct {
	mux            *http.ServeMux
	logger         types.Logger
	metrics        types.MetricsCollector
	role           RoleSource
	metricsHandler http.Handler
}

// apiFunc handles one call. It returns the response body or an error to be
// rendered with its wire code.
type apiFunc func(r *http.Request) (any, error)

func newServer(opts []ServerOption) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger.NewNop(),
		metrics: metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.mux.HandleFunc("GET /v1/leader", s.handleLeader)
	if s.metricsHandler != nil {
		s.mux.Handle("GET /metrics", s.metricsHandler)
	}

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return withRequestID(s.mux)
}

func (s *Server) handle(pattern, op string, fn apiFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		out, err := fn(r)
		code := ""
		if err != nil {
			code = writeError(w, err)
			if code == types.CodeInternal {
				s.logger.Error("request failed", "op", op, "request_id", requestID(r), "error", err)
			} else {
				s.logger.Debug("request refused", "op", op, "code", code, "error", err)
			}
		} else {
			writeJSON(w, http.StatusOK, out)
		}

		s.metrics.RecordRequest(op, code, time.Since(start).Seconds())
	})
}

func (s *Server) handleLeader(w http.ResponseWriter, _ *http.Request) {
	if s.role == nil {
		writeJSON(w, http.StatusOK, LeaderInfo{Role: types.RoleLeader.String()})
		return
	}

	writeJSON(w, http.StatusOK, LeaderInfo{
		Tier:   s.role.Tier(),
		Role:   s.role.Role().String(),
		Leader: s.role.Leader(),
		Self:   s.role.Self(),
	})
}

const headerRequestID = "X-Request-ID"

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(headerRequestID, id)
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r)
	})
}

func requestID(r *http.Request) string {
	return r.Header.Get(headerRequestID)
}
