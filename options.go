package tictactoe

import (
	"net/http"

	"github.com/wwsupercheese/tictactoe/store"
)

// Option configures a Manager with optional dependencies.
type Option func(*managerOptions)

// managerOptions holds optional Manager configuration.
type managerOptions struct {
	coordinator    Coordinator
	registrar      Registrar
	store          store.Store
	replicator     store.Replicator
	hooks          *Hooks
	metrics        MetricsCollector
	logger         Logger
	metricsHandler http.Handler
}

// WithCoordinator sets the coordination client, overriding
// Config.Coordination. The caller keeps ownership: Stop does not close it.
//
// Example:
//
//	coord := memory.New()
//	mgr, err := tictactoe.NewManager(&cfg, tictactoe.WithCoordinator(coord))
func WithCoordinator(coord Coordinator) Option {
	return func(o *managerOptions) {
		o.coordinator = coord
	}
}

// WithRegistrar sets the service registry. Registration happens at Start
// and deregistration at Stop, whether or not Config.Registration is enabled.
func WithRegistrar(r Registrar) Option {
	return func(o *managerOptions) {
		o.registrar = r
	}
}

// WithStore sets the data tier's session store, overriding Config.Storage.
// If the store also implements store.Replicator and no replicator is set,
// it is used for replication too. The caller keeps ownership.
func WithStore(st store.Store) Option {
	return func(o *managerOptions) {
		o.store = st
	}
}

// WithReplicator sets the replication admin of the data tier's store.
func WithReplicator(r store.Replicator) Option {
	return func(o *managerOptions) {
		o.replicator = r
	}
}

// WithHooks sets lifecycle event hooks.
//
// Example:
//
//	hooks := &tictactoe.Hooks{
//	    OnLeaderChanged: func(ctx context.Context, leader string) error {
//	        log.Printf("leader is now %q", leader)
//	        return nil
//	    },
//	}
//	mgr, err := tictactoe.NewManager(&cfg, tictactoe.WithHooks(hooks))
func WithHooks(hooks *Hooks) Option {
	return func(o *managerOptions) {
		o.hooks = hooks
	}
}

// WithMetrics sets a metrics collector.
func WithMetrics(metrics MetricsCollector) Option {
	return func(o *managerOptions) {
		o.metrics = metrics
	}
}

// WithLogger sets a logger.
//
// Example:
//
//	logger, _ := logging.NewZapProduction("info", false)
//	mgr, err := tictactoe.NewManager(&cfg, tictactoe.WithLogger(logger))
func WithLogger(logger Logger) Option {
	return func(o *managerOptions) {
		o.logger = logger
	}
}

// WithMetricsHandler serves h at GET /metrics, typically promhttp.HandlerFor
// over the registry the collector from WithMetrics writes to.
func WithMetricsHandler(h http.Handler) Option {
	return func(o *managerOptions) {
		o.metricsHandler = h
	}
}
