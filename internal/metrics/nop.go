// Package metrics provides MetricsCollector implementations.
package metrics

import "github.com/wwsupercheese/tictactoe/types"

// NopMetrics implements a no-op metrics collector.
//
// All metrics are discarded. It is the default collector when none is
// configured.
type NopMetrics struct{}

var _ types.MetricsCollector = (*NopMetrics)(nil)

// NewNop creates a new no-op metrics collector.
//
// Example:
//
//	mgr, err := tictactoe.NewManager(&cfg, tictactoe.WithMetrics(metrics.NewNop()))
func NewNop() *NopMetrics {
	return &NopMetrics{}
}

// ElectionMetrics implementation

// RecordRoleTransition discards the role transition metric.
func (n *NopMetrics) RecordRoleTransition(_ types.Tier, _, _ types.Role) {}

// RecordLeaderChange discards the leader change metric.
func (n *NopMetrics) RecordLeaderChange(_ types.Tier, _ string) {}

// RecordCoordinationError discards the coordination error metric.
func (n *NopMetrics) RecordCoordinationError(_ string) {}

// ReplicationMetrics implementation

// RecordReplicationPass discards the replication pass metric.
func (n *NopMetrics) RecordReplicationPass(_ string, _ float64, _ bool) {}

// DiscoveryMetrics implementation

// RecordReconnect discards the reconnect metric.
func (n *NopMetrics) RecordReconnect(_ types.Tier) {}

// RecordRetry discards the retry metric.
func (n *NopMetrics) RecordRetry(_ types.Tier) {}

// RecordRetriesExhausted discards the exhausted retries metric.
func (n *NopMetrics) RecordRetriesExhausted(_ types.Tier) {}

// GameMetrics implementation

// RecordRequest discards the request metric.
func (n *NopMetrics) RecordRequest(_, _ string, _ float64) {}

// RecordMove discards the move metric.
func (n *NopMetrics) RecordMove(_ bool) {}
