// Package types provides core type definitions and interfaces for the tictactoe backend.
//
// This package contains shared types that are used across multiple packages.
// By keeping these types in a separate package, we avoid import cycles
// between the root tictactoe package and its internal implementations.
//
// Key types:
//   - Role: Election role of a tier instance
//   - Tier: Service tier and its leader lock key
//   - Coordinator: Distributed lock contract
//   - Registrar: Service registration contract
//   - Logger: Structured logging interface
//   - MetricsCollector: Metrics recording interface
package types
