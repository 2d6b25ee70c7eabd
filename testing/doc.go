// Package testing provides test helpers for code built on the tictactoe backend.
//
// Helpers:
//   - StartEmbeddedNATS: In-process NATS server with JetStream
//   - NewKVBucket: memory KV bucket with a key TTL
//   - StartPostgres, StartRedis, StartConsul, StartEtcd: Backing services
//     in Docker via testcontainers (skipped in -short mode)
//   - NewTestLogger: Logger writing to the test output
//
// Example usage:
//
//	import ttttest "github.com/wwsupercheese/tictactoe/testing"
//
//	func TestMyComponent(t *testing.T) {
//	    _, nc := ttttest.StartEmbeddedNATS(t)
//	}
package testing
