package testing

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/consul"
	"github.com/testcontainers/testcontainers-go/modules/etcd"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// Container images used by the helpers.
const (
	PostgresImage = "postgres:16-alpine"
	RedisImage    = "redis:7-alpine"
	ConsulImage   = "hashicorp/consul:1.15"
	EtcdImage     = "gcr.io/etcd-development/etcd:v3.5.14"
)

func skipShort(t testing.TB) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
}

func terminate(t testing.TB, c testcontainers.Container) {
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := c.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})
}

// StartPostgres starts a PostgreSQL server configured for logical replication
// and returns its connection string.
func StartPostgres(t testing.TB) string {
	t.Helper()
	skipShort(t)

	ctr, err := postgres.Run(t.Context(), PostgresImage,
		postgres.WithDatabase("tictactoe"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		postgres.BasicWaitStrategies(),
		testcontainers.WithCmd("postgres", "-c", "wal_level=logical"),
	)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	terminate(t, ctr)

	dsn, err := ctr.ConnectionString(t.Context(), "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}

	return dsn
}

// RedisNode is a Redis server started by StartRedisNode.
type RedisNode struct {
	// Addr is the host:port reachable from the test process.
	Addr string

	// IP is the container address reachable from other containers.
	IP string
}

// StartRedis starts a Redis server and returns its host:port address.
func StartRedis(t testing.TB) string {
	t.Helper()

	return StartRedisNode(t).Addr
}

// StartRedisNode starts a Redis server and returns both its external address
// and its container IP, so a second server can replicate from it.
func StartRedisNode(t testing.TB) RedisNode {
	t.Helper()
	skipShort(t)

	ctr, err := tcredis.Run(t.Context(), RedisImage)
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}
	terminate(t, ctr)

	uri, err := ctr.ConnectionString(t.Context())
	if err != nil {
		t.Fatalf("redis connection string: %v", err)
	}

	ip, err := ctr.ContainerIP(t.Context())
	if err != nil {
		t.Fatalf("redis container ip: %v", err)
	}

	return RedisNode{Addr: strings.TrimPrefix(uri, "redis://"), IP: ip}
}

// StartConsul starts a Consul agent in dev mode and returns its HTTP address.
func StartConsul(t testing.TB) string {
	t.Helper()
	skipShort(t)

	ctr, err := consul.Run(t.Context(), ConsulImage)
	if err != nil {
		t.Fatalf("start consul: %v", err)
	}
	terminate(t, ctr)

	addr, err := ctr.ApiEndpoint(t.Context())
	if err != nil {
		t.Fatalf("consul endpoint: %v", err)
	}

	return addr
}

// StartEtcd starts a single etcd node and returns its client endpoints.
func StartEtcd(t testing.TB) []string {
	t.Helper()
	skipShort(t)

	ctr, err := etcd.Run(t.Context(), EtcdImage)
	if err != nil {
		t.Fatalf("start etcd: %v", err)
	}
	terminate(t, ctr)

	endpoints, err := ctr.ClientEndpoints(t.Context())
	if err != nil {
		t.Fatalf("etcd endpoints: %v", err)
	}

	return endpoints
}
