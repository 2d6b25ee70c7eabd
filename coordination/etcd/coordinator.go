// Package etcd implements types.Coordinator with etcd leases and transactions.
//
// Lock keys are attached to the lease that acquired them, so etcd deletes
// them as soon as the lease expires or is revoked.
package etcd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.etcd.io/etcd/api/v3/v3rpc/rpctypes"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/wwsupercheese/tictactoe/types"
)

// Config configures the etcd client.
type Config struct {
	Endpoints   []string      `yaml:"endpoints"`
	DialTimeout time.Duration `yaml:"dialTimeout"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
}

// NewClient connects to etcd and checks the first endpoint's status.
func NewClient(ctx context.Context, cfg Config) (*clientv3.Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("%w: etcd endpoints are required", types.ErrInvalidConfig)
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Username:    cfg.Username,
		Password:    cfg.Password,
		Context:     ctx,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	statusCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if _, err := client.Status(statusCtx, cfg.Endpoints[0]); err != nil {
		if cerr := client.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("failed to close etcd client: %w", cerr))
		}

		return nil, fmt.Errorf("failed to connect to etcd: %w: %w", types.ErrConnectivity, err)
	}

	return client, nil
}

// Coordinator implements types.Coordinator on etcd.
type Coordinator struct {
	client *clientv3.Client
}

var _ types.Coordinator = (*Coordinator)(nil)

// New wraps an etcd client.
func New(client *clientv3.Client) *Coordinator {
	return &Coordinator{client: client}
}

// CreateLease grants a lease. etcd TTLs have second granularity; ttl is
// rounded up.
func (c *Coordinator) CreateLease(ctx context.Context, _ string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("%w: lease ttl must be positive", types.ErrInvalidConfig)
	}

	resp, err := c.client.Grant(ctx, int64(math.Ceil(ttl.Seconds())))
	if err != nil {
		return "", wrap("grant", err)
	}

	return formatLease(resp.ID), nil
}

// Acquire puts key bound to the lease if the key does not exist, or if it is
// already bound to the same lease.
func (c *Coordinator) Acquire(ctx context.Context, key, leaseID string, value []byte) (bool, error) {
	id, err := parseLease(leaseID)
	if err != nil {
		return false, err
	}

	resp, err := c.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
		Then(clientv3.OpPut(key, string(value), clientv3.WithLease(id))).
		Commit()
	if err != nil {
		return false, c.leaseErr("acquire", err)
	}
	if resp.Succeeded {
		return true, nil
	}

	resp, err = c.client.Txn(ctx).
		If(clientv3.Compare(clientv3.LeaseValue(key), "=", id)).
		Then(clientv3.OpPut(key, string(value), clientv3.WithLease(id))).
		Commit()
	if err != nil {
		return false, c.leaseErr("acquire", err)
	}

	return resp.Succeeded, nil
}

// Renew sends a single keep-alive for the lease.
func (c *Coordinator) Renew(ctx context.Context, leaseID string) error {
	id, err := parseLease(leaseID)
	if err != nil {
		return err
	}

	resp, err := c.client.KeepAliveOnce(ctx, id)
	if err != nil {
		return c.leaseErr("renew", err)
	}
	if resp.TTL <= 0 {
		return types.ErrLeaseNotFound
	}

	return nil
}

// Read returns key and the lease it is bound to.
func (c *Coordinator) Read(ctx context.Context, key string) (types.LockEntry, bool, error) {
	resp, err := c.client.Get(ctx, key)
	if err != nil {
		return types.LockEntry{}, false, wrap("read", err)
	}
	if len(resp.Kvs) == 0 {
		return types.LockEntry{}, false, nil
	}

	kv := resp.Kvs[0]
	entry := types.LockEntry{Value: string(kv.Value)}
	if kv.Lease != 0 {
		entry.LeaseID = formatLease(clientv3.LeaseID(kv.Lease))
	}

	return entry, true, nil
}

// Release revokes the lease, deleting its keys.
func (c *Coordinator) Release(ctx context.Context, leaseID string) error {
	id, err := parseLease(leaseID)
	if err != nil {
		return err
	}

	if _, err := c.client.Revoke(ctx, id); err != nil {
		if errors.Is(err, rpctypes.ErrLeaseNotFound) {
			return nil
		}

		return wrap("revoke", err)
	}

	return nil
}

func (c *Coordinator) leaseErr(op string, err error) error {
	if errors.Is(err, rpctypes.ErrLeaseNotFound) {
		return types.ErrLeaseNotFound
	}

	return wrap(op, err)
}

func formatLease(id clientv3.LeaseID) string {
	return strconv.FormatInt(int64(id), 16)
}

func parseLease(s string) (clientv3.LeaseID, error) {
	id, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed lease id %q", types.ErrLeaseNotFound, s)
	}

	return clientv3.LeaseID(id), nil
}

func wrap(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	return fmt.Errorf("%s: %w: %w", op, types.ErrConnectivity, err)
}
