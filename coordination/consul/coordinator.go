// Package consul implements types.Coordinator with Consul sessions and KV
// locks, and types.Registrar with the Consul agent service catalog.
package consul

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/hashicorp/consul/api"

	"github.com/wwsupercheese/tictactoe/types"
)

// minLockDelay is the smallest lock-delay the API transmits. A zero
// LockDelay is omitted from the request and the server applies its 15s
// default instead.
const minLockDelay = time.Millisecond

// Config configures the Consul client.
type Config struct {
	// Address of the Consul agent. Default: "127.0.0.1:8500".
	Address string `yaml:"address"`

	// Datacenter to use; empty for the agent's default.
	Datacenter string `yaml:"datacenter"`

	// Token is the ACL token.
	Token string `yaml:"token"`
}

// NewClient creates a Consul API client and verifies the agent is reachable.
func NewClient(ctx context.Context, cfg Config) (*api.Client, error) {
	conf := api.DefaultConfig()
	if cfg.Address != "" {
		conf.Address = cfg.Address
	}
	conf.Datacenter = cfg.Datacenter
	conf.Token = cfg.Token

	client, err := api.NewClient(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	if _, err := client.Status().LeaderWithQueryOptions(queryOpts(ctx)); err != nil {
		return nil, fmt.Errorf("failed to connect to consul: %w: %w", types.ErrConnectivity, err)
	}

	return client, nil
}

// Coordinator implements types.Coordinator on Consul.
type Coordinator struct {
	client *api.Client
}

var _ types.Coordinator = (*Coordinator)(nil)

// New wraps a Consul client.
func New(client *api.Client) *Coordinator {
	return &Coordinator{client: client}
}

// CreateLease creates a session with the given TTL, no lock-delay and the
// delete behavior, so held keys vanish with the session.
func (c *Coordinator) CreateLease(ctx context.Context, name string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("%w: lease ttl must be positive", types.ErrInvalidConfig)
	}

	id, _, err := c.client.Session().Create(&api.SessionEntry{
		Name:      name,
		TTL:       ttl.String(),
		LockDelay: minLockDelay,
		Behavior:  api.SessionBehaviorDelete,
	}, writeOpts(ctx))
	if err != nil {
		return "", wrap("create session", err)
	}

	return id, nil
}

// Acquire takes key with the session.
func (c *Coordinator) Acquire(ctx context.Context, key, leaseID string, value []byte) (bool, error) {
	ok, _, err := c.client.KV().Acquire(&api.KVPair{
		Key:     key,
		Value:   value,
		Session: leaseID,
	}, writeOpts(ctx))
	if err != nil {
		return false, wrap("acquire", err)
	}

	return ok, nil
}

// Renew renews the session.
func (c *Coordinator) Renew(ctx context.Context, leaseID string) error {
	entry, _, err := c.client.Session().Renew(leaseID, writeOpts(ctx))
	if err != nil {
		return wrap("renew", err)
	}
	if entry == nil {
		return types.ErrLeaseNotFound
	}

	return nil
}

// Read returns the key and its holding session.
func (c *Coordinator) Read(ctx context.Context, key string) (types.LockEntry, bool, error) {
	pair, _, err := c.client.KV().Get(key, queryOpts(ctx))
	if err != nil {
		return types.LockEntry{}, false, wrap("read", err)
	}
	if pair == nil {
		return types.LockEntry{}, false, nil
	}

	return types.LockEntry{Value: string(pair.Value), LeaseID: pair.Session}, true, nil
}

// Release destroys the session; Consul deletes the keys it held.
func (c *Coordinator) Release(ctx context.Context, leaseID string) error {
	if _, err := c.client.Session().Destroy(leaseID, writeOpts(ctx)); err != nil {
		return wrap("destroy session", err)
	}

	return nil
}

// Registrar implements types.Registrar with agent service registration and a
// TCP health check.
type Registrar struct {
	client *api.Client
}

var _ types.Registrar = (*Registrar)(nil)

// NewRegistrar wraps a Consul client.
func NewRegistrar(client *api.Client) *Registrar {
	return &Registrar{client: client}
}

// Register registers the instance with the local agent.
func (r *Registrar) Register(ctx context.Context, reg types.Registration) error {
	svc := &api.AgentServiceRegistration{
		ID:      reg.ID,
		Name:    reg.Tier.ServiceName(),
		Address: reg.Host,
		Port:    reg.Port,
		Tags:    []string{string(reg.Tier)},
	}
	if reg.CheckInterval > 0 {
		svc.Check = &api.AgentServiceCheck{
			TCP:                            net.JoinHostPort(reg.Host, strconv.Itoa(reg.Port)),
			Interval:                       reg.CheckInterval.String(),
			Timeout:                        reg.CheckInterval.String(),
			DeregisterCriticalServiceAfter: "1m",
		}
	}

	err := r.client.Agent().ServiceRegisterOpts(svc, api.ServiceRegisterOpts{}.WithContext(ctx))
	if err != nil {
		return wrap("register service", err)
	}

	return nil
}

// Deregister removes the instance.
func (r *Registrar) Deregister(ctx context.Context, reg types.Registration) error {
	err := r.client.Agent().ServiceDeregisterOpts(reg.ID, queryOpts(ctx))
	if err != nil {
		return wrap("deregister service", err)
	}

	return nil
}

// Instances lists the registered instances of tier known to the catalog.
func (r *Registrar) Instances(ctx context.Context, tier types.Tier) ([]types.Registration, error) {
	services, _, err := r.client.Catalog().Service(tier.ServiceName(), "", queryOpts(ctx))
	if err != nil {
		return nil, wrap("list instances", err)
	}

	out := make([]types.Registration, 0, len(services))
	for _, s := range services {
		host := s.ServiceAddress
		if host == "" {
			host = s.Address
		}
		out = append(out, types.Registration{Tier: tier, ID: s.ServiceID, Host: host, Port: s.ServicePort})
	}

	return out, nil
}

func writeOpts(ctx context.Context) *api.WriteOptions {
	return (&api.WriteOptions{}).WithContext(ctx)
}

func queryOpts(ctx context.Context) *api.QueryOptions {
	return (&api.QueryOptions{}).WithContext(ctx)
}

func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, types.ErrConnectivity, err)
}
