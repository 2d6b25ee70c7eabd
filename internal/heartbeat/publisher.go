package heartbeat

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/wwsupercheese/tictactoe/internal/logger"
	"github.com/wwsupercheese/tictactoe/types"
)

// Beat is a running heartbeat for one key.
type Beat struct {
	kv       jetstream.KeyValue
	key      string
	value    []byte
	interval time.Duration
	logger   types.Logger

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// Start writes key once and then rewrites it every interval until Stop.
// The first write happens before Start returns; its error aborts the beat.
func Start(ctx context.Context, kv jetstream.KeyValue, key string, value []byte, interval time.Duration, l types.Logger) (*Beat, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("%w: heartbeat interval must be positive", types.ErrInvalidConfig)
	}
	if l == nil {
		l = logger.NewNop()
	}

	b := &Beat{kv: kv, key: key, value: value, interval: interval, logger: l}
	if err := b.put(ctx); err != nil {
		return nil, err
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.run(loopCtx)

	return b, nil
}

// Key returns the key kept alive by b.
func (b *Beat) Key() string { return b.key }

// Stop ends the beat and deletes the key. Later calls return the result of
// the first.
func (b *Beat) Stop(ctx context.Context) error {
	b.stopOnce.Do(func() {
		b.cancel()
		<-b.done

		if err := b.kv.Delete(ctx, b.key); err != nil {
			b.stopErr = fmt.Errorf("delete heartbeat %s: %w", b.key, err)
		}
	})

	return b.stopErr
}

func (b *Beat) run(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		putCtx, cancel := context.WithTimeout(ctx, b.interval)
		if err := b.put(putCtx); err != nil && ctx.Err() == nil {
			b.logger.Warn("heartbeat failed", "key", b.key, "error", err)
		}
		cancel()
	}
}

func (b *Beat) put(ctx context.Context) error {
	if _, err := b.kv.Put(ctx, b.key, b.value); err != nil {
		return fmt.Errorf("heartbeat %s: %w", b.key, err)
	}

	return nil
}
