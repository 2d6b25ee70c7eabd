// Package kvutil holds JetStream KV bucket setup and the retry timing
// helpers shared by the election and discovery loops.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	bucketAttempts = 5
	bucketBackoff  = 10 * time.Millisecond
)

// EnsureBucket opens the KV bucket described by cfg, creating it if needed.
// Instances of both tiers start together and race to create the lock and
// lease buckets; the loser of that race opens the winner's bucket.
func EnsureBucket(ctx context.Context, js jetstream.JetStream, cfg jetstream.KeyValueConfig) (jetstream.KeyValue, error) {
	var err error
	for attempt := range bucketAttempts {
		if attempt > 0 {
			if serr := Sleep(ctx, Backoff(attempt-1, bucketBackoff, time.Second)); serr != nil {
				return nil, fmt.Errorf("bucket %s: %w", cfg.Bucket, serr)
			}
		}

		var kv jetstream.KeyValue
		kv, err = js.CreateKeyValue(ctx, cfg)
		if errors.Is(err, jetstream.ErrBucketExists) {
			kv, err = js.KeyValue(ctx, cfg.Bucket)
		}
		if err == nil {
			return kv, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("bucket %s: %w", cfg.Bucket, ctx.Err())
		}
	}

	return nil, fmt.Errorf("bucket %s unavailable after %d attempts: %w", cfg.Bucket, bucketAttempts, err)
}

// Backoff doubles base for every attempt, never exceeding limit.
func Backoff(attempt int, base, limit time.Duration) time.Duration {
	attempt = max(attempt, 0)
	if attempt > 30 {
		return limit
	}
	if d := base << uint(attempt); d > 0 && d < limit { //nolint:gosec
		return d
	}

	return limit
}

// Sleep waits for d. It returns ctx.Err() if ctx ends first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
