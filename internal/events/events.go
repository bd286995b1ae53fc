// Package events forwards batch progress to Redis pub/sub so other processes
// can follow a batch without holding an HTTP connection open.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jonathan/prospect-reports/internal/pipeline"
)

// DefaultPrefix is used when no channel prefix is configured.
const DefaultPrefix = "reports"

// Publisher sends a payload to a pub/sub channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// RedisPublisher publishes through a go-redis client.
type RedisPublisher struct {
	client redis.UniversalClient
}

// NewRedisPublisher wraps client.
func NewRedisPublisher(client redis.UniversalClient) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish implements Publisher.
func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	if channel == "" {
		return errors.New("channel cannot be empty")
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Dial parses a redis:// URL and checks the server is reachable.
func Dial(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// Forwarder copies batch events to a channel per batch.
type Forwarder struct {
	pub    Publisher
	prefix string
	logger *zap.Logger
}

// NewForwarder creates a Forwarder. An empty prefix means DefaultPrefix.
func NewForwarder(pub Publisher, prefix string, logger *zap.Logger) *Forwarder {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forwarder{pub: pub, prefix: prefix, logger: logger}
}

// Channel returns the channel name for a batch.
func (f *Forwarder) Channel(batchID string) string {
	return f.prefix + ":" + batchID
}

// Forward publishes a snapshot of batch followed by every later event until
// the batch finishes or ctx ends. It returns the number of messages
// published. Publish errors are logged and the remaining events are still
// attempted.
func (f *Forwarder) Forward(ctx context.Context, batch *pipeline.Batch) int {
	return <-f.Go(ctx, batch)
}

// Go subscribes to batch before returning and forwards its events in the
// background, so a slow publisher never holds up the batch's jobs. The
// returned channel yields the published count once forwarding stops.
func (f *Forwarder) Go(ctx context.Context, batch *pipeline.Batch) <-chan int {
	snap, events, cancel := batch.Subscribe()
	result := make(chan int, 1)
	go func() {
		defer cancel()
		result <- f.forward(ctx, snap, events)
	}()
	return result
}

func (f *Forwarder) forward(ctx context.Context, snap pipeline.Snapshot, events <-chan pipeline.ProgressEvent) int {
	channel := f.Channel(snap.BatchID)
	log := f.logger.With(zap.String("batch_id", snap.BatchID), zap.String("channel", channel))

	sent := 0
	publish := func(ev pipeline.ProgressEvent) {
		payload, err := json.Marshal(ev)
		if err != nil {
			log.Warn("events: failed to encode event", zap.Error(err))
			return
		}
		if err := f.pub.Publish(ctx, channel, payload); err != nil {
			log.Warn("events: failed to publish event", zap.String("kind", string(ev.Kind)), zap.Error(err))
			return
		}
		sent++
	}

	if ctx.Err() != nil {
		return sent
	}
	if !snap.Summary.Done {
		publish(pipeline.ProgressEvent{
			Kind:    pipeline.EventSnapshot,
			BatchID: snap.BatchID,
			Jobs:    snap.Jobs,
			Summary: snap.Summary,
			Time:    time.Now(),
		})
	}

	for {
		if ctx.Err() != nil {
			return sent
		}
		select {
		case <-ctx.Done():
			return sent
		case ev, ok := <-events:
			if !ok {
				return sent
			}
			publish(ev)
		}
	}
}
