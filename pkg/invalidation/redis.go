package invalidation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/nive-cms/userdb/pkg/interfaces"
)

// RedisBus shares invalidations through a Redis pub/sub channel
type RedisBus struct {
	mu      sync.Mutex
	client  *redis.Client
	config  Config
	nodeID  string
	logger  interfaces.Logger
	pubsubs []*redis.PubSub
	closed  bool
}

var _ interfaces.InvalidationBus = (*RedisBus)(nil)

// NewRedisBus connects to Redis and verifies the connection
func NewRedisBus(cfg Config, logger interfaces.Logger) (*RedisBus, error) {
	cfg = cfg.withDefaults()
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	if logger != nil {
		logger.Info("Connecting to Redis", map[string]interface{}{"address": cfg.RedisAddr, "db": cfg.RedisDB})
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		PoolSize: cfg.RedisPoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisBus{
		client: client,
		config: cfg,
		nodeID: NewNodeID(),
		logger: logger,
	}, nil
}

// NodeID returns the id used to skip this process's own messages
func (b *RedisBus) NodeID() string {
	return b.nodeID
}

// Publish announces identity on the channel, retrying transient failures
func (b *RedisBus) Publish(ctx context.Context, identity string) error {
	payload, err := encode(b.nodeID, identity)
	if err != nil {
		return err
	}

	err = retry.Do(
		func() error {
			return b.client.Publish(ctx, b.config.Channel, payload).Err()
		},
		retry.Attempts(b.config.PublishAttempts),
		retry.Delay(b.config.PublishRetryWait),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	return nil
}

// Subscribe listens on the channel until ctx is done. The subscription is
// confirmed before returning; failures are retried with exponential backoff
// up to the connect timeout.
func (b *RedisBus) Subscribe(ctx context.Context, fn func(string)) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("invalidation bus is closed")
	}
	b.mu.Unlock()

	var pubsub *redis.PubSub
	operation := func() error {
		ps := b.client.Subscribe(ctx, b.config.Channel)
		if _, err := ps.Receive(ctx); err != nil {
			ps.Close()
			return err
		}
		pubsub = ps
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxElapsedTime = b.config.ConnectTimeout
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.config.Channel, err)
	}

	b.mu.Lock()
	b.pubsubs = append(b.pubsubs, pubsub)
	b.mu.Unlock()

	if b.logger != nil {
		b.logger.Info("Subscribed to session invalidations", map[string]interface{}{"channel": b.config.Channel})
	}

	go b.listen(ctx, pubsub, fn)
	return nil
}

func (b *RedisBus) listen(ctx context.Context, pubsub *redis.PubSub, fn func(string)) {
	defer pubsub.Close()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			dispatch(b.nodeID, []byte(msg.Payload), fn, b.logger)
		}
	}
}

// Close ends all subscriptions and the client
func (b *RedisBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, ps := range b.pubsubs {
		ps.Close()
	}
	b.pubsubs = nil
	return b.client.Close()
}
