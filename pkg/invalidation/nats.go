package invalidation

import (
	"context"
	"fmt"
	"sync"

	"github.com/avast/retry-go"
	"github.com/nats-io/nats.go"

	"github.com/nive-cms/userdb/pkg/interfaces"
)

// NATSBus shares invalidations through a core NATS subject
type NATSBus struct {
	mu     sync.Mutex
	conn   *nats.Conn
	config Config
	nodeID string
	logger interfaces.Logger
	subs   []*nats.Subscription
	closed bool
}

var _ interfaces.InvalidationBus = (*NATSBus)(nil)

// NewNATSBus connects to NATS
func NewNATSBus(cfg Config, logger interfaces.Logger) (*NATSBus, error) {
	cfg = cfg.withDefaults()
	if cfg.NATSURL == "" {
		return nil, fmt.Errorf("nats url is required")
	}

	b := &NATSBus{config: cfg, nodeID: NewNodeID(), logger: logger}

	opts := []nats.Option{
		nats.Name("userdb-" + b.nodeID),
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil && b.logger != nil {
				b.logger.Warn("NATS disconnected", map[string]interface{}{"error": err.Error()})
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			if b.logger != nil {
				b.logger.Info("NATS reconnected", map[string]interface{}{"url": nc.ConnectedUrl()})
			}
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			if b.logger != nil {
				b.logger.Info("NATS connection closed")
			}
		}),
	}

	conn, err := nats.Connect(cfg.NATSURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	b.conn = conn

	if logger != nil {
		logger.Info("NATS connection established", map[string]interface{}{
			"url":     conn.ConnectedUrl(),
			"subject": cfg.Subject,
		})
	}
	return b, nil
}

// NodeID returns the id used to skip this process's own messages
func (b *NATSBus) NodeID() string {
	return b.nodeID
}

// Publish announces identity on the subject
func (b *NATSBus) Publish(ctx context.Context, identity string) error {
	payload, err := encode(b.nodeID, identity)
	if err != nil {
		return err
	}

	err = retry.Do(
		func() error {
			return b.conn.Publish(b.config.Subject, payload)
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

// Subscribe calls fn for invalidations from other processes until ctx is done
func (b *NATSBus) Subscribe(ctx context.Context, fn func(string)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("invalidation bus is closed")
	}

	sub, err := b.conn.Subscribe(b.config.Subject, func(msg *nats.Msg) {
		dispatch(b.nodeID, msg.Data, fn, b.logger)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.config.Subject, err)
	}
	if err := b.conn.Flush(); err != nil {
		sub.Unsubscribe()
		return fmt.Errorf("failed to confirm subscription: %w", err)
	}
	b.subs = append(b.subs, sub)

	go func() {
		<-ctx.Done()
		if sub.IsValid() {
			sub.Unsubscribe()
		}
	}()
	return nil
}

// Close drains subscriptions and closes the connection
func (b *NATSBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, sub := range b.subs {
		if sub.IsValid() {
			sub.Unsubscribe()
		}
	}
	b.subs = nil
	b.conn.Close()
	return nil
}
