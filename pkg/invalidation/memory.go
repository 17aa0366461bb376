package invalidation

import (
	"context"
	"fmt"
	"sync"

	"github.com/nive-cms/userdb/pkg/interfaces"
)

// Hub is an in-process broker connecting MemoryBus instances
type Hub struct {
	mu    sync.RWMutex
	buses map[*MemoryBus]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{buses: make(map[*MemoryBus]struct{})}
}

// MemoryBus delivers invalidations to the other buses of its hub. It serves
// single process deployments with several user databases and tests.
type MemoryBus struct {
	hub    *Hub
	nodeID string
	logger interfaces.Logger

	mu       sync.RWMutex
	handlers []func(string)
	closed   bool
}

var _ interfaces.InvalidationBus = (*MemoryBus)(nil)

// NewMemoryBus joins hub
func NewMemoryBus(hub *Hub, logger interfaces.Logger) *MemoryBus {
	b := &MemoryBus{hub: hub, nodeID: NewNodeID(), logger: logger}
	hub.mu.Lock()
	hub.buses[b] = struct{}{}
	hub.mu.Unlock()
	return b
}

// Publish hands identity to every other bus on the hub
func (b *MemoryBus) Publish(ctx context.Context, identity string) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return fmt.Errorf("invalidation bus is closed")
	}

	payload, err := encode(b.nodeID, identity)
	if err != nil {
		return err
	}

	b.hub.mu.RLock()
	peers := make([]*MemoryBus, 0, len(b.hub.buses))
	for peer := range b.hub.buses {
		peers = append(peers, peer)
	}
	b.hub.mu.RUnlock()

	for _, peer := range peers {
		peer.deliver(payload)
	}
	return nil
}

// Subscribe registers fn until ctx is done or the bus is closed
func (b *MemoryBus) Subscribe(ctx context.Context, fn func(string)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("invalidation bus is closed")
	}
	idx := len(b.handlers)
	b.handlers = append(b.handlers, fn)

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if idx < len(b.handlers) {
			b.handlers[idx] = nil
		}
		b.mu.Unlock()
	}()
	return nil
}

// Close leaves the hub
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.handlers = nil
	b.mu.Unlock()

	b.hub.mu.Lock()
	delete(b.hub.buses, b)
	b.hub.mu.Unlock()
	return nil
}

func (b *MemoryBus) deliver(payload []byte) {
	b.mu.RLock()
	handlers := make([]func(string), len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, fn := range handlers {
		if fn != nil {
			dispatch(b.nodeID, payload, fn, b.logger)
		}
	}
}
