package sessionuser

import (
	"context"
	"time"

	"github.com/nive-cms/userdb/pkg/interfaces"
	"github.com/nive-cms/userdb/pkg/types"
)

// Listener connects a cache to store and record lifecycle events
type Listener struct {
	cache   *Cache[*SessionUser]
	factory *Factory
	bus     interfaces.InvalidationBus
	logger  interfaces.Logger
}

var (
	_ RootHooks   = (*Listener)(nil)
	_ RecordHooks = (*Listener)(nil)
)

// NewListener creates a listener. bus may be nil.
func NewListener(cache *Cache[*SessionUser], factory *Factory, bus interfaces.InvalidationBus, logger interfaces.Logger) *Listener {
	if factory == nil {
		factory = NewFactory(nil)
	}
	return &Listener{
		cache:   cache,
		factory: factory,
		bus:     bus,
		logger:  logger,
	}
}

// OnLookup serves cached views. Inactive views are not returned for
// active-only lookups so the store can decide.
func (l *Listener) OnLookup(ctx context.Context, identity string, activeOnly bool) (interfaces.AuthenticatedUser, bool) {
	if identity == "" {
		return nil, false
	}
	user, ok := l.cache.Get(identity)
	if !ok || user == nil {
		return nil, false
	}
	if activeOnly && !user.State().IsActive() {
		return nil, false
	}
	return user, true
}

// OnResolved caches a fresh view of record
func (l *Listener) OnResolved(ctx context.Context, record interfaces.UserRecord, lastLogin time.Time) {
	if record == nil || record.Identity() == "" {
		return
	}
	view := l.factory.Build(record.Identity(), record)
	if !lastLogin.IsZero() {
		view = view.WithLastLogin(lastLogin)
	}
	l.cache.Add(record.Identity(), view)
}

// OnInvalidate drops the cached view and, for local changes, tells other
// processes to do the same
func (l *Listener) OnInvalidate(ctx context.Context, identity string, reason types.InvalidateReason) {
	if identity == "" {
		return
	}
	l.cache.Invalidate(identity)

	if l.bus == nil || reason == types.InvalidateRemote {
		return
	}
	if err := l.bus.Publish(ctx, identity); err != nil && l.logger != nil {
		l.logger.Warn("Failed to publish session user invalidation", map[string]interface{}{
			"identity": identity,
			"reason":   string(reason),
			"error":    err.Error(),
		})
	}
}

func (l *Listener) onRemoteInvalidate(identity string) {
	l.OnInvalidate(context.Background(), identity, types.InvalidateRemote)
}
