package sessionuser

import (
	"context"
	"fmt"
	"sync"

	"github.com/nive-cms/userdb/pkg/interfaces"
)

// Module is an activated session cache: one cache, one listener, and the
// background work that keeps them current
type Module struct {
	cfg      Config
	cache    *Cache[*SessionUser]
	listener *Listener
	bus      interfaces.InvalidationBus
	logger   interfaces.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// ActivateOption configures Activate
type ActivateOption func(*activateOptions)

type activateOptions struct {
	bus          interfaces.InvalidationBus
	logger       interfaces.Logger
	cacheOptions []Option
	isMeta       func(string) bool
}

// WithInvalidationBus shares invalidations with other processes
func WithInvalidationBus(bus interfaces.InvalidationBus) ActivateOption {
	return func(o *activateOptions) {
		o.bus = bus
	}
}

// WithModuleLogger sets the module logger, also used by the cache
func WithModuleLogger(l interfaces.Logger) ActivateOption {
	return func(o *activateOptions) {
		o.logger = l
	}
}

// WithCacheOptions passes options to the cache constructor
func WithCacheOptions(opts ...Option) ActivateOption {
	return func(o *activateOptions) {
		o.cacheOptions = append(o.cacheOptions, opts...)
	}
}

// WithMetaFields sets how configured field names are split into meta and
// data fields
func WithMetaFields(isMeta func(string) bool) ActivateOption {
	return func(o *activateOptions) {
		o.isMeta = isMeta
	}
}

// Activate creates the shared cache, installs it on app and attaches the
// lifecycle hooks to every store and record type app knows about. Hooks
// already attached under HookName are left alone.
func Activate(ctx context.Context, app Application, cfg Config, opts ...ActivateOption) (*Module, error) {
	if app == nil {
		return nil, fmt.Errorf("application is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session user config: %w", err)
	}

	var o activateOptions
	for _, opt := range opts {
		opt(&o)
	}

	cacheOpts := o.cacheOptions
	if o.logger != nil {
		cacheOpts = append([]Option{WithLogger(o.logger)}, cacheOpts...)
	}
	cache := NewCache[*SessionUser](cfg, cacheOpts...)

	factory := &Factory{Fields: cfg.Fields, IsMeta: o.isMeta, now: cache.now}
	listener := NewListener(cache, factory, o.bus, o.logger)

	app.SetUserCache(cache)

	stores, records := 0, 0
	for _, s := range app.Stores() {
		if s.AttachRootHooks(HookName, listener) {
			stores++
		}
	}
	for _, r := range app.RecordTypes() {
		if r.AttachRecordHooks(HookName, listener) {
			records++
		}
	}

	mctx, cancel := context.WithCancel(ctx)
	m := &Module{
		cfg:      cfg,
		cache:    cache,
		listener: listener,
		bus:      o.bus,
		logger:   o.logger,
		ctx:      mctx,
		cancel:   cancel,
	}

	if o.bus != nil {
		if err := o.bus.Subscribe(mctx, listener.onRemoteInvalidate); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to subscribe to invalidations: %w", err)
		}
	}

	if m.logger != nil {
		m.logger.Info("Session user cache activated", map[string]interface{}{
			"ttl":          cfg.TTL.String(),
			"stores":       stores,
			"record_types": records,
			"bus":          o.bus != nil,
		})
	}
	return m, nil
}

// Cache returns the shared cache
func (m *Module) Cache() *Cache[*SessionUser] {
	return m.cache
}

// Listener returns the hook implementation
func (m *Module) Listener() *Listener {
	return m.listener
}

// Run purges expired entries until ctx is done or the module shuts down
func (m *Module) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-m.ctx.Done():
			cancel()
		case <-runCtx.Done():
		}
	}()
	m.cache.RunPurger(runCtx, m.cfg.PurgeInterval)
	return ctx.Err()
}

// Shutdown stops Run and the bus subscription, closes the bus and empties
// the cache
func (m *Module) Shutdown() error {
	var err error
	m.once.Do(func() {
		m.cancel()
		if m.bus != nil {
			if cerr := m.bus.Close(); cerr != nil {
				err = fmt.Errorf("failed to close invalidation bus: %w", cerr)
			}
		}
		m.cache.Clear()
	})
	return err
}
