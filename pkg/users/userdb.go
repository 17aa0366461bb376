package users

import (
	"context"
	"fmt"
	"sync"

	"github.com/nive-cms/userdb/pkg/errors"
	"github.com/nive-cms/userdb/pkg/interfaces"
	"github.com/nive-cms/userdb/pkg/sessionuser"
)

// UserDB is the user database application: storage, the user root, the user
// record type and the process wide session user cache
type UserDB struct {
	config   *Config
	repo     *Repository
	root     *Root
	userType *UserType
	tokens   *TokenService
	acl      ACL
	module   *sessionuser.Module
	logger   interfaces.Logger
	metrics  interfaces.Metrics

	mu        sync.RWMutex
	userCache *sessionuser.Cache[*sessionuser.SessionUser]
	closed    bool
}

var _ sessionuser.Application = (*UserDB)(nil)

// Option configures a UserDB
type Option func(*options)

type options struct {
	session     sessionuser.Config
	bus         interfaces.InvalidationBus
	mailer      interfaces.Mailer
	templates   *MailTemplates
	acl         ACL
	cacheOpts   []sessionuser.Option
	rootOptions []RootOption
}

// WithSessionConfig configures the session user cache
func WithSessionConfig(cfg sessionuser.Config) Option {
	return func(o *options) { o.session = cfg }
}

// WithInvalidationBus shares cache invalidations with other processes
func WithInvalidationBus(bus interfaces.InvalidationBus) Option {
	return func(o *options) { o.bus = bus }
}

// WithMailTransport sets the mailer used by account workflows
func WithMailTransport(m interfaces.Mailer) Option {
	return func(o *options) { o.mailer = m }
}

// WithTemplates replaces the default mail templates
func WithTemplates(t MailTemplates) Option {
	return func(o *options) { o.templates = &t }
}

// WithACL replaces DefaultACL
func WithACL(acl ACL) Option {
	return func(o *options) { o.acl = acl }
}

// WithSessionCacheOptions passes options to the session cache
func WithSessionCacheOptions(opts ...sessionuser.Option) Option {
	return func(o *options) { o.cacheOpts = append(o.cacheOpts, opts...) }
}

// WithRootOptions passes options to the root
func WithRootOptions(opts ...RootOption) Option {
	return func(o *options) { o.rootOptions = append(o.rootOptions, opts...) }
}

// NewUserDB opens the database and activates the session user cache
func NewUserDB(ctx context.Context, config *Config, logger interfaces.Logger, metrics interfaces.Metrics, opts ...Option) (*UserDB, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid user database config: %w", err)
	}

	o := options{session: sessionuser.DefaultConfig(), acl: DefaultACL()}
	for _, opt := range opts {
		opt(&o)
	}

	repo, err := NewRepository(config)
	if err != nil {
		return nil, errors.NewDatabaseErrorWithCause("failed to open user database", err)
	}

	userType := NewUserType()
	rootOpts := []RootOption{WithUserType(userType)}
	if o.mailer != nil {
		rootOpts = append(rootOpts, WithMailer(o.mailer))
	}
	if o.templates != nil {
		rootOpts = append(rootOpts, WithMailTemplates(*o.templates))
	}
	rootOpts = append(rootOpts, o.rootOptions...)

	db := &UserDB{
		config:   config,
		repo:     repo,
		root:     NewRoot(repo, config, logger, metrics, rootOpts...),
		userType: userType,
		tokens:   NewTokenService(config),
		acl:      o.acl,
		logger:   logger,
		metrics:  metrics,
	}

	cacheOpts := append([]sessionuser.Option{
		sessionuser.WithMetrics(metrics),
		sessionuser.WithName("sessionuser"),
	}, o.cacheOpts...)

	module, err := sessionuser.Activate(ctx, db, o.session,
		sessionuser.WithInvalidationBus(o.bus),
		sessionuser.WithModuleLogger(logger),
		sessionuser.WithCacheOptions(cacheOpts...),
	)
	if err != nil {
		repo.Close()
		return nil, err
	}
	db.module = module

	logger.Info("User database opened", map[string]interface{}{
		"database":       config.DatabasePath,
		"identity_field": config.IdentityField,
	})
	return db, nil
}

// Stores returns the hookable user stores
func (db *UserDB) Stores() []sessionuser.HookableStore {
	return []sessionuser.HookableStore{db.root}
}

// RecordTypes returns the hookable user record types
func (db *UserDB) RecordTypes() []sessionuser.HookableRecordType {
	return []sessionuser.HookableRecordType{db.userType}
}

// SetUserCache installs the process wide session user cache
func (db *UserDB) SetUserCache(cache *sessionuser.Cache[*sessionuser.SessionUser]) {
	db.mu.Lock()
	db.userCache = cache
	db.mu.Unlock()
}

// UserCache returns the installed session user cache
func (db *UserDB) UserCache() *sessionuser.Cache[*sessionuser.SessionUser] {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.userCache
}

// Root returns the user root
func (db *UserDB) Root() *Root { return db.root }

// Module returns the activated session cache module
func (db *UserDB) Module() *sessionuser.Module { return db.module }

// Tokens returns the identity token service
func (db *UserDB) Tokens() *TokenService { return db.tokens }

// ACL returns the access control list
func (db *UserDB) ACL() ACL { return db.acl }

// Authenticate resolves the identity carried by a signed token. Tokens of
// accounts that exist but are not active fail with ErrCodeInactive.
func (db *UserDB) Authenticate(ctx context.Context, token string) (interfaces.AuthenticatedUser, error) {
	claims, err := db.tokens.Parse(token)
	if err != nil {
		db.metrics.Counter("userdb_token_auth_total", 1, map[string]string{"result": "invalid"})
		return nil, err
	}
	user, err := db.root.GetUser(ctx, claims.Identity, true)
	if err != nil {
		return nil, err
	}
	if user == nil {
		inactive, err := db.root.LookupUser(ctx, LookupParams{Identity: claims.Identity})
		if err != nil {
			return nil, err
		}
		if inactive != nil {
			db.metrics.Counter("userdb_token_auth_total", 1, map[string]string{"result": "inactive"})
			return nil, errors.NewInactiveUserError(claims.Identity)
		}
		db.metrics.Counter("userdb_token_auth_total", 1, map[string]string{"result": "unknown"})
		return nil, errors.NewUnauthorizedError("unknown user")
	}
	db.metrics.Counter("userdb_token_auth_total", 1, map[string]string{"result": "success"})
	return user, nil
}

// Permits resolves identity and checks permission against the ACL. An empty
// identity is anonymous.
func (db *UserDB) Permits(ctx context.Context, identity, permission string) (bool, error) {
	if identity == "" {
		return db.acl.Permits(nil, permission), nil
	}
	groups, ok, err := db.root.Groupfinder(ctx, identity)
	if err != nil {
		return false, err
	}
	principals := []string{Everyone}
	if ok {
		principals = append(principals, Authenticated, identity)
		principals = append(principals, groups...)
	}
	return db.acl.permits(principals, permission), nil
}

// HealthCheck pings the database
func (db *UserDB) HealthCheck(ctx context.Context) error {
	return db.repo.HealthCheck(ctx)
}

// Close shuts the session cache module and the database down
func (db *UserDB) Close() error {
	db.mu.Lock()
	if db.closed {
		db.mu.Unlock()
		return nil
	}
	db.closed = true
	db.mu.Unlock()

	var errs []error
	if err := db.module.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if err := db.repo.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to close user database: %v", errs)
	}
	return nil
}
