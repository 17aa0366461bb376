package sessionuser

import (
	"context"
	"time"

	"github.com/nive-cms/userdb/pkg/interfaces"
	"github.com/nive-cms/userdb/pkg/types"
)

// HookName is the name the session cache attaches its hooks under
const HookName = "sessionuser"

// RootHooks are called by a user store around identity resolution
type RootHooks interface {
	// OnLookup runs before the store queries itself. Returning true
	// short-circuits the lookup with the returned user.
	OnLookup(ctx context.Context, identity string, activeOnly bool) (interfaces.AuthenticatedUser, bool)

	// OnResolved runs after the store resolved record. lastLogin is the
	// login time preceding the current one, zero if unknown.
	OnResolved(ctx context.Context, record interfaces.UserRecord, lastLogin time.Time)
}

// RecordHooks are called by a stored user whenever cached views of it
// become stale
type RecordHooks interface {
	OnInvalidate(ctx context.Context, identity string, reason types.InvalidateReason)
}

// HookableStore is a user store accepting root hooks
type HookableStore interface {
	// AttachRootHooks registers h under name and returns false if a hook
	// with that name is already attached
	AttachRootHooks(name string, h RootHooks) bool
}

// HookableRecordType is a user record type accepting record hooks
type HookableRecordType interface {
	// AttachRecordHooks registers h under name and returns false if a hook
	// with that name is already attached
	AttachRecordHooks(name string, h RecordHooks) bool
}

// Application is the process wide registry the module is activated on
type Application interface {
	Stores() []HookableStore
	RecordTypes() []HookableRecordType
	SetUserCache(cache *Cache[*SessionUser])
}
