package users

import (
	"context"
	"sync"

	"github.com/nive-cms/userdb/pkg/interfaces"
	"github.com/nive-cms/userdb/pkg/types"
)

// Action is the effect of a matching ACE
type Action int

const (
	Allow Action = iota
	Deny
)

func (a Action) String() string {
	if a == Allow {
		return "allow"
	}
	return "deny"
}

// Special principals and permissions
const (
	Everyone       = "system.Everyone"
	Authenticated  = "system.Authenticated"
	AllPermissions = "*"
)

// Permission names used by the default ACL
const (
	PermView        = "view"
	PermUpdateUser  = "updateuser"
	PermContactUser = "contactuser"
	PermRemoveUser  = "removeuser"
	PermSignup      = "signup"
	PermManageUsers = "manage users"
)

// ACE is one access control entry
type ACE struct {
	Action     Action `json:"action" yaml:"action"`
	Principal  string `json:"principal" yaml:"principal"`
	Permission string `json:"permission" yaml:"permission"`
}

// ACL is evaluated top down; the first entry matching a principal of the
// user and the permission decides
type ACL []ACE

// DefaultACL returns the stock user database ACL. Signup is restricted to
// user admins.
func DefaultACL() ACL {
	return ACL{
		{Allow, Everyone, PermView},
		{Allow, Authenticated, PermUpdateUser},
		{Allow, GroupUserAdmin, PermContactUser},
		{Allow, GroupUserAdmin, PermRemoveUser},
		{Allow, GroupUserAdmin, PermSignup},
		{Allow, GroupUserAdmin, PermManageUsers},
		{Allow, GroupAdmin, AllPermissions},
		{Deny, Everyone, AllPermissions},
	}
}

// GroupInfo describes a known group
type GroupInfo struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// DefaultGroups returns the groups referenced by DefaultACL
func DefaultGroups() []GroupInfo {
	return []GroupInfo{
		{ID: GroupUserAdmin, Name: GroupUserAdmin},
		{ID: GroupAdmin, Name: GroupAdmin},
	}
}

// Principals returns the principals of user: Everyone, and for a non nil
// user Authenticated, the identity and its groups
func Principals(user interfaces.AuthenticatedUser) []string {
	principals := []string{Everyone}
	if user == nil {
		return principals
	}
	principals = append(principals, Authenticated, user.Identity())
	return append(principals, user.Groups()...)
}

// Permits reports whether user holds permission. A nil user is anonymous.
func (acl ACL) Permits(user interfaces.AuthenticatedUser, permission string) bool {
	return acl.permits(Principals(user), permission)
}

func (acl ACL) permits(principals []string, permission string) bool {
	for _, ace := range acl {
		if ace.Permission != permission && ace.Permission != AllPermissions {
			continue
		}
		for _, p := range principals {
			if p == ace.Principal {
				return ace.Action == Allow
			}
		}
	}
	return false
}

// requestCache memoizes resolved users for the lifetime of a request
type requestCache struct {
	mu    sync.Mutex
	users map[string]interfaces.AuthenticatedUser
}

// WithRequestCache returns a context carrying a per-request user memo used
// by Groupfinder
func WithRequestCache(ctx context.Context) context.Context {
	return context.WithValue(ctx, types.ContextKeyRequestCache, &requestCache{
		users: make(map[string]interfaces.AuthenticatedUser),
	})
}

func requestCacheFrom(ctx context.Context) *requestCache {
	rc, _ := ctx.Value(types.ContextKeyRequestCache).(*requestCache)
	return rc
}

// Groupfinder returns the groups of identity, or nil with ok false when the
// user does not exist. Within a request context the user is resolved once.
func (r *Root) Groupfinder(ctx context.Context, identity string) ([]string, bool, error) {
	rc := requestCacheFrom(ctx)
	if rc != nil {
		rc.mu.Lock()
		user, hit := rc.users[identity]
		rc.mu.Unlock()
		if hit {
			if user == nil {
				return nil, false, nil
			}
			return user.Groups(), true, nil
		}
	}

	user, err := r.GetUser(ctx, identity, true)
	if err != nil {
		return nil, false, err
	}
	if rc != nil {
		rc.mu.Lock()
		rc.users[identity] = user
		rc.mu.Unlock()
	}
	if user == nil {
		return nil, false, nil
	}
	return user.Groups(), true, nil
}
