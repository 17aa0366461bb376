package sessionuser

import (
	"fmt"
	"strings"
	"time"

	"github.com/nive-cms/userdb/pkg/interfaces"
	"github.com/nive-cms/userdb/pkg/types"
)

// SessionUser is an immutable snapshot of a stored user, built on login and
// reused across requests until invalidated. It holds no connection to the
// store.
type SessionUser struct {
	identity     string
	id           string
	data         Fields
	meta         Fields
	lastLogin    time.Time
	currentLogin time.Time
}

var _ interfaces.AuthenticatedUser = (*SessionUser)(nil)

// NewSessionUser creates a view. The current login is the construction time
// and the last login is read from the lastlogin data field if present.
func NewSessionUser(identity, id string, data, meta Fields) *SessionUser {
	return newSessionUserAt(identity, id, data, meta, time.Now())
}

func newSessionUserAt(identity, id string, data, meta Fields, now time.Time) *SessionUser {
	u := &SessionUser{
		identity:     identity,
		id:           id,
		data:         data,
		meta:         meta,
		currentLogin: now,
	}
	if t, ok := data.Time("lastlogin"); ok {
		u.lastLogin = t
	}
	return u
}

// WithLastLogin returns a copy reporting t as the previous login
func (u *SessionUser) WithLastLogin(t time.Time) *SessionUser {
	c := *u
	c.lastLogin = t
	return &c
}

// Identity returns the session identity
func (u *SessionUser) Identity() string { return u.identity }

// ID returns the store id of the underlying record
func (u *SessionUser) ID() string { return u.id }

// Data returns the cached data fields
func (u *SessionUser) Data() Fields { return u.data }

// Meta returns the cached meta fields
func (u *SessionUser) Meta() Fields { return u.meta }

// LastLogin returns the previous login time, zero if unknown
func (u *SessionUser) LastLogin() time.Time { return u.lastLogin }

// CurrentLogin returns when this view was materialized
func (u *SessionUser) CurrentLogin() time.Time { return u.currentLogin }

// Groups returns the global groups of the user
func (u *SessionUser) Groups() []string {
	return u.data.Strings("groups")
}

// InGroups reports whether the user is member of at least one of groups
func (u *SessionUser) InGroups(groups ...string) bool {
	member := u.data.Strings("groups")
	for _, g := range groups {
		for _, m := range member {
			if g == m {
				return true
			}
		}
	}
	return false
}

// DisplayName joins surname and lastname, falling back to name
func (u *SessionUser) DisplayName() string {
	surname := u.data.String("surname")
	lastname := u.data.String("lastname")
	if surname != "" || lastname != "" {
		return strings.Join([]string{surname, lastname}, " ")
	}
	return u.data.String("name")
}

// Title returns the cached record title
func (u *SessionUser) Title() string {
	return u.meta.String("title")
}

// State returns the cached activation state. Views without a pool_state
// meta field count as active.
func (u *SessionUser) State() types.UserState {
	v, ok := u.meta.Get(StateField)
	if !ok || v == nil {
		return types.UserStateActive
	}
	switch s := v.(type) {
	case types.UserState:
		return s
	case int:
		return types.UserState(s)
	case int64:
		return types.UserState(s)
	case bool:
		if s {
			return types.UserStateActive
		}
		return types.UserStateInactive
	}
	return types.UserStateInactive
}

func (u *SessionUser) String() string {
	return u.identity
}

// GoString describes the view for debugging
func (u *SessionUser) GoString() string {
	return fmt.Sprintf("SessionUser{identity=%q id=%q data=%s meta=%s}",
		u.identity, u.id, u.data.describe(), u.meta.describe())
}
