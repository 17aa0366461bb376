package users

import (
	"context"
	"sync"

	"github.com/nive-cms/userdb/pkg/sessionuser"
	"github.com/nive-cms/userdb/pkg/types"
)

// hookSet keeps named hooks in attachment order
type hookSet[H any] struct {
	mu    sync.RWMutex
	names map[string]struct{}
	hooks []H
}

func (s *hookSet[H]) attach(name string, h H) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.names == nil {
		s.names = make(map[string]struct{})
	}
	if _, ok := s.names[name]; ok {
		return false
	}
	s.names[name] = struct{}{}
	s.hooks = append(s.hooks, h)
	return true
}

func (s *hookSet[H]) snapshot() []H {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]H(nil), s.hooks...)
}

func (s *hookSet[H]) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.hooks)
}

// UserType is the record type of stored users. Record hooks attached here
// are called for every user record.
type UserType struct {
	hooks hookSet[sessionuser.RecordHooks]
}

var _ sessionuser.HookableRecordType = (*UserType)(nil)

// NewUserType creates a user type without hooks
func NewUserType() *UserType {
	return &UserType{}
}

// AttachRecordHooks registers h under name
func (t *UserType) AttachRecordHooks(name string, h sessionuser.RecordHooks) bool {
	return t.hooks.attach(name, h)
}

// HookCount returns the number of attached hooks
func (t *UserType) HookCount() int {
	return t.hooks.len()
}

func (t *UserType) invalidate(ctx context.Context, identity string, reason types.InvalidateReason) {
	if identity == "" {
		return
	}
	for _, h := range t.hooks.snapshot() {
		h.OnInvalidate(ctx, identity, reason)
	}
}

// invalidateUser notifies hooks for the user's current identity and, when it
// changed since loading, for the previous one
func (t *UserType) invalidateUser(ctx context.Context, u *User, reason types.InvalidateReason) {
	current := u.Identity()
	if u.loadedIdentity != "" && u.loadedIdentity != current {
		t.invalidate(ctx, u.loadedIdentity, reason)
	}
	t.invalidate(ctx, current, reason)
}
