package users

import (
	"crypto/subtle"

	"github.com/nive-cms/userdb/pkg/interfaces"
)

// AdminUser is the configuration admin. It has no database row and cannot
// be deleted.
type AdminUser struct {
	name     string
	email    string
	identity string
	password string
}

var _ interfaces.AuthenticatedUser = (*AdminUser)(nil)

func newAdminUser(cfg *AdminConfig, identityField string) *AdminUser {
	identity := cfg.Name
	if identityField == "email" && cfg.Email != "" {
		identity = cfg.Email
	}
	return &AdminUser{
		name:     cfg.Name,
		email:    cfg.Email,
		identity: identity,
		password: cfg.Password,
	}
}

// Identity returns the configured identity
func (a *AdminUser) Identity() string { return a.identity }

// ID returns the identity; the admin has no store id
func (a *AdminUser) ID() string { return a.identity }

// Name returns the configured name
func (a *AdminUser) Name() string { return a.name }

// Email returns the configured email
func (a *AdminUser) Email() string { return a.email }

// Groups returns the admin group
func (a *AdminUser) Groups() []string { return []string{GroupAdmin} }

// InGroups reports whether groups contains the admin group
func (a *AdminUser) InGroups(groups ...string) bool {
	for _, g := range groups {
		if g == GroupAdmin {
			return true
		}
	}
	return false
}

// DisplayName returns the configured name
func (a *AdminUser) DisplayName() string { return a.name }

func (a *AdminUser) String() string { return a.identity }

// Authenticate compares password with the configured one
func (a *AdminUser) Authenticate(password string) bool {
	return subtle.ConstantTimeCompare([]byte(a.password), []byte(password)) == 1
}
