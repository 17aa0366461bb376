package users

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nive-cms/userdb/pkg/interfaces"
	"github.com/nive-cms/userdb/pkg/types"
)

// Group ids known to the default ACL
const (
	GroupUserAdmin = "group:useradmin"
	GroupAdmin     = "group:admin"
)

// User represents a stored user account
type User struct {
	UserID       string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name         string          `gorm:"uniqueIndex;not null" json:"name"`
	Email        string          `gorm:"index" json:"email,omitempty"`
	Password     string          `gorm:"not null" json:"-"`
	GroupList    []string        `gorm:"column:user_groups;serializer:json" json:"groups"`
	Notify       bool            `gorm:"not null" json:"notify"`
	Surname      string          `json:"surname,omitempty"`
	Lastname     string          `json:"lastname,omitempty"`
	Organisation string          `json:"organisation,omitempty"`
	LastLogin    *time.Time      `json:"lastlogin,omitempty"`
	Token        string          `gorm:"index" json:"-"`
	TempCache    string          `json:"-"`
	Title        string          `json:"title"`
	State        types.UserState `gorm:"not null;default:0" json:"pool_state"`
	CreatedAt    time.Time       `gorm:"not null" json:"create"`
	UpdatedAt    time.Time       `gorm:"not null" json:"change"`
	CreatedBy    string          `json:"createdby,omitempty"`

	// identityField is set by the root that loaded the user
	identityField string
	// plainPassword is hashed on the next commit
	plainPassword string
	// loadedIdentity is the identity the user was loaded or last committed with
	loadedIdentity string
}

var (
	_ interfaces.UserRecord        = (*User)(nil)
	_ interfaces.AuthenticatedUser = (*User)(nil)
)

// BeforeCreate hook for User model
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == "" {
		u.UserID = uuid.New().String()
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate hook for User model
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}

// Identity returns the value of the configured identity field, falling back
// to the id
func (u *User) Identity() string {
	if u.identityField == "email" {
		if u.Email != "" {
			return u.Email
		}
	} else if u.Name != "" {
		return u.Name
	}
	return u.UserID
}

// ID returns the record id
func (u *User) ID() string { return u.UserID }

// InternalID returns the record id
func (u *User) InternalID() string { return u.UserID }

// Groups returns the global groups of the user
func (u *User) Groups() []string {
	return append([]string(nil), u.GroupList...)
}

// InGroups reports whether the user is member of at least one of groups
func (u *User) InGroups(groups ...string) bool {
	for _, g := range groups {
		for _, m := range u.GroupList {
			if g == m {
				return true
			}
		}
	}
	return false
}

// DisplayName joins surname and lastname, falling back to name
func (u *User) DisplayName() string {
	if u.Surname != "" || u.Lastname != "" {
		return strings.Join([]string{u.Surname, u.Lastname}, " ")
	}
	return u.Name
}

func (u *User) String() string {
	return u.Identity()
}

// IsActive reports whether the account may log in
func (u *User) IsActive() bool {
	return u.State.IsActive()
}

// SetPassword stores a plain text password to be hashed on commit
func (u *User) SetPassword(password string) {
	u.plainPassword = password
}

// DataField returns a data attribute by its field name
func (u *User) DataField(name string) (interface{}, bool) {
	switch name {
	case "name":
		return u.Name, true
	case "email":
		return u.Email, true
	case "password":
		return u.Password, true
	case "groups":
		return u.Groups(), true
	case "notify":
		return u.Notify, true
	case "surname":
		return u.Surname, true
	case "lastname":
		return u.Lastname, true
	case "organisation":
		return u.Organisation, true
	case "lastlogin":
		if u.LastLogin == nil {
			return nil, false
		}
		return *u.LastLogin, true
	case "token":
		return u.Token, true
	case "tempcache":
		return u.TempCache, true
	}
	return nil, false
}

// MetaField returns a record metadata attribute by its field name
func (u *User) MetaField(name string) (interface{}, bool) {
	switch name {
	case "id":
		return u.UserID, true
	case "title":
		return u.Title, true
	case "pool_state":
		return u.State, true
	case "create":
		return u.CreatedAt, true
	case "change":
		return u.UpdatedAt, true
	case "createdby":
		return u.CreatedBy, true
	}
	return nil, false
}

// UserInfo is the listing projection of a user
type UserInfo struct {
	ID        string     `json:"id"`
	Identity  string     `json:"identity"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Title     string     `json:"title"`
	Groups    []string   `json:"groups"`
	LastLogin *time.Time `json:"lastlogin,omitempty"`
}

func (u *User) info() UserInfo {
	return UserInfo{
		ID:        u.UserID,
		Identity:  u.Identity(),
		Name:      u.Name,
		Email:     u.Email,
		Title:     u.Title,
		Groups:    u.Groups(),
		LastLogin: u.LastLogin,
	}
}

// AuditLog represents an audit log entry for account actions
type AuditLog struct {
	LogID     string    `gorm:"primaryKey;type:varchar(36)" json:"log_id"`
	UserID    string    `gorm:"type:varchar(36);index" json:"user_id,omitempty"`
	Action    string    `gorm:"not null" json:"action"`
	Details   string    `gorm:"type:text" json:"details,omitempty"`
	Success   bool      `gorm:"not null" json:"success"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// BeforeCreate hook for AuditLog model
func (al *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if al.LogID == "" {
		al.LogID = uuid.New().String()
	}
	al.CreatedAt = time.Now()
	return nil
}
