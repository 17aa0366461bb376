package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type principalUser struct {
	identity string
	groups   []string
}

func (u principalUser) Identity() string    { return u.identity }
func (u principalUser) ID() string          { return u.identity }
func (u principalUser) Groups() []string    { return u.groups }
func (u principalUser) DisplayName() string { return u.identity }
func (u principalUser) String() string      { return u.identity }
func (u principalUser) InGroups(groups ...string) bool {
	for _, g := range groups {
		for _, m := range u.groups {
			if g == m {
				return true
			}
		}
	}
	return false
}

func TestACL_Permits(t *testing.T) {
	acl := DefaultACL()

	member := principalUser{identity: "alice"}
	userAdmin := principalUser{identity: "bob", groups: []string{GroupUserAdmin}}
	admin := principalUser{identity: "root", groups: []string{GroupAdmin}}

	tests := []struct {
		name       string
		user       *principalUser
		permission string
		expected   bool
	}{
		{"anonymous view", nil, PermView, true},
		{"anonymous signup", nil, PermSignup, false},
		{"anonymous update", nil, PermUpdateUser, false},
		{"member update", &member, PermUpdateUser, true},
		{"member remove", &member, PermRemoveUser, false},
		{"user admin signup", &userAdmin, PermSignup, true},
		{"user admin manage", &userAdmin, PermManageUsers, true},
		{"user admin other", &userAdmin, "configure", false},
		{"admin anything", &admin, "configure", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.user == nil {
				assert.Equal(t, tt.expected, acl.Permits(nil, tt.permission))
				return
			}
			assert.Equal(t, tt.expected, acl.Permits(*tt.user, tt.permission))
		})
	}
}

func TestACL_FirstMatchWins(t *testing.T) {
	acl := ACL{
		{Deny, "group:blocked", AllPermissions},
		{Allow, Authenticated, PermView},
	}
	blocked := principalUser{identity: "eve", groups: []string{"group:blocked"}}
	assert.False(t, acl.Permits(blocked, PermView))
	assert.True(t, acl.Permits(principalUser{identity: "alice"}, PermView))
	assert.False(t, acl.Permits(nil, PermView), "no entry matches")
}

func TestPrincipals(t *testing.T) {
	assert.Equal(t, []string{Everyone}, Principals(nil))
	assert.Equal(t,
		[]string{Everyone, Authenticated, "alice", "group:a"},
		Principals(principalUser{identity: "alice", groups: []string{"group:a"}}))
}

func TestRoot_Groupfinder(t *testing.T) {
	db, _ := setupTestUserDB(t, nil)
	defer teardownTestUserDB(t, db)

	reqCtx := WithRequestCache(context.Background())

	groups, ok, err := db.Root().Groupfinder(reqCtx, "alice")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, groups)

	addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{Groups: []string{GroupUserAdmin}})

	_, ok, err = db.Root().Groupfinder(reqCtx, "alice")
	require.NoError(t, err)
	assert.False(t, ok, "the request memo still holds the first answer")

	groups, ok, err = db.Root().Groupfinder(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{GroupUserAdmin}, groups)
}

func TestUserDB_Permits(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestUserDB(t, nil)
	defer teardownTestUserDB(t, db)

	addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{})
	addTestUser(t, db, "bobby", "bobby@example.com", AddUserOptions{Groups: []string{GroupUserAdmin}})

	ok, err := db.Permits(ctx, "", PermView)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.Permits(ctx, "alice", PermUpdateUser)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.Permits(ctx, "alice", PermManageUsers)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = db.Permits(ctx, "bobby", PermManageUsers)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.Permits(ctx, "ghost", PermUpdateUser)
	require.NoError(t, err)
	assert.False(t, ok, "unknown identities are anonymous")
}
