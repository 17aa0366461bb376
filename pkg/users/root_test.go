package users

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nive-cms/userdb/pkg/errors"
	"github.com/nive-cms/userdb/pkg/logger"
	"github.com/nive-cms/userdb/pkg/metrics"
	"github.com/nive-cms/userdb/pkg/sessionuser"
	"github.com/nive-cms/userdb/pkg/types"
)

func testConfig(t *testing.T) *Config {
	config := DefaultConfig()
	config.DatabasePath = filepath.Join(t.TempDir(), "test_users.db")
	config.JWTSecret = "test-secret-key-for-testing-only"
	config.BcryptCost = 4
	config.EnableAuditLogging = false
	return config
}

func setupTestUserDB(t *testing.T, config *Config, opts ...Option) (*UserDB, *MemoryMailer) {
	if config == nil {
		config = testConfig(t)
	}
	mailer := NewMemoryMailer()
	opts = append([]Option{WithMailTransport(mailer)}, opts...)

	db, err := NewUserDB(context.Background(), config, logger.NewTestLogger(), metrics.NewNoOpMetrics(), opts...)
	require.NoError(t, err)
	return db, mailer
}

func teardownTestUserDB(t *testing.T, db *UserDB) {
	err := db.Close()
	assert.NoError(t, err)
}

func addTestUser(t *testing.T, db *UserDB, name, email string, opts AddUserOptions) *User {
	user, err := db.Root().AddUser(context.Background(), AddUserParams{
		Name:     name,
		Email:    email,
		Password: "s3cret-pass",
		Surname:  "Test",
		Lastname: strings.ToUpper(name[:1]) + name[1:],
	}, opts)
	require.NoError(t, err)
	return user
}

func boolPtr(b bool) *bool { return &b }

func TestRoot_AddUser(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an active user", func(t *testing.T) {
		db, _ := setupTestUserDB(t, nil)
		defer teardownTestUserDB(t, db)

		user := addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{})
		assert.NotEmpty(t, user.UserID)
		assert.Equal(t, "alice", user.Identity())
		assert.True(t, user.IsActive())
		assert.Equal(t, "Test Alice", user.Title)
		assert.True(t, strings.HasPrefix(user.Password, "$2"))
		assert.True(t, user.Notify)
		assert.Equal(t, "alice", user.CreatedBy)
	})

	t.Run("rejects duplicate name and email", func(t *testing.T) {
		db, _ := setupTestUserDB(t, nil)
		defer teardownTestUserDB(t, db)

		addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{})

		_, err := db.Root().AddUser(ctx, AddUserParams{Name: "alice", Email: "other@example.com", Password: "s3cret-pass"}, AddUserOptions{})
		assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadyExists))

		_, err = db.Root().AddUser(ctx, AddUserParams{Name: "alice2", Email: "alice@example.com", Password: "s3cret-pass"}, AddUserOptions{})
		assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadyExists))
	})

	t.Run("validates input", func(t *testing.T) {
		db, _ := setupTestUserDB(t, nil)
		defer teardownTestUserDB(t, db)

		_, err := db.Root().AddUser(ctx, AddUserParams{Email: "a@example.com", Password: "s3cret-pass"}, AddUserOptions{})
		assert.True(t, errors.IsCode(err, errors.ErrCodeMissingField))

		_, err = db.Root().AddUser(ctx, AddUserParams{Name: "group:editors", Email: "a@example.com", Password: "s3cret-pass"}, AddUserOptions{})
		assert.True(t, errors.IsCode(err, errors.ErrCodeReservedName))

		_, err = db.Root().AddUser(ctx, AddUserParams{Name: "bob", Email: "a@example.com", Password: "s3cret-pass"}, AddUserOptions{})
		assert.True(t, errors.IsValidation(err))

		_, err = db.Root().AddUser(ctx, AddUserParams{Name: "bobby", Email: "not-an-email", Password: "s3cret-pass"}, AddUserOptions{})
		assert.True(t, errors.IsValidation(err))

		_, err = db.Root().AddUser(ctx, AddUserParams{Name: "bobby", Email: "b@example.com", Password: "aaaaaaa"}, AddUserOptions{})
		assert.True(t, errors.IsCode(err, errors.ErrCodeWeakPassword))
	})

	t.Run("assigns signup groups only", func(t *testing.T) {
		config := testConfig(t)
		config.Signup.Groups = []string{"group:members"}
		db, _ := setupTestUserDB(t, config)
		defer teardownTestUserDB(t, db)

		user := addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{})
		assert.Equal(t, []string{"group:members"}, user.Groups())

		trusted := addTestUser(t, db, "carol", "carol@example.com", AddUserOptions{Groups: []string{GroupUserAdmin, GroupUserAdmin}})
		assert.Equal(t, []string{GroupUserAdmin}, trusted.Groups())
	})

	t.Run("generates name and password", func(t *testing.T) {
		db, mailer := setupTestUserDB(t, nil)
		defer teardownTestUserDB(t, db)

		user, err := db.Root().AddUser(ctx, AddUserParams{Email: "gen@example.com"}, AddUserOptions{
			GenerateName:     boolPtr(true),
			GeneratePassword: boolPtr(true),
			SendMail:         true,
		})
		require.NoError(t, err)
		assert.Len(t, user.Name, generatedNameLength)

		msg, ok := mailer.Last()
		require.True(t, ok)
		assert.Equal(t, "signup", msg.Template)
		assert.Equal(t, []string{"gen@example.com"}, msg.To)
		password, _ := msg.Variables["password"].(string)
		require.NotEmpty(t, password)

		_, err = db.Root().Login(ctx, user.Name, password, false)
		assert.NoError(t, err)
	})

	t.Run("notifies the user admin", func(t *testing.T) {
		config := testConfig(t)
		config.UserAdmin = "admin@example.com"
		db, mailer := setupTestUserDB(t, config)
		defer teardownTestUserDB(t, db)

		addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{NotifyAdmin: true})
		msg, ok := mailer.Last()
		require.True(t, ok)
		assert.Equal(t, "notify", msg.Template)
		assert.Equal(t, []string{"admin@example.com"}, msg.To)
	})

	t.Run("signup mail failure", func(t *testing.T) {
		db, mailer := setupTestUserDB(t, nil)
		defer teardownTestUserDB(t, db)

		smtpDown := stderrors.New("smtp down")
		mailer.FailWith(smtpDown)
		_, err := db.Root().AddUser(ctx, AddUserParams{Name: "alice", Email: "alice@example.com", Password: "s3cret-pass"}, AddUserOptions{SendMail: true})
		assert.True(t, errors.IsType(err, types.ErrorTypeExternal))
		assert.True(t, errors.IsCode(err, errors.ErrCodeUnavailable))
		assert.ErrorIs(t, err, smtpDown)
	})
}

func TestRoot_ActivateByToken(t *testing.T) {
	ctx := context.Background()
	db, mailer := setupTestUserDB(t, nil)
	defer teardownTestUserDB(t, db)

	user := addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{Activate: boolPtr(false), SendMail: true})
	assert.False(t, user.IsActive())

	msg, ok := mailer.Last()
	require.True(t, ok)
	token, _ := msg.Variables["token"].(string)
	require.Equal(t, user.Token, token)

	_, err := db.Root().Login(ctx, "alice", "s3cret-pass", false)
	assert.True(t, errors.IsUnauthorized(err))

	_, err = db.Root().Activate(ctx, "wrong-token")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidToken))

	activated, err := db.Root().Activate(ctx, token)
	require.NoError(t, err)
	assert.True(t, activated.IsActive())
	assert.Empty(t, activated.Token)
	assert.Equal(t, tempCacheFirstRun, activated.TempCache)

	_, err = db.Root().Activate(ctx, token)
	assert.Error(t, err)

	_, err = db.Root().Login(ctx, "alice", "s3cret-pass", false)
	assert.NoError(t, err)
}

func TestRoot_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("records the login and caches the user", func(t *testing.T) {
		first := time.Date(2026, 1, 2, 8, 0, 0, 0, time.UTC)
		second := first.Add(26 * time.Hour)
		now := first
		db, _ := setupTestUserDB(t, nil, WithRootOptions(WithRootClock(func() time.Time { return now })))
		defer teardownTestUserDB(t, db)

		addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{})

		user, err := db.Root().Login(ctx, "alice", "s3cret-pass", false)
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Identity())

		now = second
		_, err = db.Root().Login(ctx, "alice", "s3cret-pass", false)
		require.NoError(t, err)

		view, ok := db.UserCache().Get("alice")
		require.True(t, ok)
		assert.True(t, view.LastLogin().Equal(first), "cached view carries the previous login")

		stored, err := db.Root().FindUser(ctx, LookupParams{Name: "alice"})
		require.NoError(t, err)
		require.NotNil(t, stored.LastLogin)
		assert.True(t, stored.LastLogin.Equal(second))
	})

	t.Run("rejects bad credentials", func(t *testing.T) {
		db, _ := setupTestUserDB(t, nil)
		defer teardownTestUserDB(t, db)

		addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{})

		for _, tc := range []struct{ name, password string }{
			{"alice", "wrong-pass"},
			{"nobody", "s3cret-pass"},
			{"", ""},
		} {
			_, err := db.Root().Login(ctx, tc.name, tc.password, false)
			require.Error(t, err)
			assert.True(t, errors.IsUnauthorized(err))
			assert.Equal(t, "login failed", errors.AsUserDBError(err).Message)
		}
		assert.Equal(t, 0, db.UserCache().Len())
	})

	t.Run("by email", func(t *testing.T) {
		db, _ := setupTestUserDB(t, nil)
		defer teardownTestUserDB(t, db)

		addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{})
		user, err := db.Root().Login(ctx, "alice@example.com", "s3cret-pass", true)
		require.NoError(t, err)
		assert.Equal(t, "alice", user.Identity())
	})

	t.Run("migrates legacy hashes", func(t *testing.T) {
		db, _ := setupTestUserDB(t, nil)
		defer teardownTestUserDB(t, db)

		user := addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{})
		user.Password = LegacySHA224("old-secret")
		require.NoError(t, db.repo.SaveUser(ctx, user))

		_, err := db.Root().Login(ctx, "alice", "old-secret", false)
		require.NoError(t, err)

		stored, err := db.Root().FindUser(ctx, LookupParams{Name: "alice"})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(stored.Password, "$2"))

		_, err = db.Root().Login(ctx, "alice", "old-secret", false)
		assert.NoError(t, err)
	})

	t.Run("configuration admin", func(t *testing.T) {
		config := testConfig(t)
		config.Admin = &AdminConfig{Name: "admin", Email: "admin@example.com", Password: "admin-pass"}
		db, _ := setupTestUserDB(t, config)
		defer teardownTestUserDB(t, db)

		user, err := db.Root().Login(ctx, "admin", "admin-pass", false)
		require.NoError(t, err)
		assert.IsType(t, &AdminUser{}, user)
		assert.True(t, user.InGroups(GroupAdmin))

		_, err = db.Root().Login(ctx, "admin", "wrong", false)
		assert.True(t, errors.IsUnauthorized(err))

		_, err = db.Root().AddUser(ctx, AddUserParams{Name: "admin", Email: "x@example.com", Password: "s3cret-pass"}, AddUserOptions{})
		assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadyExists))

		err = db.Root().DeleteUser(ctx, "admin")
		assert.True(t, errors.IsCode(err, errors.ErrCodeForbidden))
	})
}

func TestRoot_GetUserUsesSessionCache(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestUserDB(t, nil)
	defer teardownTestUserDB(t, db)

	addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{Groups: []string{"group:editors"}})

	user, err := db.Root().GetUser(ctx, "alice", true)
	require.NoError(t, err)
	assert.IsType(t, &User{}, user, "first lookup reads the store")

	user, err = db.Root().GetUser(ctx, "alice", true)
	require.NoError(t, err)
	require.IsType(t, &sessionuser.SessionUser{}, user, "second lookup is served from the cache")
	assert.True(t, user.InGroups("group:editors"))
	assert.Equal(t, "Test Alice", user.DisplayName())

	t.Run("commit invalidates", func(t *testing.T) {
		stored, err := db.Root().FindUser(ctx, LookupParams{Name: "alice"})
		require.NoError(t, err)
		require.NoError(t, db.Root().AddGroup(ctx, stored, GroupUserAdmin))

		_, ok := db.UserCache().Get("alice")
		assert.False(t, ok)

		user, err := db.Root().GetUser(ctx, "alice", true)
		require.NoError(t, err)
		assert.IsType(t, &User{}, user)
		assert.True(t, user.InGroups(GroupUserAdmin))

		view, ok := db.UserCache().Get("alice")
		require.True(t, ok)
		assert.ElementsMatch(t, []string{"group:editors", GroupUserAdmin}, view.Groups())
	})

	t.Run("logout invalidates", func(t *testing.T) {
		_, err := db.Root().GetUser(ctx, "alice", true)
		require.NoError(t, err)
		require.Equal(t, 1, db.UserCache().Len())

		assert.True(t, db.Root().Logout(ctx, "alice"))
		assert.Equal(t, 0, db.UserCache().Len())
		assert.False(t, db.Root().Logout(ctx, "nobody"))
		assert.False(t, db.Root().Logout(ctx, ""))
	})

	t.Run("delete invalidates", func(t *testing.T) {
		_, err := db.Root().GetUser(ctx, "alice", true)
		require.NoError(t, err)

		require.NoError(t, db.Root().DeleteUser(ctx, "alice"))
		assert.Equal(t, 0, db.UserCache().Len())

		user, err := db.Root().GetUser(ctx, "alice", true)
		require.NoError(t, err)
		assert.Nil(t, user)

		err = db.Root().DeleteUser(ctx, "alice")
		assert.True(t, errors.IsNotFound(err))
	})
}

func TestRoot_GetUserInactive(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestUserDB(t, nil)
	defer teardownTestUserDB(t, db)

	addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{Activate: boolPtr(false)})

	user, err := db.Root().GetUser(ctx, "alice", true)
	require.NoError(t, err)
	assert.Nil(t, user)

	user, err = db.Root().GetUser(ctx, "alice", false)
	require.NoError(t, err)
	require.NotNil(t, user)

	// the inactive view is cached but not handed to active-only lookups
	user, err = db.Root().GetUser(ctx, "alice", true)
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestRoot_LookupUser(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestUserDB(t, nil)
	defer teardownTestUserDB(t, db)

	alice := addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{})

	user, err := db.Root().LookupUser(ctx, LookupParams{ID: alice.UserID})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Identity())

	user, err = db.Root().LookupUser(ctx, LookupParams{Name: "alice@example.com"})
	require.NoError(t, err)
	require.NotNil(t, user, "name lookup falls back to email")
	assert.Equal(t, alice.UserID, user.ID())

	user, err = db.Root().LookupUser(ctx, LookupParams{Email: "alice"})
	require.NoError(t, err)
	require.NotNil(t, user, "email lookup falls back to name")

	user, err = db.Root().LookupUser(ctx, LookupParams{Identity: "alice@example.com"})
	require.NoError(t, err)
	assert.Nil(t, user, "identity lookups use the identity field only")

	_, err = db.Root().LookupUser(ctx, LookupParams{})
	assert.True(t, errors.IsValidation(err))

	t.Run("without fallback", func(t *testing.T) {
		config := testConfig(t)
		config.IdentityFallbackAlternative = false
		db, _ := setupTestUserDB(t, config)
		defer teardownTestUserDB(t, db)

		addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{})
		user, err := db.Root().LookupUser(ctx, LookupParams{Name: "alice@example.com"})
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("email identity", func(t *testing.T) {
		config := testConfig(t)
		config.IdentityField = "email"
		db, _ := setupTestUserDB(t, config)
		defer teardownTestUserDB(t, db)

		addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{})
		user, err := db.Root().GetUser(ctx, "alice@example.com", true)
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "alice@example.com", user.Identity())

		_, ok := db.UserCache().Get("alice@example.com")
		assert.True(t, ok)
	})
}

func TestRoot_Listings(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestUserDB(t, nil)
	defer teardownTestUserDB(t, db)

	addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{Groups: []string{"group:editors"}})
	addTestUser(t, db, "bobby", "bobby@example.com", AddUserOptions{Groups: []string{"group:editor"}})
	addTestUser(t, db, "carol", "carol@example.com", AddUserOptions{Groups: []string{"group:editor"}, Activate: boolPtr(false)})

	all, err := db.Root().GetUsers(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alice", all[0].Name)

	everyone, err := db.Root().ListUsers(ctx, false)
	require.NoError(t, err)
	assert.Len(t, everyone, 3)

	infos, err := db.Root().GetUserInfos(ctx, []string{"alice", "carol"}, true)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "alice", infos[0].Identity)

	infos, err = db.Root().GetUserInfos(ctx, []string{"alice", "carol"}, false)
	require.NoError(t, err)
	assert.Len(t, infos, 2)

	members, err := db.Root().GetUsersWithGroup(ctx, "group:editor", true)
	require.NoError(t, err)
	require.Len(t, members, 1, "substring matches are filtered")
	assert.Equal(t, "bobby", members[0].Name)

	members, err = db.Root().GetUsersWithGroup(ctx, "group:editor", false)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestRoot_EmailVerification(t *testing.T) {
	ctx := context.Background()
	db, mailer := setupTestUserDB(t, nil)
	defer teardownTestUserDB(t, db)

	addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{})
	addTestUser(t, db, "bobby", "bobby@example.com", AddUserOptions{})

	_, err := db.Root().MailVerifyNewEmail(ctx, "alice", "bobby@example.com")
	assert.True(t, errors.IsCode(err, errors.ErrCodeAlreadyExists))

	_, err = db.Root().MailVerifyNewEmail(ctx, "alice", "broken")
	assert.True(t, errors.IsValidation(err))

	user, err := db.Root().MailVerifyNewEmail(ctx, "alice", "alice@new.example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email, "the address changes only after verification")

	msg, ok := mailer.Last()
	require.True(t, ok)
	assert.Equal(t, []string{"alice@new.example.com"}, msg.To)
	token, _ := msg.Variables["token"].(string)
	require.NotEmpty(t, token)

	_, err = db.Root().VerifyEmail(ctx, "bogus")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidToken))

	verified, err := db.Root().VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice@new.example.com", verified.Email)
	assert.Empty(t, verified.Token)
	assert.Empty(t, verified.TempCache)

	_, err = db.Root().VerifyEmail(ctx, token)
	assert.Error(t, err)
}

func TestRoot_PasswordWorkflows(t *testing.T) {
	ctx := context.Background()

	t.Run("reset by token", func(t *testing.T) {
		db, mailer := setupTestUserDB(t, nil)
		defer teardownTestUserDB(t, db)

		addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{})

		_, err := db.Root().MailResetPass(ctx, "", "")
		assert.True(t, errors.IsCode(err, errors.ErrCodeMissingField))

		_, err = db.Root().MailResetPass(ctx, "", "alice@example.com")
		require.NoError(t, err)
		msg, ok := mailer.Last()
		require.True(t, ok)
		assert.Equal(t, "resetpass", msg.Template)
		token, _ := msg.Variables["token"].(string)
		require.Len(t, token, resetPassTokenLength)

		_, err = db.Root().ResetPassword(ctx, token, "x")
		assert.True(t, errors.IsCode(err, errors.ErrCodeWeakPassword))

		_, err = db.Root().ResetPassword(ctx, token, "brand-new-pass")
		require.NoError(t, err)

		_, err = db.Root().ResetPassword(ctx, token, "another-pass")
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidToken), "the token is cleared")

		_, err = db.Root().Login(ctx, "alice", "brand-new-pass", false)
		assert.NoError(t, err)
	})

	t.Run("mail new password", func(t *testing.T) {
		db, mailer := setupTestUserDB(t, nil)
		defer teardownTestUserDB(t, db)

		addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{})

		require.NoError(t, db.Root().MailUserPass(ctx, "alice", ""))
		msg, ok := mailer.Last()
		require.True(t, ok)
		password, _ := msg.Variables["password"].(string)
		require.Len(t, password, mailedPasswordLength)

		_, err := db.Root().Login(ctx, "alice", password, false)
		assert.NoError(t, err)
	})

	t.Run("failed mail keeps the password", func(t *testing.T) {
		db, mailer := setupTestUserDB(t, nil)
		defer teardownTestUserDB(t, db)

		addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{})
		mailer.FailWith(stderrors.New("smtp down"))

		err := db.Root().MailUserPass(ctx, "alice", "never-stored")
		assert.Error(t, err)

		_, err = db.Root().Login(ctx, "alice", "s3cret-pass", false)
		assert.NoError(t, err)
	})
}

func TestRoot_RecordOperations(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestUserDB(t, nil)
	defer teardownTestUserDB(t, db)

	addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{})
	user, err := db.Root().FindUser(ctx, LookupParams{Name: "alice"})
	require.NoError(t, err)

	surname, lastname := "Alice", "Liddell"
	require.NoError(t, db.Root().SecureUpdate(ctx, user, UpdateUserParams{Surname: &surname, Lastname: &lastname}))
	assert.Equal(t, "Alice Liddell", user.Title)

	weak := "aa"
	err = db.Root().SecureUpdate(ctx, user, UpdateUserParams{Password: &weak})
	assert.True(t, errors.IsCode(err, errors.ErrCodeWeakPassword))

	require.NoError(t, db.Root().UpdateGroups(ctx, user, []string{"group:a", "group:b", "group:a"}))
	assert.Equal(t, []string{"group:a", "group:b"}, user.Groups())

	require.NoError(t, db.Root().AddGroup(ctx, user, "group:c"))
	require.NoError(t, db.Root().AddGroup(ctx, user, "group:c"))
	require.NoError(t, db.Root().RemoveGroup(ctx, user, "group:a"))
	require.NoError(t, db.Root().RemoveGroup(ctx, user, "group:missing"))

	stored, err := db.Root().FindUser(ctx, LookupParams{Name: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"group:b", "group:c"}, stored.Groups())
	assert.Equal(t, "Alice Liddell", stored.Title)
}

func TestRoot_AuditLog(t *testing.T) {
	ctx := context.Background()
	config := testConfig(t)
	config.EnableAuditLogging = true
	db, _ := setupTestUserDB(t, config)
	defer teardownTestUserDB(t, db)

	user := addTestUser(t, db, "alice", "alice@example.com", AddUserOptions{})
	_, err := db.Root().Login(ctx, "alice", "wrong-pass", false)
	require.Error(t, err)
	_, err = db.Root().Login(ctx, "alice", "s3cret-pass", false)
	require.NoError(t, err)

	logs, total, err := db.Root().AuditLogs(ctx, 10, 0, user.UserID, "login")
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, logs, 2)

	var successes int
	for _, l := range logs {
		if l.Success {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
}
