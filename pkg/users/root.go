package users

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nive-cms/userdb/pkg/errors"
	"github.com/nive-cms/userdb/pkg/interfaces"
	"github.com/nive-cms/userdb/pkg/sessionuser"
	"github.com/nive-cms/userdb/pkg/types"
)

// Token lengths and the marker values kept in User.TempCache
const (
	activationTokenLength  = 30
	verifyMailTokenLength  = 20
	resetPassTokenLength   = 25
	generatedNameLength    = 15
	mailedPasswordLength   = 5
	generatedPasswordChars = 10

	tempCacheVerifyMail = "verifymail:"
	tempCacheFirstRun   = "firstrun"
)

// Root owns the stored users and resolves identities. Root hooks attached
// to it are consulted on every GetUser.
type Root struct {
	repo      *Repository
	config    *Config
	hasher    *PasswordHasher
	validate  *validator.Validate
	mailer    interfaces.Mailer
	templates MailTemplates
	userType  *UserType
	hooks     hookSet[sessionuser.RootHooks]
	admin     *AdminUser
	logger    interfaces.Logger
	metrics   interfaces.Metrics
	now       func() time.Time
}

var _ sessionuser.HookableStore = (*Root)(nil)

// RootOption configures a Root
type RootOption func(*Root)

// WithMailer sets the mail transport
func WithMailer(m interfaces.Mailer) RootOption {
	return func(r *Root) { r.mailer = m }
}

// WithMailTemplates replaces the default templates
func WithMailTemplates(t MailTemplates) RootOption {
	return func(r *Root) { r.templates = t }
}

// WithUserType sets the record type whose hooks are fired on record changes
func WithUserType(t *UserType) RootOption {
	return func(r *Root) { r.userType = t }
}

// WithRootClock overrides the time source used for login timestamps
func WithRootClock(now func() time.Time) RootOption {
	return func(r *Root) { r.now = now }
}

// NewRoot creates a root over repo
func NewRoot(repo *Repository, config *Config, logger interfaces.Logger, metrics interfaces.Metrics, opts ...RootOption) *Root {
	r := &Root{
		repo:      repo,
		config:    config,
		hasher:    NewPasswordHasher(config.BcryptCost),
		validate:  newValidator(),
		templates: DefaultMailTemplates(),
		userType:  NewUserType(),
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
	if config.Admin != nil {
		r.admin = newAdminUser(config.Admin, config.IdentityField)
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.mailer == nil {
		r.mailer = NewLogMailer(logger)
	}
	return r
}

// AttachRootHooks registers h under name
func (r *Root) AttachRootHooks(name string, h sessionuser.RootHooks) bool {
	return r.hooks.attach(name, h)
}

// UserType returns the record type of the users in this root
func (r *Root) UserType() *UserType {
	return r.userType
}

// Admin returns the configuration admin or nil
func (r *Root) Admin() *AdminUser {
	return r.admin
}

// AddUserOptions are decided by the caller, never by signup data. Nil
// pointers fall back to the signup configuration.
type AddUserOptions struct {
	Activate         *bool
	GeneratePassword *bool
	GenerateName     *bool
	// Groups replaces the configured signup groups when not nil
	Groups []string
	// SendMail sends the signup mail to the new user
	SendMail bool
	// NotifyAdmin sends the notify mail to the configured user admin
	NotifyAdmin bool
	CreatedBy   string
}

func pick(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

// AddUser creates a new account. The account is active right away or
// waits for Activate with the token stored on the user.
func (r *Root) AddUser(ctx context.Context, params AddUserParams, opts AddUserOptions) (*User, error) {
	signup := r.config.Signup

	if pick(opts.GenerateName, signup.GenerateName) {
		name, err := r.generateName(ctx)
		if err != nil {
			return nil, err
		}
		params.Name = name
	}
	if params.Name == "" {
		return nil, errors.NewMissingFieldError("name")
	}

	generatedPassword := ""
	if pick(opts.GeneratePassword, signup.GeneratePassword) {
		generatedPassword = GeneratePassword(generatedPasswordChars)
		params.Password = generatedPassword
	}

	if err := r.validate.StructCtx(ctx, params); err != nil {
		return nil, validationErrors(err)
	}
	if params.Password == "" {
		return nil, errors.NewMissingFieldError("password")
	}
	if generatedPassword == "" {
		if err := ValidatePassword(r.config.PasswordPolicy, params.Password); err != nil {
			return nil, err
		}
	}

	if r.isAdminName(params.Name, params.Email) {
		return nil, errors.NewAlreadyExistsError("user " + params.Name)
	}
	if n, err := r.repo.CountUsers(ctx, "name", params.Name); err != nil {
		return nil, errors.NewDatabaseErrorWithCause("failed to check user name", err)
	} else if n > 0 {
		return nil, errors.NewAlreadyExistsError("user " + params.Name)
	}
	if params.Email != "" && r.config.LoginByEmail {
		if n, err := r.repo.CountUsers(ctx, "email", params.Email); err != nil {
			return nil, errors.NewDatabaseErrorWithCause("failed to check email", err)
		} else if n > 0 {
			return nil, errors.NewAlreadyExistsError("email " + params.Email)
		}
	}

	groups := signup.Groups
	if opts.Groups != nil {
		groups = opts.Groups
	}
	activate := pick(opts.Activate, signup.Activate)

	user := &User{
		Name:         params.Name,
		Email:        params.Email,
		Surname:      params.Surname,
		Lastname:     params.Lastname,
		Organisation: params.Organisation,
		Notify:       pick(params.Notify, true),
		GroupList:    uniqueGroups(groups),
		Token:        GenerateID(activationTokenLength),
		CreatedBy:    opts.CreatedBy,
		State:        types.UserStateInactive,
	}
	if activate {
		user.State = types.UserStateActive
	}
	if user.CreatedBy == "" {
		user.CreatedBy = user.Name
	}
	user.Title = user.DisplayName()

	hash, err := r.hasher.Hash(params.Password)
	if err != nil {
		return nil, err
	}
	user.Password = hash

	created, err := r.repo.CreateUser(ctx, user)
	if err != nil {
		r.audit(ctx, "", "signup", false, err.Error())
		return nil, errors.NewDatabaseErrorWithCause("failed to create user", err)
	}

	r.logger.Info("User created", map[string]interface{}{
		"user_id":  created.UserID,
		"identity": created.Identity(),
		"active":   created.IsActive(),
	})
	r.metrics.Counter("userdb_signup_total", 1, nil)
	r.audit(ctx, created.UserID, "signup", true, "")

	if opts.SendMail && r.templates.Signup.Name != "" && created.Email != "" {
		vars := r.mailVars(created)
		vars["activated"] = created.IsActive()
		if generatedPassword != "" {
			vars["password"] = generatedPassword
		}
		if !created.IsActive() {
			vars["token"] = created.Token
		}
		if err := r.send(ctx, r.templates.Signup.message(created.Email, vars)); err != nil {
			return nil, err
		}
	}
	if opts.NotifyAdmin && r.config.UserAdmin != "" && r.templates.Notify.Name != "" {
		// notify failures do not fail the signup
		if err := r.send(ctx, r.templates.Notify.message(r.config.UserAdmin, r.mailVars(created))); err != nil {
			r.logger.Warn("Failed to notify user admin", map[string]interface{}{"error": err.Error()})
		}
	}

	return created, nil
}

func (r *Root) generateName(ctx context.Context) (string, error) {
	for {
		name := GenerateID(generatedNameLength)
		n, err := r.repo.CountUsers(ctx, "name", name)
		if err != nil {
			return "", errors.NewDatabaseErrorWithCause("failed to check user name", err)
		}
		if n == 0 {
			return name, nil
		}
	}
}

// Login checks the credentials and records the login. Any failure returns
// the same unauthorized error.
func (r *Root) Login(ctx context.Context, name, password string, byEmail bool) (interfaces.AuthenticatedUser, error) {
	start := time.Now()
	defer func() {
		r.metrics.Timer("userdb_login_duration_ms", float64(time.Since(start).Milliseconds()), nil)
	}()

	fail := func(userID, reason string) error {
		r.metrics.Counter("userdb_login_total", 1, map[string]string{"result": "failed"})
		r.audit(ctx, userID, "login", false, reason)
		r.logger.Debug("Login failed", map[string]interface{}{"name": name, "reason": reason})
		return errors.NewUnauthorizedError("login failed")
	}

	if name == "" || password == "" {
		return nil, fail("", "missing credentials")
	}

	if r.admin != nil && r.isAdminLogin(name, byEmail) {
		if !r.admin.Authenticate(password) {
			return nil, fail("", "wrong admin password")
		}
		r.metrics.Counter("userdb_login_total", 1, map[string]string{"result": "admin"})
		return r.admin, nil
	}

	var user *User
	var err error
	if byEmail {
		user, err = r.lookupRecord(ctx, LookupParams{Email: name, ActiveOnly: true})
	} else {
		user, err = r.lookupRecord(ctx, LookupParams{Name: name, ActiveOnly: true})
	}
	if err != nil && !errors.IsCode(err, errors.ErrCodeAmbiguous) {
		return nil, err
	}
	if user == nil {
		return nil, fail("", "unknown user")
	}

	ok, rehash := r.hasher.Verify(password, user.Password)
	if !ok {
		return nil, fail(user.UserID, "wrong password")
	}
	if rehash {
		user.SetPassword(password)
	}

	var previous time.Time
	if user.LastLogin != nil {
		previous = *user.LastLogin
	}
	now := r.now()
	user.LastLogin = &now
	if err := r.Commit(ctx, user); err != nil {
		return nil, err
	}

	r.resolved(ctx, user, previous)

	r.metrics.Counter("userdb_login_total", 1, map[string]string{"result": "success"})
	r.audit(ctx, user.UserID, "login", true, "")
	r.logger.Info("User logged in", map[string]interface{}{
		"user_id":  user.UserID,
		"identity": user.Identity(),
		"rehashed": rehash,
	})
	return user, nil
}

// Logout drops cached views of the user and persists it
func (r *Root) Logout(ctx context.Context, identity string) bool {
	if identity == "" {
		return false
	}
	user, err := r.lookupRecord(ctx, LookupParams{Identity: identity})
	if err != nil || user == nil {
		return false
	}
	return r.logout(ctx, user) == nil
}

func (r *Root) logout(ctx context.Context, user *User) error {
	r.userType.invalidateUser(ctx, user, types.InvalidateLogout)
	if err := r.repo.SaveUser(ctx, user); err != nil {
		return errors.NewDatabaseErrorWithCause("failed to save user", err)
	}
	user.loadedIdentity = user.Identity()
	r.audit(ctx, user.UserID, "logout", true, "")
	return nil
}

// DeleteUser logs the user out and removes the account. The configuration
// admin cannot be deleted.
func (r *Root) DeleteUser(ctx context.Context, identity string) error {
	if identity == "" {
		return errors.NewMissingFieldError("identity")
	}
	if r.admin != nil && identity == r.admin.Identity() {
		return errors.NewForbiddenError("the admin user cannot be deleted")
	}

	user, err := r.lookupRecord(ctx, LookupParams{Identity: identity})
	if err != nil {
		return err
	}
	if user == nil {
		return errors.NewNotFoundError("user " + identity)
	}

	if err := r.logout(ctx, user); err != nil {
		return err
	}
	if err := r.repo.DeleteUser(ctx, user.UserID); err != nil {
		r.audit(ctx, user.UserID, "delete", false, err.Error())
		return errors.NewDatabaseErrorWithCause("failed to delete user", err)
	}
	r.userType.invalidateUser(ctx, user, types.InvalidateDelete)

	r.audit(ctx, user.UserID, "delete", true, "")
	r.logger.Info("User deleted", map[string]interface{}{
		"user_id":  user.UserID,
		"identity": identity,
	})
	return nil
}

// GetUser resolves identity for session use. Root hooks may answer from a
// cache; otherwise the store is queried and the hooks see the result.
// A missing user returns nil without error.
func (r *Root) GetUser(ctx context.Context, identity string, activeOnly bool) (interfaces.AuthenticatedUser, error) {
	if identity == "" {
		return nil, nil
	}
	for _, h := range r.hooks.snapshot() {
		if u, ok := h.OnLookup(ctx, identity, activeOnly); ok {
			return u, nil
		}
	}

	user, err := r.LookupUser(ctx, LookupParams{Identity: identity, ActiveOnly: activeOnly})
	if err != nil || user == nil {
		return nil, err
	}
	if record, ok := user.(*User); ok {
		r.resolved(ctx, record, time.Time{})
	}
	return user, nil
}

func (r *Root) resolved(ctx context.Context, user *User, lastLogin time.Time) {
	for _, h := range r.hooks.snapshot() {
		h.OnResolved(ctx, user, lastLogin)
	}
}

// LookupParams selects a user by exactly one of its keys. ID wins over
// Name, Name over Email, Email over Identity.
type LookupParams struct {
	ID         string
	Identity   string
	Name       string
	Email      string
	ActiveOnly bool
}

// LookupUser queries the store, bypassing root hooks. It returns nil when no
// single user matches.
func (r *Root) LookupUser(ctx context.Context, p LookupParams) (interfaces.AuthenticatedUser, error) {
	if p.ID == "" && r.admin != nil {
		switch {
		case p.Identity != "" && p.Identity == r.admin.Identity():
			return r.admin, nil
		case p.Name != "" && p.Name == r.admin.Name():
			return r.admin, nil
		case r.config.LoginByEmail && p.Email != "" && p.Email == r.admin.Email():
			return r.admin, nil
		}
	}
	user, err := r.lookupRecord(ctx, p)
	if err != nil || user == nil {
		return nil, err
	}
	return user, nil
}

// FindUser is LookupUser restricted to stored users
func (r *Root) FindUser(ctx context.Context, p LookupParams) (*User, error) {
	return r.lookupRecord(ctx, p)
}

func (r *Root) lookupRecord(ctx context.Context, p LookupParams) (*User, error) {
	var column, value, alternative string
	switch {
	case p.ID != "":
		column, value = "user_id", p.ID
	case p.Name != "":
		column, value, alternative = "name", p.Name, "email"
	case p.Email != "":
		column, value, alternative = "email", p.Email, "name"
	case p.Identity != "":
		column, value = r.config.IdentityField, p.Identity
	default:
		return nil, errors.NewValidationError("lookup requires an id, identity, name or email")
	}

	users, err := r.repo.FindUsers(ctx, column, value, p.ActiveOnly, 2)
	if err != nil {
		return nil, errors.NewDatabaseErrorWithCause("failed to look up user", err)
	}
	if len(users) == 0 && alternative != "" && r.config.IdentityFallbackAlternative {
		users, err = r.repo.FindUsers(ctx, alternative, value, p.ActiveOnly, 2)
		if err != nil {
			return nil, errors.NewDatabaseErrorWithCause("failed to look up user", err)
		}
	}

	switch len(users) {
	case 0:
		return nil, nil
	case 1:
		return users[0], nil
	default:
		return nil, errors.NewAmbiguousError(column + " " + value)
	}
}

// GetUserForToken returns the single user carrying token
func (r *Root) GetUserForToken(ctx context.Context, token string, activeOnly bool) (*User, error) {
	if token == "" {
		return nil, nil
	}
	users, err := r.repo.FindUsers(ctx, "token", token, activeOnly, 2)
	if err != nil {
		return nil, errors.NewDatabaseErrorWithCause("failed to look up token", err)
	}
	if len(users) != 1 {
		return nil, nil
	}
	return users[0], nil
}

// GetUsers lists active users
func (r *Root) GetUsers(ctx context.Context) ([]UserInfo, error) {
	return r.ListUsers(ctx, true)
}

// ListUsers lists every user, or only active ones
func (r *Root) ListUsers(ctx context.Context, activeOnly bool) ([]UserInfo, error) {
	users, err := r.repo.ListUsers(ctx, activeOnly)
	if err != nil {
		return nil, errors.NewDatabaseErrorWithCause("failed to list users", err)
	}
	return infos(users), nil
}

// GetUserInfos lists the users with the given identities
func (r *Root) GetUserInfos(ctx context.Context, identities []string, activeOnly bool) ([]UserInfo, error) {
	users, err := r.repo.ListUsersIn(ctx, r.config.IdentityField, identities, activeOnly)
	if err != nil {
		return nil, errors.NewDatabaseErrorWithCause("failed to list users", err)
	}
	return infos(users), nil
}

// GetUsersWithGroup lists the members of group
func (r *Root) GetUsersWithGroup(ctx context.Context, group string, activeOnly bool) ([]UserInfo, error) {
	if group == "" {
		return nil, nil
	}
	candidates, err := r.repo.ListUsersWithGroupLike(ctx, group, activeOnly)
	if err != nil {
		return nil, errors.NewDatabaseErrorWithCause("failed to list group members", err)
	}
	members := make([]*User, 0, len(candidates))
	for _, u := range candidates {
		if u.InGroups(group) {
			members = append(members, u)
		}
	}
	return infos(members), nil
}

func infos(users []*User) []UserInfo {
	out := make([]UserInfo, 0, len(users))
	for _, u := range users {
		out = append(out, u.info())
	}
	return out
}

// Token workflows

// MailVerifyNewEmail stores a verification token with the pending address
// and mails the token to the new address
func (r *Root) MailVerifyNewEmail(ctx context.Context, name, newEmail string) (*User, error) {
	if newEmail == "" {
		return nil, errors.NewMissingFieldError("email")
	}
	if err := r.validate.VarCtx(ctx, newEmail, "email"); err != nil {
		return nil, errors.NewInvalidInputError("email is not a valid email address")
	}
	user, err := r.lookupRecord(ctx, LookupParams{Name: name, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.NewNotFoundError("user " + name)
	}
	if n, err := r.repo.CountUsers(ctx, "email", newEmail); err != nil {
		return nil, errors.NewDatabaseErrorWithCause("failed to check email", err)
	} else if n > 0 {
		return nil, errors.NewAlreadyExistsError("email " + newEmail)
	}

	user.Token = GenerateID(verifyMailTokenLength)
	user.TempCache = tempCacheVerifyMail + newEmail
	if err := r.Commit(ctx, user); err != nil {
		return nil, err
	}

	vars := r.mailVars(user)
	vars["token"] = user.Token
	vars["email"] = newEmail
	if err := r.send(ctx, r.templates.VerifyEmail.message(newEmail, vars)); err != nil {
		return nil, err
	}
	return user, nil
}

// VerifyEmail applies the pending address stored for token
func (r *Root) VerifyEmail(ctx context.Context, token string) (*User, error) {
	user, err := r.GetUserForToken(ctx, token, true)
	if err != nil {
		return nil, err
	}
	if user == nil || !strings.HasPrefix(user.TempCache, tempCacheVerifyMail) {
		return nil, errors.NewInvalidTokenError()
	}

	user.Email = strings.TrimPrefix(user.TempCache, tempCacheVerifyMail)
	user.TempCache = ""
	user.Token = ""
	if err := r.Commit(ctx, user); err != nil {
		return nil, err
	}
	r.audit(ctx, user.UserID, "verify_email", true, "")
	return user, nil
}

// MailUserPass sets a new password and mails it in plain text. An empty
// newPassword generates one. The password is only stored when the mail was
// handed off.
func (r *Root) MailUserPass(ctx context.Context, name, newPassword string) error {
	if name == "" {
		return errors.NewMissingFieldError("name")
	}
	user, err := r.lookupRecord(ctx, LookupParams{Name: name, ActiveOnly: true})
	if err != nil {
		return err
	}
	if user == nil {
		return errors.NewNotFoundError("user " + name)
	}
	if user.Email == "" {
		return errors.NewValidationError("no email address found")
	}

	if newPassword == "" {
		newPassword = GenerateID(mailedPasswordLength)
	}
	user.SetPassword(newPassword)

	vars := r.mailVars(user)
	vars["password"] = newPassword
	if err := r.send(ctx, r.templates.Password.message(user.Email, vars)); err != nil {
		return err
	}
	return r.Commit(ctx, user)
}

// MailResetPass stores a reset token and mails it. The user is found by
// email when given, by name otherwise.
func (r *Root) MailResetPass(ctx context.Context, name, email string) (*User, error) {
	var p LookupParams
	switch {
	case email != "":
		p = LookupParams{Email: email, ActiveOnly: true}
	case name != "":
		p = LookupParams{Name: name, ActiveOnly: true}
	default:
		return nil, errors.NewMissingFieldError("name")
	}
	user, err := r.lookupRecord(ctx, p)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.NewNotFoundError("user")
	}
	if user.Email == "" {
		return nil, errors.NewValidationError("no email address found")
	}

	user.Token = GenerateID(resetPassTokenLength)
	if err := r.Commit(ctx, user); err != nil {
		return nil, err
	}

	vars := r.mailVars(user)
	vars["token"] = user.Token
	if err := r.send(ctx, r.templates.ResetPassword.message(user.Email, vars)); err != nil {
		return nil, err
	}
	return user, nil
}

// ResetPassword sets password for the user holding token and clears it
func (r *Root) ResetPassword(ctx context.Context, token, password string) (*User, error) {
	user, err := r.GetUserForToken(ctx, token, true)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.NewInvalidTokenError()
	}
	if err := r.UpdatePassword(ctx, user, password); err != nil {
		return nil, err
	}
	r.audit(ctx, user.UserID, "reset_password", true, "")
	return user, nil
}

// Activate enables the inactive account holding token
func (r *Root) Activate(ctx context.Context, token string) (*User, error) {
	user, err := r.GetUserForToken(ctx, token, false)
	if err != nil {
		return nil, err
	}
	if user == nil || user.IsActive() {
		return nil, errors.NewInvalidTokenError()
	}

	user.State = types.UserStateActive
	user.Token = ""
	user.TempCache = tempCacheFirstRun
	if err := r.Commit(ctx, user); err != nil {
		return nil, err
	}
	r.audit(ctx, user.UserID, "activate", true, "")
	r.logger.Info("User activated", map[string]interface{}{"user_id": user.UserID})
	return user, nil
}

// Record operations

// Commit hashes a pending password, refreshes the title, stores the user and
// invalidates its cached views
func (r *Root) Commit(ctx context.Context, user *User) error {
	if user.plainPassword != "" {
		hash, err := r.hasher.Hash(user.plainPassword)
		if err != nil {
			return err
		}
		user.Password = hash
		user.plainPassword = ""
	}
	user.Title = user.DisplayName()

	if err := r.repo.SaveUser(ctx, user); err != nil {
		return errors.NewDatabaseErrorWithCause("failed to save user", err)
	}
	r.userType.invalidateUser(ctx, user, types.InvalidateCommit)
	user.loadedIdentity = user.Identity()
	return nil
}

// SecureUpdate applies self service profile changes
func (r *Root) SecureUpdate(ctx context.Context, user *User, params UpdateUserParams) error {
	if err := r.validate.StructCtx(ctx, params); err != nil {
		return validationErrors(err)
	}
	if params.Password != nil {
		if err := ValidatePassword(r.config.PasswordPolicy, *params.Password); err != nil {
			return err
		}
		user.SetPassword(*params.Password)
	}
	if params.Surname != nil {
		user.Surname = *params.Surname
	}
	if params.Lastname != nil {
		user.Lastname = *params.Lastname
	}
	if params.Organisation != nil {
		user.Organisation = *params.Organisation
	}
	if params.Notify != nil {
		user.Notify = *params.Notify
	}
	return r.Commit(ctx, user)
}

// UpdatePassword sets a new password and clears any pending token
func (r *Root) UpdatePassword(ctx context.Context, user *User, password string) error {
	if err := ValidatePassword(r.config.PasswordPolicy, password); err != nil {
		return err
	}
	user.SetPassword(password)
	user.Token = ""
	return r.Commit(ctx, user)
}

// UpdateGroups replaces the user's groups
func (r *Root) UpdateGroups(ctx context.Context, user *User, groups []string) error {
	user.GroupList = uniqueGroups(groups)
	return r.Commit(ctx, user)
}

// AddGroup adds group to the user
func (r *Root) AddGroup(ctx context.Context, user *User, group string) error {
	if group == "" || user.InGroups(group) {
		return nil
	}
	user.GroupList = append(user.GroupList, group)
	return r.Commit(ctx, user)
}

// RemoveGroup removes group from the user
func (r *Root) RemoveGroup(ctx context.Context, user *User, group string) error {
	if !user.InGroups(group) {
		return nil
	}
	kept := make([]string, 0, len(user.GroupList))
	for _, g := range user.GroupList {
		if g != group {
			kept = append(kept, g)
		}
	}
	user.GroupList = kept
	return r.Commit(ctx, user)
}

// AuditLogs returns audit entries, newest first
func (r *Root) AuditLogs(ctx context.Context, limit, offset int, userID, action string) ([]AuditLog, int64, error) {
	return r.repo.GetAuditLogs(ctx, limit, offset, userID, action)
}

func uniqueGroups(groups []string) []string {
	out := make([]string, 0, len(groups))
	seen := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		if g == "" {
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}

func (r *Root) isAdminName(name, email string) bool {
	if r.admin == nil {
		return false
	}
	return name == r.admin.Name() || (email != "" && email == r.admin.Email())
}

func (r *Root) isAdminLogin(name string, byEmail bool) bool {
	if byEmail {
		return r.config.LoginByEmail && r.admin.Email() != "" && name == r.admin.Email()
	}
	return name == r.admin.Name()
}

func (r *Root) mailVars(u *User) map[string]interface{} {
	return map[string]interface{}{
		"name":     u.Name,
		"title":    u.Title,
		"identity": u.Identity(),
	}
}

func (r *Root) send(ctx context.Context, msg interfaces.MailMessage) error {
	if msg.Template == "" {
		return nil
	}
	if err := r.mailer.Send(ctx, msg); err != nil {
		r.logger.Error("Failed to send mail", err, map[string]interface{}{
			"template": msg.Template,
		})
		r.metrics.Counter("userdb_mail_failed_total", 1, map[string]string{"template": msg.Template})
		unavailable := errors.NewServiceUnavailableError("mail")
		unavailable.Cause = err
		return unavailable
	}
	r.metrics.Counter("userdb_mail_sent_total", 1, map[string]string{"template": msg.Template})
	return nil
}

func (r *Root) audit(ctx context.Context, userID, action string, success bool, details string) {
	if !r.config.EnableAuditLogging {
		return
	}
	entry := &AuditLog{
		UserID:  userID,
		Action:  action,
		Success: success,
		Details: details,
	}
	if err := r.repo.CreateAuditLog(ctx, entry); err != nil {
		r.logger.Warn("Failed to write audit log", map[string]interface{}{
			"action": action,
			"error":  fmt.Sprintf("%v", err),
		})
	}
}
