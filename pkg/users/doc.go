// Package users provides the user database: stored accounts, signup, login,
// token workflows, group based authorization and the wiring of the session
// user cache.
//
// # Architecture
//
//	┌─────────────────┐
//	│     UserDB      │  ← application, owns the session user cache slot
//	├─────────────────┤
//	│ Root │ UserType │  ← identity resolution and record hooks
//	├─────────────────┤
//	│   Repository    │  ← data access
//	├─────────────────┤
//	│   GORM/SQLite   │
//	└─────────────────┘
//
// NewUserDB activates the session user cache exactly once. The cache
// listener is attached to the Root, which consults it on every GetUser
// before querying the database, and to the UserType, which tells it about
// commits, logouts and deletions.
//
// # Quick Start
//
//	config := users.DefaultConfig()
//	config.DatabasePath = "./data/userdb.db"
//
//	db, err := users.NewUserDB(ctx, config, log, metrics.NewNoOpMetrics())
//	if err != nil {
//	    log.Fatal("open user database", err)
//	}
//	defer db.Close()
//
//	root := db.Root()
//	_, err = root.AddUser(ctx, users.AddUserParams{
//	    Name:     "alice",
//	    Email:    "alice@example.com",
//	    Password: "s3cret-pass",
//	}, users.AddUserOptions{})
//
//	user, err := root.Login(ctx, "alice", "s3cret-pass", false)
//	token, _, err := db.Tokens().Issue(user.Identity(), user.Groups())
//
//	// later requests
//	user, err = db.Authenticate(ctx, token)
//
// # Identity
//
// The identity of a user is the value of the configured identity field,
// name or email, falling back to the record id. Sessions and the cache are
// keyed by identity. With IdentityFallbackAlternative set, a lookup by name
// that finds nothing is retried against email and the other way round.
//
// # Passwords
//
// New passwords are hashed with bcrypt. Hex sha224 and {SHA512} digests
// written by earlier versions are still accepted and replaced on the next
// successful login.
//
// # Authorization
//
// ACLs are evaluated top down and the first entry matching one of the
// user's principals decides. Groupfinder memoizes users per request when
// the context was prepared with WithRequestCache.
package users
