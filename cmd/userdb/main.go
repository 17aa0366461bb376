// Package main provides the userdb command line tool
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nive-cms/userdb/pkg/config"
	"github.com/nive-cms/userdb/pkg/interfaces"
	"github.com/nive-cms/userdb/pkg/metrics"
	"github.com/nive-cms/userdb/pkg/users"
)

// Version information (set by build process)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Command line flags
var (
	configFile  = flag.String("config", "", "Path to configuration file (yaml or json)")
	logLevel    = flag.String("log-level", "", "Log level override (debug, info, warn, error)")
	logFile     = flag.String("log-file", "", "Log file path (default: stderr)")
	showVersion = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("userdb %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, flag.Args()); err != nil {
		log.Fatalf("userdb: %v", err)
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: userdb [flags] <command> [args]

Commands:
  serve                      run the session cache purger, invalidation bus and metrics endpoint
  add-user [flags]           create an account
  delete-user <identity>     delete an account
  list-users [flags]         list accounts

Flags:
`)
	flag.PrintDefaults()
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		usage()
		return fmt.Errorf("no command specified")
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := cfg.Log.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	command, commandArgs := args[0], args[1:]
	switch command {
	case "serve":
		return runServe(ctx, cfg, logger)
	case "add-user":
		return withUserDB(ctx, cfg, logger, func(db *users.UserDB) error {
			return executeAddUser(ctx, db, commandArgs)
		})
	case "delete-user":
		return withUserDB(ctx, cfg, logger, func(db *users.UserDB) error {
			return executeDeleteUser(ctx, db, commandArgs)
		})
	case "list-users":
		return withUserDB(ctx, cfg, logger, func(db *users.UserDB) error {
			return executeListUsers(ctx, db, commandArgs)
		})
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	return cfg, cfg.Validate()
}

// withUserDB opens the user database for a one-shot command. One-shot
// commands run without a bus or metrics endpoint.
func withUserDB(ctx context.Context, cfg *config.Config, logger interfaces.Logger, fn func(*users.UserDB) error) error {
	db, err := users.NewUserDB(ctx, cfg.UserDB, logger, metrics.NewNoOpMetrics(),
		users.WithSessionConfig(cfg.SessionUser))
	if err != nil {
		return fmt.Errorf("failed to open user database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("Failed to close user database", closeErr)
		}
	}()
	return fn(db)
}

func executeAddUser(ctx context.Context, db *users.UserDB, args []string) error {
	fs := flag.NewFlagSet("add-user", flag.ContinueOnError)
	name := fs.String("name", "", "User name (generated when empty and name generation is configured)")
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (generated when empty)")
	surname := fs.String("surname", "", "Surname")
	lastname := fs.String("lastname", "", "Last name")
	groups := fs.String("groups", "", "Comma separated groups (default: configured signup groups)")
	activate := fs.Bool("activate", true, "Activate the account right away")
	sendMail := fs.Bool("mail", false, "Send the signup mail")
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := users.AddUserOptions{
		Activate:  activate,
		SendMail:  *sendMail,
		CreatedBy: "cli",
	}
	if *password == "" {
		generate := true
		opts.GeneratePassword = &generate
	}
	if *groups != "" {
		opts.Groups = strings.Split(*groups, ",")
	}

	user, err := db.Root().AddUser(ctx, users.AddUserParams{
		Name:     *name,
		Email:    *email,
		Password: *password,
		Surname:  *surname,
		Lastname: *lastname,
	}, opts)
	if err != nil {
		return fmt.Errorf("failed to add user: %w", err)
	}

	fmt.Printf("Created user: %s (ID: %s, state: %s)\n", user.Identity(), user.UserID, user.State)
	if !user.State.IsActive() {
		fmt.Printf("Activation token: %s\n", user.Token)
	}
	return nil
}

func executeDeleteUser(ctx context.Context, db *users.UserDB, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("identity required")
	}
	if err := db.Root().DeleteUser(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	fmt.Printf("Deleted user: %s\n", args[0])
	return nil
}

func executeListUsers(ctx context.Context, db *users.UserDB, args []string) error {
	fs := flag.NewFlagSet("list-users", flag.ContinueOnError)
	group := fs.String("group", "", "Only list members of this group")
	all := fs.Bool("all", false, "Include inactive accounts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		infos []users.UserInfo
		err   error
	)
	switch {
	case *group != "":
		infos, err = db.Root().GetUsersWithGroup(ctx, *group, !*all)
	case *all:
		infos, err = db.Root().ListUsers(ctx, false)
	default:
		infos, err = db.Root().GetUsers(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	for _, info := range infos {
		fmt.Printf("%-24s %-32s %s\n", info.Identity, info.Email, strings.Join(info.Groups, ","))
	}
	fmt.Printf("%d users\n", len(infos))
	return nil
}
