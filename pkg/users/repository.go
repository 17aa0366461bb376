package users

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Repository provides data access for stored users
type Repository struct {
	db     *gorm.DB
	config *Config
}

// NewRepository opens the database and migrates the schema
func NewRepository(config *Config) (*Repository, error) {
	var db *gorm.DB
	var err error

	switch config.DatabaseType {
	case "sqlite":
		if config.DatabasePath != ":memory:" && !strings.HasPrefix(config.DatabasePath, "file:") {
			if err := os.MkdirAll(filepath.Dir(config.DatabasePath), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}

		db, err = gorm.Open(sqlite.Open(config.DatabasePath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.DatabaseType)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{
		db:     db,
		config: config,
	}

	if err := repo.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	return r.db.AutoMigrate(
		&User{},
		&AuditLog{},
	)
}

func (r *Repository) prepare(u *User) *User {
	u.identityField = r.config.IdentityField
	u.loadedIdentity = u.Identity()
	return u
}

func (r *Repository) prepareAll(users []User) []*User {
	out := make([]*User, 0, len(users))
	for i := range users {
		out = append(out, r.prepare(&users[i]))
	}
	return out
}

// User operations

// CreateUser inserts a new user
func (r *Repository) CreateUser(ctx context.Context, user *User) (*User, error) {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return r.prepare(user), nil
}

// GetUser retrieves a user by id
func (r *Repository) GetUser(ctx context.Context, userID string) (*User, error) {
	var user User
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return r.prepare(&user), nil
}

// FindUsers returns at most limit users whose column equals value. Only
// active users are returned when activeOnly is set.
func (r *Repository) FindUsers(ctx context.Context, column, value string, activeOnly bool, limit int) ([]*User, error) {
	switch column {
	case "name", "email", "token", "user_id":
	default:
		return nil, fmt.Errorf("unsupported lookup column: %s", column)
	}

	query := r.db.WithContext(ctx).Where(column+" = ?", value)
	if activeOnly {
		query = query.Where("state = ?", 1)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var users []User
	if err := query.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to find users by %s: %w", column, err)
	}
	return r.prepareAll(users), nil
}

// SaveUser updates all columns of user
func (r *Repository) SaveUser(ctx context.Context, user *User) error {
	if err := r.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// DeleteUser removes a user row
func (r *Repository) DeleteUser(ctx context.Context, userID string) error {
	result := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&User{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete user: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("user not found: %s", userID)
	}
	return nil
}

// ListUsers returns users ordered by name
func (r *Repository) ListUsers(ctx context.Context, activeOnly bool) ([]*User, error) {
	query := r.db.WithContext(ctx).Order("name")
	if activeOnly {
		query = query.Where("state = ?", 1)
	}
	var users []User
	if err := query.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return r.prepareAll(users), nil
}

// ListUsersIn returns users whose column is one of values
func (r *Repository) ListUsersIn(ctx context.Context, column string, values []string, activeOnly bool) ([]*User, error) {
	if column != "name" && column != "email" && column != "user_id" {
		return nil, fmt.Errorf("unsupported lookup column: %s", column)
	}
	if len(values) == 0 {
		return nil, nil
	}
	query := r.db.WithContext(ctx).Where(column+" IN ?", values).Order("name")
	if activeOnly {
		query = query.Where("state = ?", 1)
	}
	var users []User
	if err := query.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users by %s: %w", column, err)
	}
	return r.prepareAll(users), nil
}

// ListUsersWithGroupLike returns candidates whose serialized groups contain
// group as a substring. Callers verify membership.
func (r *Repository) ListUsersWithGroupLike(ctx context.Context, group string, activeOnly bool) ([]*User, error) {
	query := r.db.WithContext(ctx).Where("user_groups LIKE ?", "%"+group+"%").Order("name")
	if activeOnly {
		query = query.Where("state = ?", 1)
	}
	var users []User
	if err := query.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users with group: %w", err)
	}
	return r.prepareAll(users), nil
}

// CountUsers counts users whose column equals value
func (r *Repository) CountUsers(ctx context.Context, column, value string) (int64, error) {
	if column != "name" && column != "email" {
		return 0, fmt.Errorf("unsupported lookup column: %s", column)
	}
	var total int64
	if err := r.db.WithContext(ctx).Model(&User{}).Where(column+" = ?", value).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return total, nil
}

// Audit log operations

// CreateAuditLog creates a new audit log entry
func (r *Repository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	if err := r.db.WithContext(ctx).Create(log).Error; err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	return nil
}

// GetAuditLogs retrieves audit logs, newest first
func (r *Repository) GetAuditLogs(ctx context.Context, limit, offset int, userID, action string) ([]AuditLog, int64, error) {
	var logs []AuditLog
	var total int64

	query := r.db.WithContext(ctx).Model(&AuditLog{})
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if action != "" {
		query = query.Where("action = ?", action)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	if err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&logs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to get audit logs: %w", err)
	}

	return logs, total, nil
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	return sqlDB.Close()
}
