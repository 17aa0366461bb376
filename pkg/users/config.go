package users

import (
	"time"

	"github.com/nive-cms/userdb/pkg/errors"
)

// Config holds the configuration for the user database
type Config struct {
	// Database configuration
	DatabaseType string `json:"database_type" yaml:"database_type" mapstructure:"database_type" validate:"required,oneof=sqlite"`
	DatabasePath string `json:"database_path" yaml:"database_path" mapstructure:"database_path" validate:"required"`

	// Identity and login
	IdentityField               string `json:"identity_field" yaml:"identity_field" mapstructure:"identity_field" validate:"required,oneof=name email"`
	LoginByEmail                bool   `json:"login_by_email" yaml:"login_by_email" mapstructure:"login_by_email"`
	IdentityFallbackAlternative bool   `json:"identity_fallback_alternative" yaml:"identity_fallback_alternative" mapstructure:"identity_fallback_alternative"`

	// Admin is a configuration level account that works without a database row
	Admin *AdminConfig `json:"admin,omitempty" yaml:"admin,omitempty" mapstructure:"admin"`

	// UserAdmin receives signup notifications
	UserAdmin string `json:"user_admin,omitempty" yaml:"user_admin,omitempty" mapstructure:"user_admin" validate:"omitempty,email"`

	Signup         SignupConfig   `json:"signup" yaml:"signup" mapstructure:"signup"`
	PasswordPolicy PasswordPolicy `json:"password_policy" yaml:"password_policy" mapstructure:"password_policy"`

	// Identity tokens
	JWTSecret         string        `json:"jwt_secret" yaml:"jwt_secret" mapstructure:"jwt_secret"`
	JWTIssuer         string        `json:"jwt_issuer" yaml:"jwt_issuer" mapstructure:"jwt_issuer"`
	JWTExpirationTime time.Duration `json:"jwt_expiration_time" yaml:"jwt_expiration_time" mapstructure:"jwt_expiration_time"`

	BcryptCost         int  `json:"bcrypt_cost" yaml:"bcrypt_cost" mapstructure:"bcrypt_cost"`
	EnableAuditLogging bool `json:"enable_audit_logging" yaml:"enable_audit_logging" mapstructure:"enable_audit_logging"`
}

// AdminConfig describes the configuration admin
type AdminConfig struct {
	Name     string `json:"name" yaml:"name" mapstructure:"name" validate:"required"`
	Email    string `json:"email" yaml:"email" mapstructure:"email"`
	Password string `json:"password" yaml:"password" mapstructure:"password" validate:"required"`
}

// SignupConfig controls new accounts
type SignupConfig struct {
	Groups           []string `json:"groups,omitempty" yaml:"groups,omitempty" mapstructure:"groups"`
	Activate         bool     `json:"activate" yaml:"activate" mapstructure:"activate"`
	GeneratePassword bool     `json:"generate_password" yaml:"generate_password" mapstructure:"generate_password"`
	GenerateName     bool     `json:"generate_name" yaml:"generate_name" mapstructure:"generate_name"`
}

// PasswordPolicy defines password requirements
type PasswordPolicy struct {
	MinLength        int  `json:"min_length" yaml:"min_length" mapstructure:"min_length"`
	MaxLength        int  `json:"max_length" yaml:"max_length" mapstructure:"max_length"`
	MinDistinct      int  `json:"min_distinct" yaml:"min_distinct" mapstructure:"min_distinct"`
	RequireUppercase bool `json:"require_uppercase" yaml:"require_uppercase" mapstructure:"require_uppercase"`
	RequireLowercase bool `json:"require_lowercase" yaml:"require_lowercase" mapstructure:"require_lowercase"`
	RequireNumbers   bool `json:"require_numbers" yaml:"require_numbers" mapstructure:"require_numbers"`
	RequireSymbols   bool `json:"require_symbols" yaml:"require_symbols" mapstructure:"require_symbols"`
}

// DefaultConfig returns a default configuration for the user database
func DefaultConfig() *Config {
	return &Config{
		DatabaseType: "sqlite",
		DatabasePath: "./data/userdb.db",

		IdentityField:               "name",
		LoginByEmail:                true,
		IdentityFallbackAlternative: true,

		Signup: SignupConfig{
			Activate: true,
		},

		PasswordPolicy: PasswordPolicy{
			MinLength:   5,
			MaxLength:   30,
			MinDistinct: 5,
		},

		JWTIssuer:          "userdb",
		JWTExpirationTime:  24 * time.Hour,
		BcryptCost:         10,
		EnableAuditLogging: true,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabaseType == "" {
		return errors.NewConfigInvalidError("database_type is required")
	}
	if c.DatabaseType != "sqlite" {
		return errors.NewConfigInvalidError("unsupported database_type: " + c.DatabaseType)
	}
	if c.DatabasePath == "" {
		return errors.NewConfigInvalidError("database_path is required for SQLite")
	}
	if c.IdentityField != "name" && c.IdentityField != "email" {
		return errors.NewConfigInvalidError("identity_field must be name or email")
	}
	if c.Admin != nil && (c.Admin.Name == "" || c.Admin.Password == "") {
		return errors.NewConfigInvalidError("admin requires name and password")
	}
	if c.PasswordPolicy.MinLength < 4 {
		return errors.NewConfigInvalidError("password minimum length must be at least 4")
	}
	if c.PasswordPolicy.MaxLength != 0 && c.PasswordPolicy.MaxLength < c.PasswordPolicy.MinLength {
		return errors.NewConfigInvalidError("password maximum length must not be below the minimum")
	}
	if c.BcryptCost != 0 && (c.BcryptCost < 4 || c.BcryptCost > 31) {
		return errors.NewConfigInvalidError("bcrypt_cost must be between 4 and 31")
	}
	return nil
}
