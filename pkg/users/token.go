package users

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nive-cms/userdb/pkg/errors"
	"github.com/nive-cms/userdb/pkg/types"
)

// IdentityClaims are carried by identity tokens
type IdentityClaims struct {
	Identity string   `json:"identity"`
	Groups   []string `json:"groups,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and checks signed identity tokens. A token only
// names an identity; the user is resolved through the root on every use.
type TokenService struct {
	secret []byte
	issuer string
	expiry time.Duration
	now    func() time.Time
}

// NewTokenService creates a token service from the user database config
func NewTokenService(config *Config) *TokenService {
	secret := config.JWTSecret
	if secret == "" {
		secret = GenerateID(32)
	}
	return &TokenService{
		secret: []byte(secret),
		issuer: config.JWTIssuer,
		expiry: config.JWTExpirationTime,
		now:    time.Now,
	}
}

// Issue signs a token for user
func (ts *TokenService) Issue(identity string, groups []string) (string, time.Time, error) {
	now := ts.now()
	expiresAt := now.Add(ts.expiry)
	claims := IdentityClaims{
		Identity: identity,
		Groups:   groups,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        GenerateID(16),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(ts.secret)
	if err != nil {
		return "", time.Time{}, errors.NewInternalErrorWithCause("failed to sign token", err)
	}
	return signed, expiresAt, nil
}

// Parse validates tokenString and returns its claims
func (ts *TokenService) Parse(tokenString string) (*IdentityClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secret, nil
	},
		jwt.WithIssuer(ts.issuer),
		jwt.WithTimeFunc(ts.now),
	)
	if err != nil {
		return nil, errors.NewUserDBErrorWithCause(types.ErrorTypeUnauthorized, errors.ErrCodeInvalidToken, "invalid token", err)
	}

	claims, ok := token.Claims.(*IdentityClaims)
	if !ok || !token.Valid || claims.Identity == "" {
		return nil, errors.NewInvalidTokenError()
	}
	return claims, nil
}
