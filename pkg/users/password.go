package users

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"math/big"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nive-cms/userdb/pkg/errors"
)

const sha512Prefix = "{SHA512}"

// PasswordHasher hashes new passwords with bcrypt and still accepts the
// digests written by earlier versions of the user database
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher creates a hasher. A cost of zero uses bcrypt's default.
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash hashes a password using bcrypt
func (h *PasswordHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", errors.NewInternalErrorWithCause("failed to hash password", err)
	}
	return string(hash), nil
}

// Verify checks password against hash. needsRehash is set when the hash
// uses a legacy scheme and should be replaced.
func (h *PasswordHasher) Verify(password, hash string) (ok bool, needsRehash bool) {
	switch {
	case hash == "":
		return false, false
	case strings.HasPrefix(hash, "$2"):
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil, false
	case strings.HasPrefix(hash, sha512Prefix):
		sum := sha512.Sum512([]byte(password))
		expected := sha512Prefix + base64.StdEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(expected), []byte(hash)) == 1, true
	case len(hash) == sha256.Size224*2:
		sum := sha256.Sum224([]byte(password))
		expected := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(hash))) == 1, true
	default:
		return false, false
	}
}

// LegacySHA224 returns the hex sha224 digest used by early user databases
func LegacySHA224(password string) string {
	sum := sha256.Sum224([]byte(password))
	return hex.EncodeToString(sum[:])
}

// LegacySHA512 returns the {SHA512} base64 digest
func LegacySHA512(password string) string {
	sum := sha512.Sum512([]byte(password))
	return sha512Prefix + base64.StdEncoding.EncodeToString(sum[:])
}

// ValidatePassword checks password against the policy
func ValidatePassword(policy PasswordPolicy, password string) error {
	length := len([]rune(password))
	if length < policy.MinLength {
		return errors.NewWeakPasswordError("password is too short")
	}
	if policy.MaxLength > 0 && length > policy.MaxLength {
		return errors.NewWeakPasswordError("password is too long")
	}

	distinct := make(map[rune]struct{})
	var upper, lower, number, symbol bool
	for _, r := range password {
		distinct[r] = struct{}{}
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			number = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}
	if len(distinct) < policy.MinDistinct {
		return errors.NewWeakPasswordError("password must contain more different characters")
	}
	if policy.RequireUppercase && !upper {
		return errors.NewWeakPasswordError("password must contain at least one uppercase letter")
	}
	if policy.RequireLowercase && !lower {
		return errors.NewWeakPasswordError("password must contain at least one lowercase letter")
	}
	if policy.RequireNumbers && !number {
		return errors.NewWeakPasswordError("password must contain at least one number")
	}
	if policy.RequireSymbols && !symbol {
		return errors.NewWeakPasswordError("password must contain at least one symbol")
	}
	return nil
}

// GenerateID returns a random id of at most length hex characters
func GenerateID(length int) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	if length > 0 && length < len(id) {
		return id[:length]
	}
	return id
}

const (
	passwordVowels     = "aeiou0123456789#*"
	passwordConsonants = "bcdfghjklmnpqrstvwxyz"
)

// GeneratePassword returns a random password of length characters built
// from alternating character classes
func GeneratePassword(length int) string {
	if length <= 0 {
		length = 8
	}
	var b strings.Builder
	for i := 0; i < length; i++ {
		if randomInt(2) == 0 {
			c := rune(passwordConsonants[randomInt(len(passwordConsonants))])
			if randomInt(2) == 0 {
				c = unicode.ToUpper(c)
			}
			b.WriteRune(c)
		} else {
			b.WriteByte(passwordVowels[randomInt(len(passwordVowels))])
		}
	}
	return b.String()
}

func randomInt(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return int(n.Int64())
}
