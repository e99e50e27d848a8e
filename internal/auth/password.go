package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters following OWASP recommendations: memory=64MB,
// iterations=3, parallelism=4. Hashing is intentionally the dominant latency
// cost of a login -- never run it while holding a lock.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // 64 MB in KiB
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// rememberTokenBytes is the number of random bytes in a remember-me token.
const rememberTokenBytes = 32

// HashPassword creates an argon2id hash of the given password with a fresh
// random salt, so two calls on the same input never produce the same output.
// The result uses the standard PHC string format:
// $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
// which is self-contained -- no separate salt storage.
//
// HashPassword is unconditional: strength policy is enforced by the caller
// before hashing, never here.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads, b64Salt, b64Hash)

	return encoded, nil
}

// VerifyPassword checks a plaintext password against a PHC-format argon2id
// hash. Returns false on any parse failure; comparison is constant-time.
func VerifyPassword(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false
	}

	var memory uint32
	var iterations uint32
	var parallelism uint8
	_, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism)
	if err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, uint32(len(expectedHash)))

	return subtle.ConstantTimeCompare(expectedHash, computedHash) == 1
}

// PasswordPolicy describes the strength requirements checked at registration
// and password change. The hasher itself accepts anything.
type PasswordPolicy struct {
	MinLength int
}

// Check returns a user-facing message describing the first violated rule, or
// empty string when the password satisfies the policy: minimum length plus at
// least one uppercase letter, lowercase letter, digit, and symbol.
func (p PasswordPolicy) Check(password string) string {
	if len(password) < p.MinLength {
		return fmt.Sprintf("password must be at least %d characters", p.MinLength)
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	switch {
	case !upper:
		return "password must contain an uppercase letter"
	case !lower:
		return "password must contain a lowercase letter"
	case !digit:
		return "password must contain a digit"
	case !symbol:
		return "password must contain a symbol"
	}
	return ""
}

// NewRememberToken generates an opaque remember-me credential. The plaintext
// goes to the client; only the hash is persisted.
func NewRememberToken() (plaintext, hash string, err error) {
	b := make([]byte, rememberTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generating remember token: %w", err)
	}
	plaintext = hex.EncodeToString(b)
	return plaintext, HashToken(plaintext), nil
}

// HashToken returns the hex-encoded SHA-256 of an opaque token. Lookups in
// the store go through this so a database leak never exposes live tokens.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
