// Package auth holds the access-control primitives: password verification,
// login rate limiting and session tokens.
package auth

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"hash"
	"math/big"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// Scheme identifies how a stored password hash was produced.
type Scheme string

const (
	SchemeSHA256  Scheme = "sha256"
	SchemeScrypt  Scheme = "scrypt"
	SchemePBKDF2  Scheme = "pbkdf2"
	SchemeUnknown Scheme = "unknown"
)

// Encoding parameters. The formats match the Werkzeug encodings already
// present in the users table: "<method>$<salt>$<hex digest>".
const (
	DefaultPBKDF2Iterations = 600000
	defaultPBKDF2Digest     = "sha256"

	defaultScryptN = 1 << 15
	defaultScryptR = 8
	defaultScryptP = 1
	scryptKeyLen   = 64

	saltLength = 16
	saltChars  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// Upper bounds on parameters read from stored hashes.
	maxPBKDF2Iterations = 10_000_000
	maxScryptN          = 1 << 20
)

// dummyHash is verified when an account does not exist so that a missing
// username costs the same as a wrong password. It never matches.
//
//nolint:gosec // G101: not a credential.
const dummyHash = "pbkdf2:sha256:600000$AAAAAAAAAAAAAAAA$0000000000000000000000000000000000000000000000000000000000000000"

// ParseScheme converts a scheme name to a Scheme.
func ParseScheme(name string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(name))) {
	case "", SchemePBKDF2:
		return SchemePBKDF2, nil
	case SchemeScrypt:
		return SchemeScrypt, nil
	case SchemeSHA256:
		return SchemeSHA256, nil
	default:
		return "", oops.Code(CodeValidation).Errorf("unsupported password scheme %q", name)
	}
}

// Classify detects the scheme of a stored hash from its shape alone.
func Classify(stored string) Scheme {
	switch {
	case isLegacySHA256(stored):
		return SchemeSHA256
	case strings.HasPrefix(stored, "scrypt:"):
		return SchemeScrypt
	case strings.HasPrefix(stored, "pbkdf2:"):
		return SchemePBKDF2
	default:
		return SchemeUnknown
	}
}

func isLegacySHA256(stored string) bool {
	if len(stored) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(stored)
	return err == nil
}

// PasswordVerifier hashes and verifies passwords across the legacy SHA-256,
// scrypt and PBKDF2 encodings.
type PasswordVerifier struct {
	iterations int
}

// VerifierOption configures a PasswordVerifier.
type VerifierOption func(*PasswordVerifier)

// WithPBKDF2Iterations sets the iteration count used for new PBKDF2 hashes.
// Verification always uses the count embedded in the stored hash.
func WithPBKDF2Iterations(n int) VerifierOption {
	return func(v *PasswordVerifier) {
		if n > 0 {
			v.iterations = n
		}
	}
}

func NewPasswordVerifier(opts ...VerifierOption) *PasswordVerifier {
	v := &PasswordVerifier{iterations: DefaultPBKDF2Iterations}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify reports whether plaintext matches the stored hash. Malformed hashes
// and derivation failures are treated as a mismatch.
func (v *PasswordVerifier) Verify(plaintext, stored string) bool {
	if plaintext == "" || stored == "" {
		return false
	}

	switch Classify(stored) {
	case SchemeSHA256:
		sum := sha256.Sum256([]byte(plaintext))
		computed := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(stored))) == 1
	case SchemeScrypt:
		ok, err := verifyScrypt(plaintext, stored)
		return err == nil && ok
	default:
		ok, err := verifyPBKDF2(plaintext, stored)
		return err == nil && ok
	}
}

// VerifyDummy burns the same work as a PBKDF2 verification and always
// returns false.
func (v *PasswordVerifier) VerifyDummy(plaintext string) bool {
	_, _ = verifyPBKDF2(plaintext, dummyHash)
	return false
}

// Hash encodes plaintext with the given scheme. New credentials should use
// SchemePBKDF2; the other schemes exist for fixtures and tooling.
func (v *PasswordVerifier) Hash(plaintext string, scheme Scheme) (string, error) {
	if plaintext == "" {
		return "", oops.Code(CodeValidation).Errorf("password cannot be empty")
	}

	switch scheme {
	case SchemeSHA256:
		sum := sha256.Sum256([]byte(plaintext))
		return hex.EncodeToString(sum[:]), nil
	case SchemeScrypt:
		salt, err := generateSalt(saltLength)
		if err != nil {
			return "", err
		}
		key, err := scrypt.Key([]byte(plaintext), []byte(salt), defaultScryptN, defaultScryptR, defaultScryptP, scryptKeyLen)
		if err != nil {
			return "", oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
		}
		method := fmt.Sprintf("scrypt:%d:%d:%d", defaultScryptN, defaultScryptR, defaultScryptP)
		return method + "$" + salt + "$" + hex.EncodeToString(key), nil
	case SchemePBKDF2, "":
		salt, err := generateSalt(saltLength)
		if err != nil {
			return "", err
		}
		newHash, size, _ := digestFunc(defaultPBKDF2Digest)
		key := pbkdf2.Key([]byte(plaintext), []byte(salt), v.iterations, size, newHash)
		method := fmt.Sprintf("pbkdf2:%s:%d", defaultPBKDF2Digest, v.iterations)
		return method + "$" + salt + "$" + hex.EncodeToString(key), nil
	default:
		return "", oops.Code(CodeValidation).Errorf("unsupported password scheme %q", scheme)
	}
}

func splitEncoded(stored string) (method, salt, digest string, err error) {
	parts := strings.SplitN(stored, "$", 3)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", "", "", oops.Code("PASSWORD_HASH_MALFORMED").Errorf("malformed password hash")
	}
	return parts[0], parts[1], parts[2], nil
}

func verifyPBKDF2(plaintext, stored string) (bool, error) {
	method, salt, digest, err := splitEncoded(stored)
	if err != nil {
		return false, err
	}

	args := strings.Split(method, ":")
	if args[0] != "pbkdf2" || len(args) > 3 {
		return false, oops.Code("PASSWORD_HASH_MALFORMED").Errorf("unsupported method %q", args[0])
	}
	digestName := defaultPBKDF2Digest
	if len(args) >= 2 {
		digestName = args[1]
	}
	iterations := DefaultPBKDF2Iterations
	if len(args) == 3 {
		iterations, err = strconv.Atoi(args[2])
		if err != nil || iterations < 1 || iterations > maxPBKDF2Iterations {
			return false, oops.Code("PASSWORD_HASH_MALFORMED").Errorf("invalid iteration count %q", args[2])
		}
	}

	newHash, size, err := digestFunc(digestName)
	if err != nil {
		return false, err
	}

	key := pbkdf2.Key([]byte(plaintext), []byte(salt), iterations, size, newHash)
	return constantTimeHexEqual(key, digest), nil
}

func verifyScrypt(plaintext, stored string) (bool, error) {
	method, salt, digest, err := splitEncoded(stored)
	if err != nil {
		return false, err
	}

	args := strings.Split(method, ":")
	if args[0] != "scrypt" || len(args) > 4 {
		return false, oops.Code("PASSWORD_HASH_MALFORMED").Errorf("unsupported method %q", args[0])
	}
	params := []int{defaultScryptN, defaultScryptR, defaultScryptP}
	if len(args) > 1 {
		if len(args) != 4 {
			return false, oops.Code("PASSWORD_HASH_MALFORMED").Errorf("scrypt needs n, r and p")
		}
		for i, raw := range args[1:] {
			n, convErr := strconv.Atoi(raw)
			if convErr != nil || n < 1 {
				return false, oops.Code("PASSWORD_HASH_MALFORMED").Errorf("invalid scrypt parameter %q", raw)
			}
			params[i] = n
		}
	}
	if params[0] > maxScryptN {
		return false, oops.Code("PASSWORD_HASH_MALFORMED").Errorf("scrypt cost %d too large", params[0])
	}

	key, err := scrypt.Key([]byte(plaintext), []byte(salt), params[0], params[1], params[2], scryptKeyLen)
	if err != nil {
		return false, oops.Code("PASSWORD_HASH_MALFORMED").Wrap(err)
	}
	return constantTimeHexEqual(key, digest), nil
}

func digestFunc(name string) (func() hash.Hash, int, error) {
	switch strings.ToLower(name) {
	case "sha1":
		return sha1.New, sha1.Size, nil
	case "sha256":
		return sha256.New, sha256.Size, nil
	case "sha512":
		return sha512.New, sha512.Size, nil
	default:
		return nil, 0, oops.Code("PASSWORD_HASH_MALFORMED").Errorf("unsupported digest %q", name)
	}
}

func constantTimeHexEqual(key []byte, digest string) bool {
	computed := hex.EncodeToString(key)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(strings.ToLower(digest))) == 1
}

func generateSalt(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	limit := big.NewInt(int64(len(saltChars)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", oops.Code("PASSWORD_SALT_FAILED").Wrap(err)
		}
		b.WriteByte(saltChars[idx.Int64()])
	}
	return b.String(), nil
}
