package auth

import (
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

// DefaultTokenTTL is the session lifetime used when none is configured.
const DefaultTokenTTL = 24 * time.Hour

// legacySecretPlaceholder is the value older deployments shipped in .env
// files. It is treated the same as an unset secret.
const legacySecretPlaceholder = "dev_secret_key"

const generatedSecretLength = 32

// Claims is the JWT payload carried by session tokens.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithTokenClock overrides the clock used for iat/exp and validation.
func WithTokenClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenService constructs a TokenService. A non-positive ttl falls back
// to DefaultTokenTTL.
func NewTokenService(secret []byte, ttl time.Duration, opts ...TokenOption) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, oops.Code(CodeInternal).Errorf("token secret cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	s := &TokenService{secret: secret, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue mints a token for subject with the given role.
func (s *TokenService) Issue(subject, role string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", oops.Code(CodeInternal).Errorf("token subject cannot be empty")
	}

	now := s.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", Internal("sign token", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of tokenString and returns its
// claims. Expired tokens fail with CodeTokenExpired; everything else that is
// wrong with a token fails with CodeTokenInvalid.
func (s *TokenService) Verify(tokenString string) (Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, oops.Code(CodeTokenExpired).With("reason", err.Error()).Errorf("Token has expired")
		}
		return Claims{}, oops.Code(CodeTokenInvalid).With("reason", err.Error()).Errorf("Invalid token")
	}
	if !token.Valid {
		return Claims{}, oops.Code(CodeTokenInvalid).Errorf("Invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, oops.Code(CodeTokenInvalid).Errorf("Invalid token")
	}
	return claims, nil
}

// ResolveSecret returns the signing secret for the configured value. Outside
// production an empty or placeholder value is replaced by a random
// per-process secret and generated is true. In production it is an error.
func ResolveSecret(configured string, production bool) (secret []byte, generated bool, err error) {
	configured = strings.TrimSpace(configured)
	if configured != "" && configured != legacySecretPlaceholder {
		return []byte(configured), false, nil
	}
	if production {
		return nil, false, oops.Code(CodeInternal).Errorf("SECRET_KEY must be set in production")
	}

	buf := make([]byte, generatedSecretLength)
	if _, err := rand.Read(buf); err != nil {
		return nil, false, oops.Code(CodeInternal).Wrapf(err, "generate secret")
	}
	return buf, true, nil
}
