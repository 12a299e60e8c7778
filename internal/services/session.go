package services

import (
	"context"
	"errors"
	"strings"

	"github.com/debugmarathon/apiserver/internal/auth"
	"github.com/debugmarathon/apiserver/internal/store"
	"github.com/debugmarathon/apiserver/types"
)

// SessionResolver turns a bearer token into the live identity of its
// subject.
type SessionResolver struct {
	users  UserRepository
	tokens *auth.TokenService
}

func NewSessionResolver(users UserRepository, tokens *auth.TokenService) *SessionResolver {
	return &SessionResolver{users: users, tokens: tokens}
}

// Resolve verifies the Authorization header value and re-reads the subject
// so role and status reflect the current row rather than the token.
func (s *SessionResolver) Resolve(ctx context.Context, authorization string) (types.Identity, error) {
	raw, err := BearerToken(authorization)
	if err != nil {
		return types.Identity{}, err
	}

	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return types.Identity{}, err
	}

	user, err := s.users.GetByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Identity{}, auth.ErrNotFound("User not found")
		}
		return types.Identity{}, auth.Internal("load session user", err)
	}

	return types.IdentityFromUser(user), nil
}

// RequireRole fails with FORBIDDEN unless identity has the given role.
// Staff roles additionally need an approved account, so a revoked admin
// loses access on the next request instead of when the token expires.
func RequireRole(identity types.Identity, role string) error {
	if identity.Role != role {
		return auth.ErrForbidden("Access denied")
	}
	if isStaffRole(role) && identity.AdminStatus != types.AdminStatusApproved {
		return auth.ErrForbidden("Access denied")
	}
	return nil
}

func isStaffRole(role string) bool {
	return role == types.RoleAdmin || role == types.RoleLeader
}

// BearerToken extracts the token from an Authorization header value of the
// form "Bearer <token>".
func BearerToken(authorization string) (string, error) {
	authorization = strings.TrimSpace(authorization)
	if authorization == "" {
		return "", auth.ErrUnauthorized("Authorization required")
	}
	parts := strings.Split(authorization, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", auth.ErrUnauthorized("Invalid authorization header")
	}
	return parts[1], nil
}
