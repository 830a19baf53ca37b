package auth

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/assignment-engine/internal/directory"
	"github.com/spec-kit/assignment-engine/internal/domain"
	apperrors "github.com/spec-kit/assignment-engine/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// AuthMiddleware validates bearer tokens and loads the acting member.
type AuthMiddleware struct {
	tokens  *TokenManager
	members directory.RoleDirectory
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, members directory.RoleDirectory) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, members: members}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	member, err := m.members.GetMember(c.UserContext(), claims.Subject)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return apperrors.NewUnauthorized("member not found")
		}
		return apperrors.MapError(err)
	}
	if !member.Active {
		return apperrors.NewUnauthorized("member inactive")
	}

	c.Locals(principalKey, member)
	return c.Next()
}

// MemberFromContext retrieves the authenticated member.
func MemberFromContext(c *fiber.Ctx) (*domain.Member, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	member, ok := val.(*domain.Member)
	return member, ok
}
