package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/assignment-engine/pkg/util/errorutil"
)

// RequireAdmin ensures the caller is an administrator.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		member, ok := MemberFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !member.Admin {
			return apperrors.NewForbidden("admin role required")
		}
		return c.Next()
	}
}

// RequireMember ensures the caller is authenticated.
func RequireMember() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := MemberFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
