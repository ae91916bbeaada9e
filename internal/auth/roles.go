package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/points-ledger/internal/domain"
	apperrors "github.com/spec-kit/points-ledger/pkg/util/errorutil"
)

// RequireRole ensures the caller ranks at or above min.
func RequireRole(min domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.Role().AtLeast(min) {
			return apperrors.NewForbidden("insufficient role")
		}
		return c.Next()
	}
}

// RequireAny ensures the caller is authenticated.
func RequireAny() fiber.Handler {
	return RequireRole(domain.RoleRegular)
}
