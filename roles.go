package auth

import (
	"github.com/gofiber/fiber/v2"
)

// IsValidRole reports whether the role is one of the predefined roles.
func IsValidRole(r UserRole) bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperuser:
		return true
	default:
		return false
	}
}

// IsAdmin reports whether the role may use the administrative login path.
func IsAdmin(r UserRole) bool {
	return r == RoleAdmin
}

// IsSuperuser reports whether the role may manage other accounts. Any
// elevated role qualifies, only plain users are excluded.
func IsSuperuser(r UserRole) bool {
	return r != RoleUser && IsValidRole(r)
}

// RequireAdmin is a guard for routes behind the Authorizer: it rejects
// any caller whose account does not hold the admin role.
func RequireAdmin() fiber.Handler {
	return requireRole(IsAdmin)
}

// RequireSuperuser rejects callers holding the plain user role.
func RequireSuperuser() fiber.Handler {
	return requireRole(IsSuperuser)
}

func requireRole(allowed func(UserRole) bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authCtx, ok := AuthFromFiber(c)
		if !ok || authCtx.User == nil || !allowed(authCtx.User.Role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": TextCodeInsufficientPerms,
			})
		}
		return c.Next()
	}
}
