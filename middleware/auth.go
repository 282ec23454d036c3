package middleware

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"trackdesk/models"
)

// Database interface for database operations
type Database interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// GetUserIDFromToken extracts the authenticated user id from the Fiber context
func GetUserIDFromToken(c *fiber.Ctx) (int64, error) {
	userID, ok := c.Locals("user_id").(int64)
	if !ok {
		return 0, fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// GetRoleFromToken extracts the authenticated user's role from the Fiber context
func GetRoleFromToken(c *fiber.Ctx) (string, error) {
	role, ok := c.Locals("role").(string)
	if !ok || role == "" {
		return "", fmt.Errorf("role not found in context")
	}
	return role, nil
}

// RequireRole creates a Fiber middleware that checks if the authenticated user
// has the required role. Admins pass every role check.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := GetUserIDFromToken(c); err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
		}
		current, err := GetRoleFromToken(c)
		if err != nil {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
		}
		if current != role && current != models.RoleAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
		}
		return c.Next()
	}
}

// RequireAdmin gates a route to admin users only
func RequireAdmin() fiber.Handler {
	return RequireRole(models.RoleAdmin)
}

// HasRole checks a user's role against the database. Used where the request
// context is not available, e.g. during session issuance.
func HasRole(ctx context.Context, db Database, userID int64, role string) bool {
	var current string
	if err := db.QueryRow(ctx, "SELECT role FROM users WHERE id = $1", userID).Scan(&current); err != nil {
		return false
	}
	return current == role || current == models.RoleAdmin
}
