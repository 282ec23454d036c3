package utils

import (
	"context"
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
)

// AuditExecer is the minimal database surface the audit helper needs
type AuditExecer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// LogAudit records an action in the audit log with the caller's IP and user
// agent. Failures are logged and swallowed: auditing must never fail the
// request that triggered it.
func LogAudit(ctx context.Context, db AuditExecer, userID int64, action, resource string, resourceID int64, c *fiber.Ctx) {
	metadata, err := json.Marshal(map[string]int64{"resource_id": resourceID})
	if err != nil {
		metadata = []byte("{}")
	}

	var ip, userAgent interface{}
	if c != nil {
		if v := ClientIP(c); v != "" {
			ip = v
		}
		if v := c.Get("User-Agent"); v != "" {
			userAgent = v
		}
	}

	_, err = db.Exec(ctx, `
        INSERT INTO audit_log (user_id, action, resource, ip_address, user_agent, metadata)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		userID, action, resource, ip, userAgent, metadata)
	if err != nil {
		LogError("audit log write failed", err, "action", action, "resource", resource)
	}
}

// Min returns the smaller of two integers
func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of two integers
func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
