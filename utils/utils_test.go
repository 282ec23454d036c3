package utils

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"trackdesk/database"
)

type mockExecer struct {
	mock.Mock
}

func (m *mockExecer) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	mockArgs := m.Called(append([]interface{}{ctx, sql}, args...)...)
	return pgconn.NewCommandTag(mockArgs.String(0)), mockArgs.Error(1)
}

func TestLogAudit(t *testing.T) {
	InitLogging()
	ctx := context.Background()

	t.Run("Writes audit row", func(t *testing.T) {
		db := new(mockExecer)
		db.On("Exec", ctx, mock.Anything, int64(1), "delete", "note",
			nil, nil, []byte(`{"resource_id":9}`)).
			Return("INSERT 0 1", nil)

		LogAudit(ctx, db, 1, "delete", "note", 9, nil)
		db.AssertExpectations(t)
	})

	t.Run("Swallows database errors", func(t *testing.T) {
		db := new(mockExecer)
		db.On("Exec", ctx, mock.Anything, int64(1), "create", "task",
			nil, nil, mock.Anything).
			Return("", errors.New("connection reset"))

		// Must not panic or propagate
		LogAudit(ctx, db, 1, "create", "task", 3, nil)
		db.AssertExpectations(t)
	})

	t.Run("Insert columns exist in the schema", func(t *testing.T) {
		db := new(mockExecer)
		var capturedSQL string
		db.On("Exec", ctx, mock.Anything, int64(1), "delete", "note",
			nil, nil, mock.Anything).
			Run(func(args mock.Arguments) {
				capturedSQL = args.String(1)
			}).
			Return("INSERT 0 1", nil)

		LogAudit(ctx, db, 1, "delete", "note", 9, nil)

		start := strings.Index(capturedSQL, "(")
		end := strings.Index(capturedSQL, ")")
		require.True(t, start > 0 && end > start, "insert must list its columns")

		tableDef := auditTableDefinition(t)
		for _, col := range strings.Split(capturedSQL[start+1:end], ",") {
			col = strings.TrimSpace(col)
			assert.Contains(t, tableDef, col+" ", "audit_log does not define column %q", col)
		}
	})
}

// auditTableDefinition extracts the audit_log CREATE TABLE block from the
// schema so tests can pin insert columns to it.
func auditTableDefinition(t *testing.T) string {
	t.Helper()
	start := strings.Index(database.DatabaseSchema, "CREATE TABLE IF NOT EXISTS audit_log")
	require.True(t, start >= 0, "schema must define audit_log")
	rest := database.DatabaseSchema[start:]
	end := strings.Index(rest, ");")
	require.True(t, end > 0)
	return rest[:end]
}

func TestMin(t *testing.T) {
	tests := []struct {
		name     string
		a        int
		b        int
		expected int
	}{
		{"a less than b", 5, 10, 5},
		{"b less than a", 10, 5, 5},
		{"equal values", 7, 7, 7},
		{"negative numbers", -5, -10, -10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Min(tt.a, tt.b))
		})
	}
}

func TestMax(t *testing.T) {
	tests := []struct {
		name     string
		a        int
		b        int
		expected int
	}{
		{"a greater than b", 10, 5, 10},
		{"b greater than a", 5, 10, 10},
		{"equal values", 7, 7, 7},
		{"negative numbers", -5, -10, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Max(tt.a, tt.b))
		})
	}
}

// Test logging.go functions

func TestInitLogging(t *testing.T) {
	InitLogging()
	require.NotNil(t, InfoLogger)
	require.NotNil(t, ErrorLogger)
}

func TestLogError(t *testing.T) {
	InitLogging()
	// nil error is a no-op
	LogError("context", nil)
	LogError("context", errors.New("boom"), "key", "value")
}

func TestLogRequestError(t *testing.T) {
	InitLogging()
	app := fiber.New()
	app.Get("/boom", func(c *fiber.Ctx) error {
		c.Locals("request_id", "req-1")
		c.Locals("user_id", int64(7))
		LogRequestError(c, "handler failed", errors.New("boom"))
		return c.SendString("ok")
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/boom", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}

// Test network.go functions

func TestIsPublicIP(t *testing.T) {
	tests := []struct {
		name     string
		ip       string
		expected bool
	}{
		{"Public IPv4", "8.8.8.8", true},
		{"Private 10.x", "10.1.2.3", false},
		{"Private 172.16.x", "172.16.0.1", false},
		{"Private 192.168.x", "192.168.1.1", false},
		{"Loopback", "127.0.0.1", false},
		{"IPv6 loopback", "::1", false},
		{"IPv6 link local", "fe80::1", false},
		{"Public IPv6", "2001:4860:4860::8888", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsPublicIP(net.ParseIP(tt.ip)))
		})
	}
}

func TestClientIP(t *testing.T) {
	newApp := func(out *string) *fiber.App {
		app := fiber.New()
		app.Get("/ip", func(c *fiber.Ctx) error {
			*out = ClientIP(c)
			return c.SendString("ok")
		})
		return app
	}

	t.Run("Ignores proxy headers when trust disabled", func(t *testing.T) {
		TrustProxyHeaders.Store(false)
		var got string
		req := httptest.NewRequest("GET", "/ip", nil)
		req.Header.Set("X-Forwarded-For", "8.8.8.8")
		_, err := newApp(&got).Test(req, -1)
		require.NoError(t, err)
		assert.NotEqual(t, "8.8.8.8", got)
	})

	t.Run("Prefers first public forwarded address", func(t *testing.T) {
		TrustProxyHeaders.Store(true)
		defer TrustProxyHeaders.Store(false)
		var got string
		req := httptest.NewRequest("GET", "/ip", nil)
		req.Header.Set("X-Forwarded-For", "192.168.1.5, 8.8.8.8, 1.1.1.1")
		_, err := newApp(&got).Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, "8.8.8.8", got)
	})

	t.Run("CF-Connecting-IP wins when trusted", func(t *testing.T) {
		TrustProxyHeaders.Store(true)
		defer TrustProxyHeaders.Store(false)
		var got string
		req := httptest.NewRequest("GET", "/ip", nil)
		req.Header.Set("CF-Connecting-IP", "9.9.9.9")
		req.Header.Set("X-Forwarded-For", "8.8.8.8")
		_, err := newApp(&got).Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, "9.9.9.9", got)
	})
}

func TestMain(m *testing.M) {
	InitLogging()
	os.Exit(m.Run())
}
