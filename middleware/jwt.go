package middleware

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

// CryptoService interface for encryption operations
type CryptoService interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// JWTMiddleware creates a Fiber middleware for JWT token validation.
// It accepts the token from the "token" cookie or the Authorization header,
// validates the signature, checks the Redis session, and sets user context.
func JWTMiddleware(secret []byte, rdb *redis.Client, crypto CryptoService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies("token")
		if token == "" {
			token = strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
		}
		if token == "" {
			return c.Status(401).JSON(fiber.Map{"error": "Missing authorization"})
		}

		parsed, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return secret, nil
		})

		if err != nil || !parsed.Valid {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid token"})
		}

		claims := parsed.Claims.(jwt.MapClaims)

		userID, err := userIDFromClaims(claims)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "Invalid user_id claim"})
		}

		role, _ := claims["role"].(string)
		if role == "" {
			return c.Status(401).JSON(fiber.Map{"error": "Missing role claim"})
		}

		// Session claim binds the token to a revocable server-side session.
		sessionID, _ := claims["session"].(string)
		if sessionID == "" {
			return c.Status(401).JSON(fiber.Map{"error": "Missing session claim"})
		}

		encrypted, err := rdb.Get(c.Context(), "session:"+sessionID).Bytes()
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "Session expired"})
		}
		payload, err := crypto.Decrypt(encrypted)
		if err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "Session expired"})
		}
		var session sessionPayload
		if err := json.Unmarshal(payload, &session); err != nil {
			return c.Status(401).JSON(fiber.Map{"error": "Session expired"})
		}
		if session.UserID != userID || time.Now().After(session.ExpiresAt) {
			rdb.Del(c.Context(), "session:"+sessionID)
			return c.Status(401).JSON(fiber.Map{"error": "Session expired"})
		}

		// Set user context for subsequent middleware and handlers
		c.Locals("user_id", userID)
		c.Locals("role", role)

		return c.Next()
	}
}

// sessionPayload is the decrypted shape of a Redis session entry
type sessionPayload struct {
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

// userIDFromClaims extracts the numeric user_id claim. JSON numbers decode
// as float64, but string ids are tolerated for forward compatibility.
func userIDFromClaims(claims jwt.MapClaims) (int64, error) {
	v, exists := claims["user_id"]
	if !exists {
		return 0, fmt.Errorf("missing user_id claim")
	}
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case string:
		return strconv.ParseInt(t, 10, 64)
	default:
		return 0, fmt.Errorf("invalid user_id claim type %T", v)
	}
}
