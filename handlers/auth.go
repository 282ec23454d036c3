package handlers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"

	"trackdesk/config"
	"trackdesk/crypto"
	"trackdesk/database"
	"trackdesk/metrics"
	"trackdesk/middleware"
	"trackdesk/utils"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	db     database.Database
	redis  *redis.Client
	crypto *crypto.CryptoService
	config *config.Config
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(db database.Database, redis *redis.Client, cryptoService *crypto.CryptoService, cfg *config.Config) *AuthHandler {
	return &AuthHandler{
		db:     db,
		redis:  redis,
		crypto: cryptoService,
		config: cfg,
	}
}

// SessionData structure for Redis storage
type SessionData struct {
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ChangePasswordRequest represents a password change request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=12"`
}

// Store session in Redis with encrypted metadata
func (h *AuthHandler) storeSessionInRedis(ctx context.Context, sessionID string, userID int64, role, ipAddr, userAgent string, expiresAt time.Time) error {
	sessionData := SessionData{
		UserID:    userID,
		Role:      role,
		IPAddress: ipAddr,
		UserAgent: userAgent,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}

	data, err := json.Marshal(sessionData)
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	encryptedData, err := h.crypto.Encrypt(data)
	if err != nil {
		return fmt.Errorf("failed to encrypt session data: %w", err)
	}

	return h.redis.Set(ctx, "session:"+sessionID, encryptedData, time.Until(expiresAt)).Err()
}

func (h *AuthHandler) deleteSessionFromRedis(ctx context.Context, sessionID string) error {
	return h.redis.Del(ctx, "session:"+sessionID).Err()
}

// Login authenticates a user with username and password.
// Failed attempts escalate into timed lockouts.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}
	if req.Username == "" || req.Password == "" {
		return c.Status(400).JSON(fiber.Map{"error": "Username and password are required"})
	}

	ctx := context.Background()

	var userID int64
	var passwordHash, role string
	var mustChange bool
	var failedAttempts int
	var lockedUntil *time.Time

	err := h.db.QueryRow(ctx, `
        SELECT id, password_hash, role, must_change_password, failed_attempts, locked_until
        FROM users WHERE username = $1`,
		strings.ToLower(strings.TrimSpace(req.Username)),
	).Scan(&userID, &passwordHash, &role, &mustChange, &failedAttempts, &lockedUntil)

	if err != nil {
		metrics.RecordLogin("failure")
		return c.Status(401).JSON(fiber.Map{"error": "Invalid credentials"})
	}

	// Check if account is locked with detailed time remaining
	if lockedUntil != nil && lockedUntil.After(time.Now()) {
		metrics.RecordLogin("locked")
		timeRemaining := time.Until(*lockedUntil)
		return c.Status(423).JSON(fiber.Map{
			"error":               fmt.Sprintf("Account locked due to too many failed login attempts. Please try again in %s.", lockoutMessage(timeRemaining)),
			"locked_until":        lockedUntil.Format(time.RFC3339),
			"retry_after_seconds": int(timeRemaining.Seconds()),
		})
	}

	if !crypto.VerifyPassword(req.Password, passwordHash) {
		failedAttempts++

		var lockDuration time.Duration
		if failedAttempts >= h.config.MaxLoginAttempts+2 {
			lockDuration = 15 * time.Minute
		} else if failedAttempts >= h.config.MaxLoginAttempts+1 {
			lockDuration = 5 * time.Minute
		} else if failedAttempts >= h.config.MaxLoginAttempts {
			lockDuration = 1 * time.Minute
		}

		if lockDuration > 0 {
			lockUntil := time.Now().Add(lockDuration)
			h.db.Exec(ctx, `
                UPDATE users SET failed_attempts = $1, locked_until = $2
                WHERE id = $3`,
				failedAttempts, lockUntil, userID,
			)
			utils.LogAudit(ctx, h.db, userID, "login.locked", "user", userID, c)
			metrics.RecordLogin("locked")

			timeRemaining := time.Until(lockUntil)
			return c.Status(423).JSON(fiber.Map{
				"error":               fmt.Sprintf("Account locked due to too many failed login attempts. Please try again in %s.", lockoutMessage(timeRemaining)),
				"locked_until":        lockUntil.Format(time.RFC3339),
				"retry_after_seconds": int(timeRemaining.Seconds()),
			})
		}

		h.db.Exec(ctx, `UPDATE users SET failed_attempts = $1 WHERE id = $2`, failedAttempts, userID)
		utils.LogAudit(ctx, h.db, userID, "login.failed", "user", userID, c)
		metrics.RecordLogin("failure")

		return c.Status(401).JSON(fiber.Map{"error": "Invalid credentials"})
	}

	// Reset failed attempts and update last login
	h.db.Exec(ctx, `
        UPDATE users SET failed_attempts = 0, locked_until = NULL, last_login = NOW()
        WHERE id = $1`,
		userID,
	)

	// Generate session
	sessionToken := make([]byte, 32)
	if _, err := rand.Read(sessionToken); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Session creation failed"})
	}
	sessionID := hex.EncodeToString(sessionToken)

	expiresAt := time.Now().Add(h.config.SessionDuration)
	if err := h.storeSessionInRedis(ctx, sessionID, userID, role, utils.ClientIP(c), c.Get("User-Agent"), expiresAt); err != nil {
		log.Printf("Failed to store session in Redis: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "Session creation failed"})
	}

	utils.LogAudit(ctx, h.db, userID, "login.success", "user", userID, c)
	metrics.RecordLogin("success")

	token, err := h.generateToken(userID, role, sessionID, expiresAt)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Token generation failed"})
	}

	c.Cookie(&fiber.Cookie{
		Name:     "token",
		Value:    token,
		Expires:  expiresAt,
		HTTPOnly: true,
		Secure:   config.GetEnvOrDefault("APP_ENV", "development") == "production",
		SameSite: "Strict",
		Path:     "/",
	})

	return c.JSON(fiber.Map{
		"token":                token,
		"user_id":              userID,
		"role":                 role,
		"must_change_password": mustChange,
	})
}

// Logout revokes the current session and clears the auth cookie
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	userID, _ := middleware.GetUserIDFromToken(c)

	if sessionID := h.sessionIDFromRequest(c); sessionID != "" {
		if err := h.deleteSessionFromRedis(c.Context(), sessionID); err != nil {
			log.Printf("Failed to delete session from Redis: %v", err)
		}
	}

	c.Cookie(&fiber.Cookie{
		Name:     "token",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Path:     "/",
	})

	utils.LogAudit(c.Context(), h.db, userID, "logout", "user", userID, c)
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// Me returns the authenticated user's profile
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, err := middleware.GetUserIDFromToken(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var username, role string
	var clientName, companyName, contact *string
	var mustChange bool
	var createdAt time.Time

	err = h.db.QueryRow(c.Context(), `
        SELECT username, role, client_name, company_name, contact, must_change_password, created_at
        FROM users WHERE id = $1`,
		userID,
	).Scan(&username, &role, &clientName, &companyName, &contact, &mustChange, &createdAt)
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "User not found"})
	}

	return c.JSON(fiber.Map{
		"id":                   userID,
		"username":             username,
		"role":                 role,
		"client_name":          clientName,
		"company_name":         companyName,
		"contact":              contact,
		"must_change_password": mustChange,
		"created_at":           createdAt,
	})
}

// ChangePassword rotates the caller's password after verifying the current one
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	userID, err := middleware.GetUserIDFromToken(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}
	if err := validateNewPassword(req.NewPassword); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": err.Error()})
	}

	ctx := context.Background()

	var passwordHash string
	if err := h.db.QueryRow(ctx, `SELECT password_hash FROM users WHERE id = $1`, userID).Scan(&passwordHash); err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "User not found"})
	}
	if !crypto.VerifyPassword(req.CurrentPassword, passwordHash) {
		return c.Status(401).JSON(fiber.Map{"error": "Current password is incorrect"})
	}

	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to generate credentials"})
	}
	newHash := crypto.HashPassword(req.NewPassword, salt)

	if _, err := h.db.Exec(ctx, `
        UPDATE users SET password_hash = $1, must_change_password = false
        WHERE id = $2`,
		newHash, userID,
	); err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Password update failed"})
	}

	utils.LogAudit(ctx, h.db, userID, "password.changed", "user", userID, c)
	return c.JSON(fiber.Map{"message": "Password updated"})
}

func (h *AuthHandler) generateToken(userID int64, role, sessionID string, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"session": sessionID,
		"exp":     expiresAt.Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString(h.config.JWTSecret)
}

// sessionIDFromRequest re-parses the presented token to recover the session claim
func (h *AuthHandler) sessionIDFromRequest(c *fiber.Ctx) string {
	tokenStr := c.Cookies("token")
	if tokenStr == "" {
		tokenStr = strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	}
	if tokenStr == "" {
		return ""
	}
	parsed, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return h.config.JWTSecret, nil
	})
	if err != nil || !parsed.Valid {
		return ""
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	sessionID, _ := claims["session"].(string)
	return sessionID
}

func lockoutMessage(remaining time.Duration) string {
	minutes := int(remaining.Minutes())
	seconds := int(remaining.Seconds()) % 60
	if minutes > 0 {
		return fmt.Sprintf("%d minutes and %d seconds", minutes, seconds)
	}
	return fmt.Sprintf("%d seconds", seconds)
}

func validateNewPassword(password string) error {
	if len(password) < 12 {
		return fmt.Errorf("password must be at least 12 characters long")
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("password must contain uppercase, lowercase, and numeric characters")
	}
	return nil
}
