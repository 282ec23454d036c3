package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"

	"trackdesk/config"
	"trackdesk/crypto"
	"trackdesk/database"
	"trackdesk/models"
)

// AdminConfig holds configuration for default admin user creation
type AdminConfig struct {
	Enabled  bool
	Username string
	Password string
}

// AdminService seeds and validates the default admin account
type AdminService struct {
	db     database.Database
	config AdminConfig
}

// NewAdminService creates a new admin service
func NewAdminService(db database.Database, cfg *config.Config) *AdminService {
	return &AdminService{
		db: db,
		config: AdminConfig{
			Enabled:  cfg.DefaultAdminEnabled,
			Username: cfg.DefaultAdminUsername,
			Password: cfg.DefaultAdminPassword,
		},
	}
}

// ValidateAdminConfig validates the admin configuration
func (a *AdminService) ValidateAdminConfig() error {
	if !a.config.Enabled {
		return nil
	}

	if a.config.Username == "" {
		return errors.New("admin username cannot be empty")
	}

	if !isValidUsername(a.config.Username) {
		return fmt.Errorf("invalid admin username format: %s", a.config.Username)
	}

	if err := a.validatePassword(a.config.Password); err != nil {
		return fmt.Errorf("admin password validation failed: %w", err)
	}

	return nil
}

// validatePassword ensures the password meets security requirements
func (a *AdminService) validatePassword(password string) error {
	if len(password) < 12 {
		return errors.New("password must be at least 12 characters long")
	}

	if len(password) > 128 {
		return errors.New("password must be less than 128 characters long")
	}

	hasUpper := regexp.MustCompile(`[A-Z]`).MatchString(password)
	hasLower := regexp.MustCompile(`[a-z]`).MatchString(password)
	hasDigit := regexp.MustCompile(`[0-9]`).MatchString(password)

	if !hasUpper {
		return errors.New("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return errors.New("password must contain at least one lowercase letter")
	}
	if !hasDigit {
		return errors.New("password must contain at least one digit")
	}

	return nil
}

// CreateDefaultAdminUser creates the default admin user if enabled
func (a *AdminService) CreateDefaultAdminUser(ctx context.Context) error {
	if !a.config.Enabled {
		log.Println("⏭️ Default admin user creation is disabled")
		return nil
	}

	if err := a.ValidateAdminConfig(); err != nil {
		log.Printf("❌ Admin configuration validation failed: %v", err)
		return fmt.Errorf("admin configuration invalid: %w", err)
	}

	exists, err := a.adminUserExists(ctx)
	if err != nil {
		log.Printf("❌ Failed to check if admin user exists: %v", err)
		return fmt.Errorf("failed to check admin user existence: %w", err)
	}

	if exists {
		log.Printf("ℹ️ Admin user already exists: %s", a.config.Username)
		return nil
	}

	if err := a.createAdminUserInDatabase(ctx); err != nil {
		log.Printf("❌ Failed to create admin user: %v", err)
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	log.Printf("✅ Successfully created default admin user: %s", a.config.Username)
	log.Println("⚠️  Change the default admin password immediately after first login")

	return nil
}

// adminUserExists checks if an admin user already exists with the configured username
func (a *AdminService) adminUserExists(ctx context.Context) (bool, error) {
	var existingAdminID int64
	err := a.db.QueryRow(ctx,
		`SELECT id FROM users WHERE username = $1 AND role = $2`,
		a.config.Username, models.RoleAdmin,
	).Scan(&existingAdminID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("database query failed: %w", err)
}

// createAdminUserInDatabase creates the admin user in the database
func (a *AdminService) createAdminUserInDatabase(ctx context.Context) error {
	var totalUserCount int
	if err := a.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&totalUserCount); err != nil {
		return fmt.Errorf("failed to check existing users: %w", err)
	}
	if totalUserCount == 0 {
		log.Println("🔐 No users found - creating default admin user...")
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	passwordHash := crypto.HashPassword(a.config.Password, salt)

	_, err := a.db.Exec(ctx, `
		INSERT INTO users (username, password_hash, role, must_change_password)
		VALUES ($1, $2, $3, true)
		ON CONFLICT (username) DO NOTHING`,
		a.config.Username, passwordHash, models.RoleAdmin,
	)
	if err != nil {
		return fmt.Errorf("failed to create default admin user: %w", err)
	}

	return nil
}

var usernameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{1,62}$`)

func isValidUsername(username string) bool {
	return usernameRe.MatchString(strings.ToLower(username))
}
