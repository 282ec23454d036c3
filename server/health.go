package server

import (
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"trackdesk/config"
)

// CryptoService interface defines cryptographic operations needed by the server
type CryptoService interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// ReadyState tracks initialization state for health checks
type ReadyState struct {
	db           *pgxpool.Pool
	crypto       CryptoService
	config       *config.Config
	rdb          *redis.Client
	adminReady   atomic.Bool
	uploadsReady atomic.Bool
	redisReady   atomic.Bool
}

// NewReadyState creates a new ReadyState instance
func NewReadyState(db *pgxpool.Pool, crypto CryptoService, cfg *config.Config, rdb *redis.Client) *ReadyState {
	return &ReadyState{
		db:     db,
		crypto: crypto,
		config: cfg,
		rdb:    rdb,
	}
}

// MarkAdminReady marks the default admin seeding as complete
func (r *ReadyState) MarkAdminReady() {
	r.adminReady.Store(true)
}

// MarkUploadsReady marks the upload directory initialization as complete
func (r *ReadyState) MarkUploadsReady() {
	r.uploadsReady.Store(true)
}

// MarkRedisReady marks the Redis initialization as complete
func (r *ReadyState) MarkRedisReady() {
	r.redisReady.Store(true)
}

// IsFullyReady returns true if all initialization steps are complete
func (r *ReadyState) IsFullyReady() bool {
	return r.adminReady.Load() &&
		r.uploadsReady.Load() &&
		r.redisReady.Load()
}

// GetDB returns the database connection pool
func (r *ReadyState) GetDB() *pgxpool.Pool {
	return r.db
}

// GetRedis returns the Redis client
func (r *ReadyState) GetRedis() *redis.Client {
	return r.rdb
}

// GetConfig returns the application configuration
func (r *ReadyState) GetConfig() *config.Config {
	return r.config
}

// GetCrypto returns the crypto service
func (r *ReadyState) GetCrypto() CryptoService {
	return r.crypto
}

// IsAdminReady returns true if admin seeding is complete
func (r *ReadyState) IsAdminReady() bool {
	return r.adminReady.Load()
}

// IsUploadsReady returns true if the upload directory is ready
func (r *ReadyState) IsUploadsReady() bool {
	return r.uploadsReady.Load()
}

// IsRedisReady returns true if Redis initialization is complete
func (r *ReadyState) IsRedisReady() bool {
	return r.redisReady.Load()
}
