// trackdesk - client project tracking dashboard backend.
//
// main.go boots the stack: config, PostgreSQL with automatic migrations,
// Redis sessions, the file store for note attachments, and the Fiber app.
package main

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	appconfig "trackdesk/config"
	appcrypto "trackdesk/crypto"
	"trackdesk/database"
	appserver "trackdesk/server"
	"trackdesk/services"
	"trackdesk/storage"
	"trackdesk/utils"
)

func main() {
	// Initialize logging
	utils.InitLogging()

	// Load configuration
	config := appconfig.LoadConfig()
	utils.TrustProxyHeaders.Store(config.TrustProxyHeaders)
	appconfig.TrustProxyHeadersFlag.Store(config.TrustProxyHeaders)

	// Track application start time for uptime calculation
	startTime := time.Now()

	// Setup database with automatic migrations
	db, err := database.SetupDatabase(config.DatabaseURL)
	if err != nil {
		log.Fatal("Database setup failed:", err)
	}
	defer db.Close()

	// Setup Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.RedisURL,
		Password: config.RedisPassword,
		DB:       0,
	})
	defer rdb.Close()

	// Initialize crypto service for session encryption
	crypto := appcrypto.NewCryptoService(config.EncryptionKey)

	readyState := appserver.NewReadyState(db, crypto, config, rdb)

	// Verify Redis connectivity
	{
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("⚠️ Redis not reachable at startup: %v", err)
		} else {
			readyState.MarkRedisReady()
		}
		cancel()
	}

	// Prepare the attachment file store
	files, err := storage.NewDiskStore(config.UploadDir)
	if err != nil {
		log.Fatal("Upload directory setup failed:", err)
	}
	readyState.MarkUploadsReady()

	// Seed the default admin account
	adminSvc := services.NewAdminService(db, config)
	if err := adminSvc.ValidateAdminConfig(); err != nil {
		log.Fatalf("💥 Invalid admin configuration: %v", err)
	}
	{
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := adminSvc.CreateDefaultAdminUser(ctx); err != nil {
			log.Printf("⚠️ Failed to create default admin user: %v", err)
		} else {
			readyState.MarkAdminReady()
		}
		cancel()
	}

	// Create Fiber app and wire routes
	app := appserver.CreateFiberApp(startTime, readyState)
	setupRoutes(app, db, rdb, crypto, files, config, startTime, readyState)

	// Serve
	if err := appserver.ListenWithIPv6Fallback(app, config.Port, startTime); err != nil {
		log.Fatal("Server failed to start:", err)
	}
}
