package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"trackdesk/authz"
	appconfig "trackdesk/config"
	appcrypto "trackdesk/crypto"
	"trackdesk/handlers"
	"trackdesk/metrics"
	"trackdesk/middleware"
	appserver "trackdesk/server"
	"trackdesk/services"
	"trackdesk/storage"
)

// setupRoutes configures all API routes and middleware for the application
func setupRoutes(app *fiber.App, db *pgxpool.Pool, rdb *redis.Client, crypto *appcrypto.CryptoService, files storage.FileStore, config *appconfig.Config, startTime time.Time, readyState *appserver.ReadyState) {
	// Security middleware
	app.Use(helmet.New(helmet.Config{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		HSTSMaxAge: func() int {
			if appconfig.GetEnvOrDefault("APP_ENV", "development") == "production" {
				return 31536000
			}
			return 0
		}(),
		HSTSPreloadEnabled: appconfig.GetEnvOrDefault("APP_ENV", "development") == "production",
		ContentSecurityPolicy: "default-src 'self'; " +
			"style-src 'self' 'unsafe-inline'; " +
			"img-src 'self' data: blob:; " +
			"object-src 'none'; " +
			"frame-ancestors 'none'; " +
			"base-uri 'self'; " +
			"form-action 'self'",
		ReferrerPolicy: "strict-origin-when-cross-origin",
	}))

	// CSRF protection
	app.Use(csrf.New(csrf.Config{
		KeyLookup:      "header:X-CSRF-Token",
		CookieName:     "csrf_token",
		CookieSameSite: "Strict",
		CookieSecure:   true,
		CookieHTTPOnly: true,
		Expiration:     time.Hour,
		KeyGenerator:   uuid.NewString,
		ContextKey:     "csrf",
		Next: func(c *fiber.Ctx) bool {
			method := c.Method()
			path := c.Path()
			return method == fiber.MethodGet || method == fiber.MethodHead || method == fiber.MethodOptions ||
				strings.HasPrefix(path, "/api/v1/health") ||
				strings.HasPrefix(path, "/api/v1/auth/login")
		},
	}))

	// CORS configuration
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(config.AllowedOrigins, ","),
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-CSRF-Token",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		ExposeHeaders:    "X-CSRF-Token",
	}))

	// Optional Prometheus metrics
	if appconfig.GetEnvAsBool("ENABLE_METRICS", false) {
		app.Use(metrics.PrometheusMiddleware())
		app.Get("/metrics", func(c *fiber.Ctx) error {
			handler := promhttp.Handler()
			req := &http.Request{
				Method:     c.Method(),
				URL:        &url.URL{Path: c.Path(), RawQuery: string(c.Request().URI().QueryString())},
				Header:     make(http.Header),
				Body:       io.NopCloser(bytes.NewReader(c.Body())),
				Host:       string(c.Request().Host()),
				RequestURI: c.OriginalURL(),
			}
			c.Request().Header.VisitAll(func(key, value []byte) {
				req.Header.Add(string(key), string(value))
			})
			handler.ServeHTTP(appserver.NewFiberResponseWriter(c), req)
			return nil
		})
	}

	// Initialize rate limiters
	rateLimits := middleware.NewRateLimitConfig(rdb)

	// Initialize services and handlers
	gate := authz.NewGate(db)
	clientSvc := services.NewClientService(db)
	projectSvc := services.NewProjectService(db)
	commentSvc := services.NewCommentService(db)
	updateSvc := services.NewUpdateService(db)
	noteSvc := services.NewNoteService(db, files)

	authHandler := handlers.NewAuthHandler(db, rdb, crypto, config)
	clientsHandler := handlers.NewClientsHandler(db, clientSvc)
	projectsHandler := handlers.NewProjectsHandler(db, projectSvc, gate)
	commentsHandler := handlers.NewCommentsHandler(db, commentSvc, gate)
	updatesHandler := handlers.NewUpdatesHandler(db, updateSvc, gate)
	notesHandler := handlers.NewNotesHandler(db, noteSvc, gate)

	// API group
	api := app.Group("/api/v1")

	// Health check endpoint
	api.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		health := fiber.Map{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"version":   "1.0.0",
			"uptime":    time.Since(startTime).String(),
		}

		var userCount int
		dbHealthy := true
		if err := db.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&userCount); err != nil {
			dbHealthy = false
			health["database"] = "unhealthy"
			health["database_error"] = err.Error()
		} else {
			health["database"] = "healthy"
			health["user_count"] = userCount
		}

		redisHealthy := true
		if err := rdb.Ping(ctx).Err(); err != nil {
			redisHealthy = false
			health["redis"] = "unhealthy"
			health["redis_error"] = err.Error()
		} else {
			health["redis"] = "healthy"
		}

		if !dbHealthy || !redisHealthy {
			health["status"] = "unhealthy"
			return c.Status(fiber.StatusServiceUnavailable).JSON(health)
		}

		return c.JSON(health)
	})

	// Authentication routes - Tier 1: Strictest rate limiting
	api.Post("/auth/login", rateLimits.AuthLimiter, authHandler.Login)

	// Protected routes (require JWT + live session)
	protected := api.Group("", middleware.JWTMiddleware(config.JWTSecret, rdb, crypto))

	protected.Post("/auth/logout", rateLimits.LightweightLimiter, authHandler.Logout)
	protected.Get("/auth/me", rateLimits.LightweightLimiter, authHandler.Me)
	protected.Post("/auth/change-password", rateLimits.AuthLimiter, authHandler.ChangePassword)

	// Admin: client account lifecycle
	admin := protected.Group("/admin", middleware.RequireAdmin())
	admin.Post("/clients", rateLimits.AdminMutationLimiter, clientsHandler.CreateClient)
	admin.Get("/clients", rateLimits.LightweightLimiter, clientsHandler.ListClients)
	admin.Get("/clients/:id", rateLimits.LightweightLimiter, clientsHandler.GetClient)
	admin.Delete("/clients/:id", rateLimits.AdminMutationLimiter, clientsHandler.DeleteClient)

	// Admin: project structure
	admin.Post("/phases", rateLimits.StandardCRUDLimiter, projectsHandler.CreatePhase)
	admin.Put("/phases/:id", rateLimits.StandardCRUDLimiter, projectsHandler.UpdatePhase)
	admin.Delete("/phases/:id", rateLimits.StandardCRUDLimiter, projectsHandler.DeletePhase)
	admin.Post("/tasks", rateLimits.StandardCRUDLimiter, projectsHandler.CreateTask)
	admin.Put("/tasks/:id", rateLimits.StandardCRUDLimiter, projectsHandler.UpdateTask)
	admin.Delete("/tasks/:id", rateLimits.StandardCRUDLimiter, projectsHandler.DeleteTask)
	admin.Put("/phases/:id/tasks/reorder", rateLimits.StandardCRUDLimiter, projectsHandler.ReorderTasks)

	// Admin: milestone updates
	admin.Post("/updates", rateLimits.StandardCRUDLimiter, updatesHandler.CreateUpdate)
	admin.Delete("/updates/:id", rateLimits.StandardCRUDLimiter, updatesHandler.DeleteUpdate)

	// Admin: project notes and attachments
	admin.Post("/notes", rateLimits.StandardCRUDLimiter, notesHandler.CreateNote)
	admin.Put("/notes/:id", rateLimits.StandardCRUDLimiter, notesHandler.UpdateNote)
	admin.Delete("/notes/:id", rateLimits.StandardCRUDLimiter, notesHandler.DeleteNote)
	admin.Post("/notes/:noteId/attachments", rateLimits.AttachmentUploadLimiter, notesHandler.UploadAttachment)
	admin.Delete("/notes/:noteId/attachments/:attachmentId", rateLimits.StandardCRUDLimiter, notesHandler.DeleteAttachment)

	// Client portal: own project view
	protected.Get("/portal/project", rateLimits.LightweightLimiter, projectsHandler.GetMyProject)

	// Ownership-gated reads (clients reach only their own chain, admins reach all)
	protected.Get("/projects/:id", rateLimits.StandardCRUDLimiter, projectsHandler.GetProject)
	protected.Get("/phases/:id", rateLimits.StandardCRUDLimiter, projectsHandler.GetPhase)
	protected.Get("/tasks/:id", rateLimits.StandardCRUDLimiter, projectsHandler.GetTask)
	protected.Get("/projects/:id/notes", rateLimits.StandardCRUDLimiter, notesHandler.ListNotes)
	protected.Get("/notes/:id", rateLimits.StandardCRUDLimiter, notesHandler.GetNote)
	protected.Get("/attachments/:attachmentId/download", rateLimits.StandardCRUDLimiter, notesHandler.DownloadAttachment)

	// Discussion threads
	protected.Post("/comments", rateLimits.StandardCRUDLimiter, commentsHandler.CreateComment)
	protected.Get("/tasks/:id/comments", rateLimits.StandardCRUDLimiter, commentsHandler.ListTaskComments)
	protected.Get("/phases/:id/comments", rateLimits.StandardCRUDLimiter, commentsHandler.ListPhaseComments)
	protected.Delete("/comments/:id", rateLimits.StandardCRUDLimiter, commentsHandler.DeleteComment)

	// Milestone updates, readable by the owning client
	protected.Get("/tasks/:id/updates", rateLimits.StandardCRUDLimiter, updatesHandler.ListTaskUpdates)
	protected.Get("/phases/:id/updates", rateLimits.StandardCRUDLimiter, updatesHandler.ListPhaseUpdates)
}
