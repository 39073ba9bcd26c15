// main.go
//
// Real-time content versioning and sync service for the EstatePress admin back office
// Copyright (c) 2026 EstatePress <info@estatepress.dev>
//
// This file is part of sitesync.
// sitesync is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// sitesync is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with sitesync.
// If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/google/uuid"

	"github.com/estatepress/sitesync/internal/cache"
	"github.com/estatepress/sitesync/internal/config"
	"github.com/estatepress/sitesync/internal/database"
	"github.com/estatepress/sitesync/internal/handlers"
	"github.com/estatepress/sitesync/internal/middleware"
	"github.com/estatepress/sitesync/internal/reconcile"
	"github.com/estatepress/sitesync/internal/store"
	"github.com/estatepress/sitesync/internal/sync"
	"github.com/estatepress/sitesync/internal/types"
	"github.com/estatepress/sitesync/internal/utils"

	_ "github.com/estatepress/sitesync/docs/api" // Swagger docs
)

// @title SiteSync API
// @version 1.0.0
// @description Versioned content store with live sync for the EstatePress admin back office
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/estatepress/sitesync
// @contact.email info@estatepress.dev

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to the store of record. Failure here is survivable: the
	// service starts degraded and serves reads from the local cache until
	// the database comes back or gets configured.
	var st *store.Store
	db, err := database.Connect(cfg)
	if err != nil {
		log.Printf("WARNING: store of record unavailable, starting degraded: %v", err)
		st = store.New(nil)
	} else {
		defer database.Close(db)
		if err := database.AutoMigrate(db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
		st = store.New(db)
	}

	// Open the local fallback cache
	ca, err := cache.Open(cfg.CachePath, cfg.CacheMaxValueBytes)
	if err != nil {
		log.Fatalf("Failed to open local cache at %s: %v", cfg.CachePath, err)
	}
	defer ca.Close()

	// Sync hub, with an optional redis bridge for multi-instance fan-out
	instanceID := cfg.InstanceName
	if instanceID == "" {
		instanceID = "sitesync-" + uuid.NewString()
	}
	hub := sync.NewHub(instanceID)
	if cfg.RedisAddr != "" {
		if err := utils.PingService("redis://"+cfg.RedisAddr, 3*time.Second); err != nil {
			log.Printf("WARNING: sync bridge redis not reachable yet: %v", err)
		}
		hub.AttachBridge(sync.NewBridge(cfg.RedisAddr, cfg.RedisPassword, instanceID))
	}

	reconciler := reconcile.New(st, ca, hub, instanceID)
	hub.SetApply(reconciler.ApplyRemote)

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	hub.Run(hubCtx)
	defer hub.Close()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          customErrorHandler,
		DisableStartupMessage: false,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("sitesync")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Websocket sync channel
	syncHandler := &handlers.SyncHandler{Hub: hub}
	app.Use("/ws", syncHandler.Upgrade)
	app.Get("/ws", syncHandler.Serve())

	// API routes under /api
	api := app.Group("/api")
	api.Use(middleware.VersionMiddleware())

	contentHandler := &handlers.ContentHandler{Reconciler: reconciler, Store: st}
	registrationHandler := &handlers.RegistrationHandler{Store: st}
	healthHandler := &handlers.HealthHandler{Store: st, Cache: ca, Hub: hub}

	authAdmin := middleware.AuthAdmin(cfg.AdminToken)

	// Content routes (public GET, admin mutation)
	content := api.Group("/content")
	content.Get("/:entityType", contentHandler.GetCurrent)
	content.Get("/:entityType/history", contentHandler.GetHistory)
	content.Get("/:entityType/item/:entityId", contentHandler.GetItem)
	content.Get("/:entityType/item/:entityId/history", contentHandler.GetHistory)

	content.Post("/:entityType", authAdmin, contentHandler.Save)
	content.Post("/:entityType/list", authAdmin, contentHandler.EditList)
	content.Post("/:entityType/rollback", authAdmin, contentHandler.Rollback)
	content.Post("/:entityType/item/:entityId", authAdmin, contentHandler.Save)
	content.Post("/:entityType/item/:entityId/list", authAdmin, contentHandler.EditList)
	content.Post("/:entityType/item/:entityId/rollback", authAdmin, contentHandler.Rollback)
	content.Delete("/:entityType/item/:entityId", authAdmin, contentHandler.Delete)

	// Registrations (public POST from the marketing site, admin GET)
	api.Post("/registrations", registrationHandler.Create)
	api.Get("/registrations", authAdmin, registrationHandler.List)

	// Sync channel status
	api.Get("/sync/status", syncHandler.Status)
	api.Post("/sync/reconnect", authAdmin, syncHandler.Reconnect)

	// Health
	api.Get("/health", healthHandler.Check)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"status":    fiber.StatusNotFound,
			"message":   "[404] Resource Not Found",
			"ok":        false,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"url":       c.OriginalURL(),
		})
	})

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		log.Println("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	// Start server
	port := cfg.Port
	log.Printf("Starting server on port %s (instance %s)", port, instanceID)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Println("Server stopped")
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()
	errorType := "unknown"

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	var ce *types.CustomError
	if errors.As(err, &ce) {
		code = ce.Code
		message = ce.Message
		errorType = ce.Type
	}

	// Check for version conflicts
	versionError := false
	if code == fiber.StatusConflict || (len(message) >= 9 && message[:9] == "E_VERSION") {
		versionError = true
		errorType = "version"
		code = fiber.StatusConflict
	}

	return c.Status(code).JSON(fiber.Map{
		"status":       code,
		"message":      message,
		"ok":           false,
		"versionError": versionError,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"url":          c.OriginalURL(),
		"type":         errorType,
	})
}
