// health.go
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

package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/estatepress/sitesync/internal/cache"
	"github.com/estatepress/sitesync/internal/store"
	"github.com/estatepress/sitesync/internal/sync"
)

// HealthHandler reports the liveness of the service and its backends.
type HealthHandler struct {
	Store *store.Store
	Cache *cache.Cache
	Hub   *sync.Hub
}

type healthReport struct {
	Status    string      `json:"status"`
	Store     string      `json:"store"`
	Cache     string      `json:"cache"`
	Sync      sync.Status `json:"sync"`
	Timestamp string      `json:"timestamp"`
}

// Check handles GET /api/health
// @Summary Service health
// @Description Reports the store, local cache, and sync channel. The service stays up on cache alone, so a down store answers degraded, not unhealthy.
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	report := healthReport{
		Status:    "ok",
		Store:     "up",
		Cache:     "up",
		Sync:      h.Hub.Status(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if err := h.Store.Ping(); err != nil {
		report.Store = "down"
		report.Status = "degraded"
	}
	if err := h.Cache.Ping(); err != nil {
		report.Cache = "down"
	}

	// Down to neither backend, nothing can serve reads or writes.
	code := fiber.StatusOK
	if report.Store == "down" && report.Cache == "down" {
		report.Status = "unhealthy"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(report)
}
