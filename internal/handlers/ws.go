// ws.go
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
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/estatepress/sitesync/internal/sync"
)

// SyncHandler serves the live sync channel and its status.
type SyncHandler struct {
	Hub *sync.Hub
}

// Upgrade gates /ws on a websocket handshake. Fiber routes the request to
// the websocket handler only after this passes.
func (h *SyncHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// Serve handles the websocket session for one editor. The origin query
// parameter is the editor's self-identification; events it publishes are not
// echoed back to it. A missing origin gets a server-assigned one.
func (h *SyncHandler) Serve() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		origin := conn.Query("origin")
		if origin == "" {
			origin = uuid.NewString()
		}
		name := conn.Query("name")

		client := sync.NewClient(h.Hub, conn, origin, name)
		client.Register()
		go client.WritePump()
		client.ReadPump()
	})
}

// Status handles GET /api/sync/status
// @Summary Current sync channel status
// @Description Connection state of the broadcast channel and the number of live subscribers.
// @Tags Sync
// @Produce json
// @Success 200 {object} sync.Status
// @Router /sync/status [get]
func (h *SyncHandler) Status(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(h.Hub.Status())
}

// Reconnect handles POST /api/sync/reconnect
// @Summary Ask the sync channel to re-establish its bridge
// @Tags Sync
// @Produce json
// @Security BearerAuth
// @Success 200 {object} sync.Status
// @Router /sync/reconnect [post]
func (h *SyncHandler) Reconnect(c *fiber.Ctx) error {
	h.Hub.Reconnect(c.UserContext())
	return c.Status(fiber.StatusOK).JSON(h.Hub.Status())
}
