// content.go
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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/estatepress/sitesync/internal/reconcile"
	"github.com/estatepress/sitesync/internal/store"
	"github.com/estatepress/sitesync/internal/types"
	"github.com/estatepress/sitesync/internal/utils"
)

// ContentHandler serves the versioned content entities.
type ContentHandler struct {
	Reconciler *reconcile.Reconciler
	Store      *store.Store
}

type saveBody struct {
	Payload           json.RawMessage   `json:"payload"`
	ChangeDescription string            `json:"changeDescription"`
	AuthorName        string            `json:"authorName"`
	AuthorEmail       string            `json:"authorEmail"`
	ExpectedVersion   *types.FlexUint64 `json:"expectedVersion,omitempty"`
	OriginID          string            `json:"originId,omitempty"`
	OriginName        string            `json:"originName,omitempty"`
}

func (b *saveBody) toRequest(entityType, entityID string) reconcile.SaveRequest {
	req := reconcile.SaveRequest{
		EntityType:        entityType,
		EntityID:          entityID,
		Payload:           b.Payload,
		ChangeDescription: b.ChangeDescription,
		AuthorName:        b.AuthorName,
		AuthorEmail:       b.AuthorEmail,
		OriginID:          b.OriginID,
		OriginName:        b.OriginName,
	}
	if b.ExpectedVersion != nil {
		v := b.ExpectedVersion.Uint64()
		req.ExpectedVersion = &v
	}
	return req
}

// GetCurrent handles GET /api/content/:entityType
// @Summary Get current entity state
// @Description Current snapshot of a singleton entity, or the member catalog of a collection type. Falls back to local cache, then to the seed default.
// @Tags Content
// @Accept json
// @Produce json
// @Param entityType path string true "Entity type (content, design, images, properties)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /content/{entityType} [get]
func (h *ContentHandler) GetCurrent(c *fiber.Ctx) error {
	entityType := c.Params("entityType")
	if !store.ValidEntityType(entityType) {
		return utils.ErrorResponse(c, fmt.Sprintf("Unknown entity type '%s'", entityType), fiber.StatusBadRequest, "content.validation.entityType")
	}

	if !store.IsSingleton(entityType) {
		result := h.Reconciler.LoadCollection(c.UserContext(), entityType)
		return c.Status(fiber.StatusOK).JSON(result)
	}

	result := h.Reconciler.LoadInitial(c.UserContext(), entityType, "")
	return c.Status(fiber.StatusOK).JSON(result)
}

// GetItem handles GET /api/content/:entityType/item/:entityId
// @Summary Get current state of one collection member
// @Tags Content
// @Accept json
// @Produce json
// @Param entityType path string true "Entity type"
// @Param entityId path string true "Entity ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /content/{entityType}/item/{entityId} [get]
func (h *ContentHandler) GetItem(c *fiber.Ctx) error {
	entityType := c.Params("entityType")
	entityID := c.Params("entityId")
	if !store.ValidEntityType(entityType) || store.IsSingleton(entityType) {
		return utils.ErrorResponse(c, fmt.Sprintf("Entity type '%s' has no items", entityType), fiber.StatusBadRequest, "content.validation.entityType")
	}

	result := h.Reconciler.LoadInitial(c.UserContext(), entityType, entityID)
	return c.Status(fiber.StatusOK).JSON(result)
}

// Save handles POST /api/content/:entityType and /api/content/:entityType/item/:entityId
// @Summary Save a new version of an entity
// @Description Merges the payload over the previous state and runs the version, cache, broadcast sequence. Optional expectedVersion makes the save conditional.
// @Tags Content
// @Accept json
// @Produce json
// @Param entityType path string true "Entity type"
// @Param body body object true "Save request"
// @Success 200 {object} utils.SaveResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /content/{entityType} [post]
func (h *ContentHandler) Save(c *fiber.Ctx) error {
	entityType := c.Params("entityType")
	entityID := c.Params("entityId")

	var body saveBody
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "content.validation.input")
	}
	if len(body.Payload) == 0 {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "content.validation.input")
	}

	result, err := h.Reconciler.Save(c.UserContext(), body.toRequest(entityType, entityID))
	if err != nil {
		return saveError(c, err, "saveContent")
	}

	return utils.SaveSuccessResponse(c, result.Payload, result.VersionNumber, result.Degraded, result.Warning)
}

// Delete handles DELETE /api/content/:entityType/item/:entityId
// @Summary Delete a collection member
// @Description Appends a tombstone version and broadcasts a delete event. History is preserved.
// @Tags Content
// @Accept json
// @Produce json
// @Param entityType path string true "Entity type"
// @Param entityId path string true "Entity ID"
// @Success 200 {object} utils.SaveResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /content/{entityType}/item/{entityId} [delete]
func (h *ContentHandler) Delete(c *fiber.Ctx) error {
	entityType := c.Params("entityType")
	entityID := c.Params("entityId")
	if store.IsSingleton(entityType) {
		return utils.ErrorResponse(c, fmt.Sprintf("Entity type '%s' cannot be deleted", entityType), fiber.StatusBadRequest, "content.validation.entityType")
	}

	// Body is optional for deletes.
	var body saveBody
	_ = c.BodyParser(&body)

	result, err := h.Reconciler.Delete(c.UserContext(), body.toRequest(entityType, entityID))
	if err != nil {
		return saveError(c, err, "deleteContent")
	}

	return utils.SaveSuccessResponse(c, result.Payload, result.VersionNumber, false, "")
}

type listEditBody struct {
	saveBody
	reconcile.ListEdit
}

// EditList handles POST /api/content/:entityType/list and /item/:entityId/list
// @Summary Apply a structured edit to an array field
// @Description Add, update, remove or duplicate one element of a top-level array field without touching its siblings.
// @Tags Content
// @Accept json
// @Produce json
// @Param entityType path string true "Entity type"
// @Param body body object true "List edit request"
// @Success 200 {object} utils.SaveResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /content/{entityType}/list [post]
func (h *ContentHandler) EditList(c *fiber.Ctx) error {
	entityType := c.Params("entityType")
	entityID := c.Params("entityId")

	var body listEditBody
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "content.validation.input")
	}
	if body.Field == "" || body.Op == "" {
		return utils.ErrorResponse(c, "Invalid input: field and op are required", fiber.StatusBadRequest, "content.validation.input")
	}

	result, err := h.Reconciler.EditList(c.UserContext(), body.saveBody.toRequest(entityType, entityID), body.ListEdit)
	if err != nil {
		return saveError(c, err, "editContentList")
	}

	return utils.SaveSuccessResponse(c, result.Payload, result.VersionNumber, result.Degraded, result.Warning)
}

// GetHistory handles GET /api/content/:entityType/history and /item/:entityId/history
// @Summary Get the version history of an entity, newest first
// @Tags Content
// @Accept json
// @Produce json
// @Param entityType path string true "Entity type"
// @Success 200 {array} models.ContentVersion
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /content/{entityType}/history [get]
func (h *ContentHandler) GetHistory(c *fiber.Ctx) error {
	entityType := c.Params("entityType")
	entityID := c.Params("entityId")

	recs, err := h.Store.GetHistory(c.UserContext(), entityType, entityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.NotFoundResponse(c, fmt.Sprintf("No history for '%s'", reconcile.CacheKey(entityType, entityID)))
		}
		if errors.Is(err, store.ErrUnavailable) {
			return utils.ErrorResponse(c, "History is unavailable while the store is offline", fiber.StatusServiceUnavailable, "content.history.unavailable")
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "getHistory")
	}

	return c.Status(fiber.StatusOK).JSON(recs)
}

type rollbackBody struct {
	VersionID   string `json:"versionId"`
	AuthorName  string `json:"authorName"`
	AuthorEmail string `json:"authorEmail"`
	OriginID    string `json:"originId,omitempty"`
	OriginName  string `json:"originName,omitempty"`
}

// Rollback handles POST /api/content/:entityType/rollback and /item/:entityId/rollback
// @Summary Roll an entity back to an earlier version
// @Description Creates a new forward-moving version with the target version's payload. Earlier versions stay retrievable.
// @Tags Content
// @Accept json
// @Produce json
// @Param entityType path string true "Entity type"
// @Param body body object true "Rollback request"
// @Success 200 {object} utils.SaveResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /content/{entityType}/rollback [post]
func (h *ContentHandler) Rollback(c *fiber.Ctx) error {
	entityType := c.Params("entityType")
	entityID := c.Params("entityId")

	var body rollbackBody
	if err := c.BodyParser(&body); err != nil || body.VersionID == "" {
		return utils.ErrorResponse(c, "Invalid input: versionId is required", fiber.StatusBadRequest, "content.validation.input")
	}

	req := reconcile.SaveRequest{
		EntityType:  entityType,
		EntityID:    entityID,
		AuthorName:  body.AuthorName,
		AuthorEmail: body.AuthorEmail,
		OriginID:    body.OriginID,
		OriginName:  body.OriginName,
	}

	result, err := h.Reconciler.Rollback(c.UserContext(), req, body.VersionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.NotFoundResponse(c, fmt.Sprintf("Version '%s' not found", body.VersionID))
		}
		return saveError(c, err, "rollbackContent")
	}

	return utils.SaveSuccessResponse(c, result.Payload, result.VersionNumber, false, "")
}

// saveError translates reconciliation failures into the response envelope.
func saveError(c *fiber.Ctx, err error, errorType string) error {
	if errors.Is(err, store.ErrVersionConflict) {
		return utils.VersionErrorResponse(c)
	}
	if errors.Is(err, store.ErrUnavailable) {
		return utils.ErrorResponse(c, "The store is unreachable and this change cannot be saved safely", fiber.StatusServiceUnavailable, errorType)
	}
	return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, errorType)
}
