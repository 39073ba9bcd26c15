// registrations.go
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
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/estatepress/sitesync/internal/models"
	"github.com/estatepress/sitesync/internal/store"
	"github.com/estatepress/sitesync/internal/utils"
)

// RegistrationHandler serves visitor registrations from the marketing site.
type RegistrationHandler struct {
	Store *store.Store
}

type registrationBody struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// Create handles POST /api/registrations
// @Summary Register a site visitor
// @Description Records a visitor registration. A repeat email answers with a duplicate error rather than a second row.
// @Tags Registrations
// @Accept json
// @Produce json
// @Param body body object true "Registration"
// @Success 200 {object} models.Registration
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /registrations [post]
func (h *RegistrationHandler) Create(c *fiber.Ctx) error {
	var body registrationBody
	if err := c.BodyParser(&body); err != nil {
		return utils.ErrorResponse(c, "Invalid input", fiber.StatusBadRequest, "registration.validation.input")
	}

	body.Name = strings.TrimSpace(body.Name)
	body.Email = strings.ToLower(strings.TrimSpace(body.Email))
	if body.Name == "" || body.Email == "" || !strings.Contains(body.Email, "@") {
		return utils.ErrorResponse(c, "Invalid input: name and email are required", fiber.StatusBadRequest, "registration.validation.input")
	}

	reg := models.Registration{
		Name:    body.Name,
		Email:   body.Email,
		Phone:   strings.TrimSpace(body.Phone),
		Message: body.Message,
	}

	if err := h.Store.CreateRegistration(c.UserContext(), &reg); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return utils.DuplicateErrorResponse(c, "This email is already registered")
		}
		if errors.Is(err, store.ErrUnavailable) {
			return utils.ErrorResponse(c, "Registrations are unavailable right now, please try again later", fiber.StatusServiceUnavailable, "createRegistration")
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "createRegistration")
	}

	return c.Status(fiber.StatusOK).JSON(reg)
}

// List handles GET /api/registrations (admin only)
// @Summary List visitor registrations, newest first
// @Tags Registrations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Registration
// @Failure 401 {object} utils.ErrorResponseStruct
// @Failure 500 {object} utils.ErrorResponseStruct
// @Router /registrations [get]
func (h *RegistrationHandler) List(c *fiber.Ctx) error {
	regs, err := h.Store.ListRegistrations(c.UserContext())
	if err != nil {
		if errors.Is(err, store.ErrUnavailable) {
			return utils.ErrorResponse(c, "Registrations are unavailable while the store is offline", fiber.StatusServiceUnavailable, "listRegistrations")
		}
		return utils.ErrorResponse(c, err.Error(), fiber.StatusInternalServerError, "listRegistrations")
	}

	return c.Status(fiber.StatusOK).JSON(regs)
}
