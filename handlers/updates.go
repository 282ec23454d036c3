package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"trackdesk/authz"
	"trackdesk/database"
	"trackdesk/metrics"
	"trackdesk/models"
	"trackdesk/services"
	"trackdesk/utils"
)

// UpdatesHandler handles milestone update entries on tasks and phases
type UpdatesHandler struct {
	db      database.Database
	updates *services.UpdateService
	gate    *authz.Gate
}

// NewUpdatesHandler creates a new updates handler
func NewUpdatesHandler(db database.Database, updates *services.UpdateService, gate *authz.Gate) *UpdatesHandler {
	return &UpdatesHandler{db: db, updates: updates, gate: gate}
}

// CreateUpdate posts a milestone entry on exactly one of a task or a phase
func (h *UpdatesHandler) CreateUpdate(c *fiber.Ctx) error {
	p, err := principalFromCtx(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var in services.CreateUpdateInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	update, err := h.updates.CreateUpdate(c.Context(), in)
	if err != nil {
		return writeServiceError(c, err, "update")
	}

	utils.LogAudit(c.Context(), h.db, p.UserID, "update.created", "update", update.ID, c)
	metrics.IncrementEntityOperation("update", "create")
	return c.Status(201).JSON(update)
}

// ListTaskUpdates returns a task's updates, newest first
func (h *UpdatesHandler) ListTaskUpdates(c *fiber.Ctx) error {
	return h.listUpdates(c, authz.KindTask, h.updates.ListTaskUpdates)
}

// ListPhaseUpdates returns a phase's updates, newest first
func (h *UpdatesHandler) ListPhaseUpdates(c *fiber.Ctx) error {
	return h.listUpdates(c, authz.KindPhase, h.updates.ListPhaseUpdates)
}

// DeleteUpdate removes a milestone entry
func (h *UpdatesHandler) DeleteUpdate(c *fiber.Ctx) error {
	p, err := principalFromCtx(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	updateID, err := paramID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid update ID"})
	}

	result, err := h.updates.DeleteUpdate(c.Context(), updateID)
	if err != nil {
		return writeServiceError(c, err, "update")
	}

	utils.LogAudit(c.Context(), h.db, p.UserID, "update.deleted", "update", updateID, c)
	metrics.IncrementEntityOperation("update", "delete")
	return c.JSON(result)
}

func (h *UpdatesHandler) listUpdates(c *fiber.Ctx, kind authz.Kind, list func(context.Context, int64) ([]models.Update, error)) error {
	p, err := principalFromCtx(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid ID"})
	}

	if err := h.gate.Authorize(c.Context(), p, authz.Ref{Kind: kind, ID: id}); err != nil {
		return writeServiceError(c, err, string(kind))
	}

	updates, err := list(c.Context(), id)
	if err != nil {
		return writeServiceError(c, err, "update")
	}
	return c.JSON(fiber.Map{"updates": updates})
}
