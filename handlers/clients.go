package handlers

import (
	"github.com/gofiber/fiber/v2"

	"trackdesk/database"
	"trackdesk/metrics"
	"trackdesk/middleware"
	"trackdesk/services"
	"trackdesk/utils"
)

// ClientsHandler handles admin client-account management requests
type ClientsHandler struct {
	db      database.Database
	clients *services.ClientService
}

// NewClientsHandler creates a new clients handler
func NewClientsHandler(db database.Database, clients *services.ClientService) *ClientsHandler {
	return &ClientsHandler{db: db, clients: clients}
}

// CreateClient provisions a client account with its project, default phases,
// and seed task in one transaction. The generated temporary password is
// returned exactly once.
func (h *ClientsHandler) CreateClient(c *fiber.Ctx) error {
	var in services.CreateClientInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	created, err := h.clients.CreateClientWithProject(c.Context(), in)
	if err != nil {
		return writeServiceError(c, err, "client")
	}

	adminID, _ := middleware.GetUserIDFromToken(c)
	utils.LogAudit(c.Context(), h.db, adminID, "client.created", "user", created.ID, c)
	metrics.IncrementEntityOperation("client", "create")

	return c.Status(201).JSON(created)
}

// ListClients returns every client account with its project summary
func (h *ClientsHandler) ListClients(c *fiber.Ctx) error {
	clients, err := h.clients.ListClients(c.Context())
	if err != nil {
		return writeServiceError(c, err, "client")
	}
	return c.JSON(fiber.Map{"clients": clients})
}

// GetClient returns a single client account
func (h *ClientsHandler) GetClient(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid client ID"})
	}

	client, err := h.clients.GetClient(c.Context(), id)
	if err != nil {
		return writeServiceError(c, err, "client")
	}
	return c.JSON(client)
}

// DeleteClient removes a client account and everything beneath it. The
// response reports how many dependent records the cascade removed.
func (h *ClientsHandler) DeleteClient(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid client ID"})
	}

	result, err := h.clients.DeleteClient(c.Context(), id)
	if err != nil {
		return writeServiceError(c, err, "client")
	}

	adminID, _ := middleware.GetUserIDFromToken(c)
	utils.LogAudit(c.Context(), h.db, adminID, "client.deleted", "user", id, c)
	metrics.IncrementEntityOperation("client", "delete")

	return c.JSON(result)
}
