package handlers

import (
	"github.com/gofiber/fiber/v2"

	"trackdesk/authz"
	"trackdesk/database"
	"trackdesk/metrics"
	"trackdesk/services"
	"trackdesk/utils"
)

// ProjectsHandler handles project, phase, and task requests
type ProjectsHandler struct {
	db       database.Database
	projects *services.ProjectService
	gate     *authz.Gate
}

// NewProjectsHandler creates a new projects handler
func NewProjectsHandler(db database.Database, projects *services.ProjectService, gate *authz.Gate) *ProjectsHandler {
	return &ProjectsHandler{db: db, projects: projects, gate: gate}
}

// GetProject returns a project with its phases, tasks, and phase updates.
// Clients can only reach their own project; admins can reach any.
func (h *ProjectsHandler) GetProject(c *fiber.Ctx) error {
	p, err := principalFromCtx(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	projectID, err := paramID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid project ID"})
	}

	if err := h.gate.Authorize(c.Context(), p, authz.Ref{Kind: authz.KindProject, ID: projectID}); err != nil {
		return writeServiceError(c, err, "project")
	}

	project, err := h.projects.GetProject(c.Context(), projectID)
	if err != nil {
		return writeServiceError(c, err, "project")
	}
	return c.JSON(project)
}

// GetPhase returns a single phase with its tasks and updates. Gated the same
// way as GetProject.
func (h *ProjectsHandler) GetPhase(c *fiber.Ctx) error {
	p, err := principalFromCtx(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	phaseID, err := paramID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid phase ID"})
	}

	if err := h.gate.Authorize(c.Context(), p, authz.Ref{Kind: authz.KindPhase, ID: phaseID}); err != nil {
		return writeServiceError(c, err, "phase")
	}

	phase, err := h.projects.GetPhase(c.Context(), phaseID)
	if err != nil {
		return writeServiceError(c, err, "phase")
	}
	return c.JSON(fiber.Map{"phase": phase})
}

// GetTask returns a single task with its updates.
func (h *ProjectsHandler) GetTask(c *fiber.Ctx) error {
	p, err := principalFromCtx(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	taskID, err := paramID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid task ID"})
	}

	if err := h.gate.Authorize(c.Context(), p, authz.Ref{Kind: authz.KindTask, ID: taskID}); err != nil {
		return writeServiceError(c, err, "task")
	}

	task, err := h.projects.GetTask(c.Context(), taskID)
	if err != nil {
		return writeServiceError(c, err, "task")
	}
	return c.JSON(fiber.Map{"task": task})
}

// GetMyProject returns the authenticated client's own project
func (h *ProjectsHandler) GetMyProject(c *fiber.Ctx) error {
	p, err := principalFromCtx(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}

	project, err := h.projects.GetProjectForUser(c.Context(), p.UserID)
	if err != nil {
		return writeServiceError(c, err, "project")
	}
	return c.JSON(project)
}

// CreatePhase adds a phase to a project
func (h *ProjectsHandler) CreatePhase(c *fiber.Ctx) error {
	var in services.CreatePhaseInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	phase, err := h.projects.CreatePhase(c.Context(), in)
	if err != nil {
		return writeServiceError(c, err, "phase")
	}

	h.audit(c, "phase.created", "phase", phase.ID)
	metrics.IncrementEntityOperation("phase", "create")
	return c.Status(201).JSON(phase)
}

// UpdatePhase applies partial changes to a phase
func (h *ProjectsHandler) UpdatePhase(c *fiber.Ctx) error {
	phaseID, err := paramID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid phase ID"})
	}

	var in services.UpdatePhaseInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	phase, err := h.projects.UpdatePhase(c.Context(), phaseID, in)
	if err != nil {
		return writeServiceError(c, err, "phase")
	}

	h.audit(c, "phase.updated", "phase", phaseID)
	metrics.IncrementEntityOperation("phase", "update")
	return c.JSON(phase)
}

// DeletePhase removes a phase and its tasks
func (h *ProjectsHandler) DeletePhase(c *fiber.Ctx) error {
	phaseID, err := paramID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid phase ID"})
	}

	result, err := h.projects.DeletePhase(c.Context(), phaseID)
	if err != nil {
		return writeServiceError(c, err, "phase")
	}

	h.audit(c, "phase.deleted", "phase", phaseID)
	metrics.IncrementEntityOperation("phase", "delete")
	return c.JSON(result)
}

// CreateTask adds a task to a phase
func (h *ProjectsHandler) CreateTask(c *fiber.Ctx) error {
	var in services.CreateTaskInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	task, err := h.projects.CreateTask(c.Context(), in)
	if err != nil {
		return writeServiceError(c, err, "task")
	}

	h.audit(c, "task.created", "task", task.ID)
	metrics.IncrementEntityOperation("task", "create")
	return c.Status(201).JSON(task)
}

// UpdateTask applies partial changes to a task
func (h *ProjectsHandler) UpdateTask(c *fiber.Ctx) error {
	taskID, err := paramID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid task ID"})
	}

	var in services.UpdateTaskInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	task, err := h.projects.UpdateTask(c.Context(), taskID, in)
	if err != nil {
		return writeServiceError(c, err, "task")
	}

	h.audit(c, "task.updated", "task", taskID)
	metrics.IncrementEntityOperation("task", "update")
	return c.JSON(task)
}

// DeleteTask removes a single task
func (h *ProjectsHandler) DeleteTask(c *fiber.Ctx) error {
	taskID, err := paramID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid task ID"})
	}

	result, err := h.projects.DeleteTask(c.Context(), taskID)
	if err != nil {
		return writeServiceError(c, err, "task")
	}

	h.audit(c, "task.deleted", "task", taskID)
	metrics.IncrementEntityOperation("task", "delete")
	return c.JSON(result)
}

// ReorderTasksRequest carries the full desired ordering of a phase's tasks
type ReorderTasksRequest struct {
	TaskIDs []int64 `json:"task_ids" validate:"required"`
}

// ReorderTasks rewrites the ordering of every task in a phase. The id list
// must be an exact permutation of the phase's current tasks.
func (h *ProjectsHandler) ReorderTasks(c *fiber.Ctx) error {
	phaseID, err := paramID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid phase ID"})
	}

	var req ReorderTasksRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	tasks, err := h.projects.ReorderTasks(c.Context(), phaseID, req.TaskIDs)
	if err != nil {
		return writeServiceError(c, err, "task")
	}

	h.audit(c, "tasks.reordered", "phase", phaseID)
	metrics.IncrementEntityOperation("task", "reorder")
	return c.JSON(fiber.Map{"tasks": tasks})
}

func (h *ProjectsHandler) audit(c *fiber.Ctx, action, entity string, entityID int64) {
	if p, err := principalFromCtx(c); err == nil {
		utils.LogAudit(c.Context(), h.db, p.UserID, action, entity, entityID, c)
	}
}
