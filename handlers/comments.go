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

// CommentsHandler handles discussion threads on tasks and phases
type CommentsHandler struct {
	db       database.Database
	comments *services.CommentService
	gate     *authz.Gate
}

// NewCommentsHandler creates a new comments handler
func NewCommentsHandler(db database.Database, comments *services.CommentService, gate *authz.Gate) *CommentsHandler {
	return &CommentsHandler{db: db, comments: comments, gate: gate}
}

// CreateComment posts a comment on exactly one of a task or a phase.
// The caller must own the target's project chain.
func (h *CommentsHandler) CreateComment(c *fiber.Ctx) error {
	p, err := principalFromCtx(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var in services.CreateCommentInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	if ref, ok := targetRef(in.TaskID, in.PhaseID); ok {
		if err := h.gate.Authorize(c.Context(), p, ref); err != nil {
			return writeServiceError(c, err, string(ref.Kind))
		}
	}

	comment, err := h.comments.CreateComment(c.Context(), p.UserID, in)
	if err != nil {
		return writeServiceError(c, err, "comment")
	}

	utils.LogAudit(c.Context(), h.db, p.UserID, "comment.created", "comment", comment.ID, c)
	metrics.IncrementEntityOperation("comment", "create")
	return c.Status(201).JSON(comment)
}

// ListTaskComments returns a task's comments, newest first
func (h *CommentsHandler) ListTaskComments(c *fiber.Ctx) error {
	return h.listComments(c, authz.KindTask, h.comments.ListTaskComments)
}

// ListPhaseComments returns a phase's comments, newest first
func (h *CommentsHandler) ListPhaseComments(c *fiber.Ctx) error {
	return h.listComments(c, authz.KindPhase, h.comments.ListPhaseComments)
}

func (h *CommentsHandler) listComments(c *fiber.Ctx, kind authz.Kind, list func(context.Context, int64) ([]models.Comment, error)) error {
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

	comments, err := list(c.Context(), id)
	if err != nil {
		return writeServiceError(c, err, "comment")
	}
	return c.JSON(fiber.Map{"comments": comments})
}

// DeleteComment removes a comment. Only the author or an admin may delete.
func (h *CommentsHandler) DeleteComment(c *fiber.Ctx) error {
	p, err := principalFromCtx(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	commentID, err := paramID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid comment ID"})
	}

	if err := h.gate.Authorize(c.Context(), p, authz.Ref{Kind: authz.KindComment, ID: commentID}); err != nil {
		return writeServiceError(c, err, "comment")
	}

	result, err := h.comments.DeleteComment(c.Context(), commentID, p.UserID, p.Role)
	if err != nil {
		return writeServiceError(c, err, "comment")
	}

	utils.LogAudit(c.Context(), h.db, p.UserID, "comment.deleted", "comment", commentID, c)
	metrics.IncrementEntityOperation("comment", "delete")
	return c.JSON(result)
}

// targetRef maps a one-of task/phase pair to an authz reference. Validation of
// the exactly-one rule itself is left to the service.
func targetRef(taskID, phaseID *int64) (authz.Ref, bool) {
	switch {
	case taskID != nil && phaseID == nil:
		return authz.Ref{Kind: authz.KindTask, ID: *taskID}, true
	case phaseID != nil && taskID == nil:
		return authz.Ref{Kind: authz.KindPhase, ID: *phaseID}, true
	default:
		return authz.Ref{}, false
	}
}
