package handlers

import (
	"github.com/gofiber/fiber/v2"

	"trackdesk/authz"
	"trackdesk/database"
	"trackdesk/metrics"
	"trackdesk/services"
	"trackdesk/utils"
)

// NotesHandler handles project notes and their attachments
type NotesHandler struct {
	db    database.Database
	notes *services.NoteService
	gate  *authz.Gate
}

// NewNotesHandler creates a new notes handler
func NewNotesHandler(db database.Database, notes *services.NoteService, gate *authz.Gate) *NotesHandler {
	return &NotesHandler{db: db, notes: notes, gate: gate}
}

// CreateNote adds a note to a project
func (h *NotesHandler) CreateNote(c *fiber.Ctx) error {
	p, err := principalFromCtx(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var in services.CreateNoteInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	note, err := h.notes.CreateNote(c.Context(), p.UserID, in)
	if err != nil {
		return writeServiceError(c, err, "note")
	}

	utils.LogAudit(c.Context(), h.db, p.UserID, "note.created", "note", note.ID, c)
	metrics.IncrementEntityOperation("note", "create")
	return c.Status(201).JSON(note)
}

// ListNotes returns a project's notes with their attachments.
// Clients can only reach notes under their own project.
func (h *NotesHandler) ListNotes(c *fiber.Ctx) error {
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

	notes, err := h.notes.ListNotes(c.Context(), projectID)
	if err != nil {
		return writeServiceError(c, err, "note")
	}
	return c.JSON(fiber.Map{"notes": notes})
}

// GetNote returns a single note with attachments
func (h *NotesHandler) GetNote(c *fiber.Ctx) error {
	p, err := principalFromCtx(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	noteID, err := paramID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid note ID"})
	}

	if err := h.gate.Authorize(c.Context(), p, authz.Ref{Kind: authz.KindNote, ID: noteID}); err != nil {
		return writeServiceError(c, err, "note")
	}

	note, err := h.notes.GetNote(c.Context(), noteID)
	if err != nil {
		return writeServiceError(c, err, "note")
	}
	return c.JSON(note)
}

// UpdateNote applies partial changes to a note
func (h *NotesHandler) UpdateNote(c *fiber.Ctx) error {
	p, err := principalFromCtx(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	noteID, err := paramID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid note ID"})
	}

	var in services.UpdateNoteInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid request"})
	}

	note, err := h.notes.UpdateNote(c.Context(), noteID, in)
	if err != nil {
		return writeServiceError(c, err, "note")
	}

	utils.LogAudit(c.Context(), h.db, p.UserID, "note.updated", "note", noteID, c)
	metrics.IncrementEntityOperation("note", "update")
	return c.JSON(note)
}

// DeleteNote removes a note and its attachments. The database rows go first;
// file removal afterwards is best effort and never fails the request.
func (h *NotesHandler) DeleteNote(c *fiber.Ctx) error {
	p, err := principalFromCtx(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	noteID, err := paramID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid note ID"})
	}

	result, err := h.notes.DeleteNote(c.Context(), noteID)
	if err != nil {
		return writeServiceError(c, err, "note")
	}

	utils.LogAudit(c.Context(), h.db, p.UserID, "note.deleted", "note", noteID, c)
	metrics.IncrementEntityOperation("note", "delete")
	return c.JSON(result)
}

// UploadAttachment stores a file under a note
func (h *NotesHandler) UploadAttachment(c *fiber.Ctx) error {
	p, err := principalFromCtx(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	noteID, err := paramID(c, "noteId")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid note ID"})
	}

	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "No file uploaded"})
	}
	if file.Size > services.MaxAttachmentSize {
		return c.Status(400).JSON(fiber.Map{"error": "File too large. Maximum size is 10MB"})
	}

	src, err := file.Open()
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to read file"})
	}
	defer src.Close()

	attachment, err := h.notes.AddAttachment(c.Context(), noteID, file.Filename, file.Header.Get("Content-Type"), src)
	if err != nil {
		return writeServiceError(c, err, "attachment")
	}

	utils.LogAudit(c.Context(), h.db, p.UserID, "attachment.uploaded", "attachment", attachment.ID, c)
	metrics.IncrementEntityOperation("attachment", "create")
	metrics.AddAttachmentBytes(attachment.FileSize)
	return c.Status(201).JSON(attachment)
}

// DownloadAttachment streams an attachment back with its original name
func (h *NotesHandler) DownloadAttachment(c *fiber.Ctx) error {
	p, err := principalFromCtx(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	attachmentID, err := paramID(c, "attachmentId")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid attachment ID"})
	}

	if err := h.gate.Authorize(c.Context(), p, authz.Ref{Kind: authz.KindAttachment, ID: attachmentID}); err != nil {
		return writeServiceError(c, err, "attachment")
	}

	attachment, reader, err := h.notes.GetAttachment(c.Context(), attachmentID)
	if err != nil {
		return writeServiceError(c, err, "attachment")
	}
	defer reader.Close()

	c.Set("Content-Type", attachment.MimeType)
	c.Set("Content-Disposition", `attachment; filename="`+attachment.OriginalFilename+`"`)
	return c.SendStream(reader, int(attachment.FileSize))
}

// DeleteAttachment removes an attachment row and, best effort, its file
func (h *NotesHandler) DeleteAttachment(c *fiber.Ctx) error {
	p, err := principalFromCtx(c)
	if err != nil {
		return c.Status(401).JSON(fiber.Map{"error": "Unauthorized"})
	}
	attachmentID, err := paramID(c, "attachmentId")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid attachment ID"})
	}

	result, err := h.notes.DeleteAttachment(c.Context(), attachmentID)
	if err != nil {
		return writeServiceError(c, err, "attachment")
	}

	utils.LogAudit(c.Context(), h.db, p.UserID, "attachment.deleted", "attachment", attachmentID, c)
	metrics.IncrementEntityOperation("attachment", "delete")
	return c.JSON(result)
}
