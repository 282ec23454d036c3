package services

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"

	"github.com/jackc/pgx/v5"

	"trackdesk/database"
	"trackdesk/models"
	"trackdesk/storage"
)

// MaxAttachmentSize caps uploaded attachment payloads at 10MB.
const MaxAttachmentSize = 10 * 1024 * 1024

// allowedAttachmentTypes is the upload MIME allow-list: PDF, Word documents,
// and plain text.
var allowedAttachmentTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"text/plain": true,
}

// AllowedAttachmentType reports whether the MIME type may be uploaded.
func AllowedAttachmentType(mimeType string) bool {
	return allowedAttachmentTypes[strings.TrimSpace(strings.Split(mimeType, ";")[0])]
}

// NoteService manages project notes and their file attachments. File bytes
// live in the FileStore; rows here only carry metadata.
type NoteService struct {
	db    database.Database
	files storage.FileStore
}

func NewNoteService(db database.Database, files storage.FileStore) *NoteService {
	return &NoteService{db: db, files: files}
}

// CreateNoteInput creates a note under a project.
type CreateNoteInput struct {
	ProjectID  int64  `json:"project_id"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	IsMarkdown bool   `json:"is_markdown"`
}

// CreateNote stores a note authored by the given admin.
func (s *NoteService) CreateNote(ctx context.Context, authorID int64, in CreateNoteInput) (*models.Note, error) {
	if strings.TrimSpace(in.Title) == "" || len(in.Title) > 200 {
		return nil, Validationf("title is required and must be at most 200 characters")
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, Validationf("content is required")
	}

	var noteID int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO project_notes (project_id, user_id, title, content, is_markdown)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		in.ProjectID, authorID, in.Title, in.Content, in.IsMarkdown,
	).Scan(&noteID)
	if err != nil {
		return nil, classifyPgError(err, "creating note")
	}
	return s.GetNote(ctx, noteID)
}

// UpdateNoteInput carries the optional fields of a note update.
type UpdateNoteInput struct {
	Title      *string `json:"title"`
	Content    *string `json:"content"`
	IsMarkdown *bool   `json:"is_markdown"`
}

// UpdateNote applies the provided fields and returns the full note.
func (s *NoteService) UpdateNote(ctx context.Context, noteID int64, in UpdateNoteInput) (*models.Note, error) {
	if in.Title == nil && in.Content == nil && in.IsMarkdown == nil {
		return nil, Validationf("no valid fields to update")
	}
	if in.Title != nil && (strings.TrimSpace(*in.Title) == "" || len(*in.Title) > 200) {
		return nil, Validationf("title must be non-empty and at most 200 characters")
	}
	if in.Content != nil && strings.TrimSpace(*in.Content) == "" {
		return nil, Validationf("content must not be empty")
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE project_notes SET
			title = COALESCE($2, title),
			content = COALESCE($3, content),
			is_markdown = COALESCE($4, is_markdown)
		WHERE id = $1`,
		noteID, in.Title, in.Content, in.IsMarkdown,
	)
	if err != nil {
		return nil, classifyPgError(err, "updating note")
	}
	if tag.RowsAffected() == 0 {
		return nil, NotFoundf("note %d not found", noteID)
	}
	return s.GetNote(ctx, noteID)
}

// GetNote returns one note with its author name and attachments.
func (s *NoteService) GetNote(ctx context.Context, noteID int64) (*models.Note, error) {
	var n models.Note
	err := s.db.QueryRow(ctx, `
		SELECT n.id, n.project_id, n.user_id, n.title, n.content, n.is_markdown,
		       n.created_at, n.updated_at, COALESCE(u.username, '')
		FROM project_notes n
		LEFT JOIN users u ON n.user_id = u.id
		WHERE n.id = $1`,
		noteID,
	).Scan(&n.ID, &n.ProjectID, &n.UserID, &n.Title, &n.Content, &n.IsMarkdown,
		&n.CreatedAt, &n.UpdatedAt, &n.AuthorName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("note %d not found", noteID)
		}
		return nil, Internalf(err, "fetching note")
	}

	attachments, err := s.listAttachments(ctx, noteID)
	if err != nil {
		return nil, err
	}
	n.Attachments = attachments
	return &n, nil
}

// ListNotes returns a project's notes newest first, each with attachments.
func (s *NoteService) ListNotes(ctx context.Context, projectID int64) ([]models.Note, error) {
	rows, err := s.db.Query(ctx, `
		SELECT n.id, n.project_id, n.user_id, n.title, n.content, n.is_markdown,
		       n.created_at, n.updated_at, COALESCE(u.username, '')
		FROM project_notes n
		LEFT JOIN users u ON n.user_id = u.id
		WHERE n.project_id = $1
		ORDER BY n.created_at DESC`,
		projectID,
	)
	if err != nil {
		return nil, Internalf(err, "listing notes")
	}
	defer rows.Close()

	notes := make([]models.Note, 0)
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.ProjectID, &n.UserID, &n.Title, &n.Content, &n.IsMarkdown,
			&n.CreatedAt, &n.UpdatedAt, &n.AuthorName); err != nil {
			return nil, Internalf(err, "scanning note row")
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, Internalf(err, "iterating note rows")
	}

	for i := range notes {
		attachments, err := s.listAttachments(ctx, notes[i].ID)
		if err != nil {
			return nil, err
		}
		notes[i].Attachments = attachments
	}
	return notes, nil
}

func (s *NoteService) listAttachments(ctx context.Context, noteID int64) ([]models.Attachment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, note_id, filename, original_filename, file_path, file_size, mime_type, created_at
		FROM note_attachments
		WHERE note_id = $1
		ORDER BY created_at`,
		noteID,
	)
	if err != nil {
		return nil, Internalf(err, "listing attachments")
	}
	defer rows.Close()

	attachments := make([]models.Attachment, 0)
	for rows.Next() {
		var a models.Attachment
		if err := rows.Scan(&a.ID, &a.NoteID, &a.Filename, &a.OriginalFilename,
			&a.FilePath, &a.FileSize, &a.MimeType, &a.CreatedAt); err != nil {
			return nil, Internalf(err, "scanning attachment row")
		}
		attachments = append(attachments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, Internalf(err, "iterating attachment rows")
	}
	return attachments, nil
}

// DeleteNote removes a note in two phases: the metadata row goes first
// (cascading the attachment rows), then the stored files are removed best
// effort. A file that refuses to die leaves only orphaned bytes, never a
// dangling row.
func (s *NoteService) DeleteNote(ctx context.Context, noteID int64) (*DeleteResult, error) {
	paths := make([]string, 0)
	rows, err := s.db.Query(ctx, `SELECT file_path FROM note_attachments WHERE note_id = $1`, noteID)
	if err != nil {
		return nil, Internalf(err, "collecting attachment paths")
	}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return nil, Internalf(err, "scanning attachment path")
		}
		paths = append(paths, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, Internalf(err, "iterating attachment paths")
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM project_notes WHERE id = $1`, noteID)
	if err != nil {
		return nil, classifyPgError(err, "deleting note")
	}
	if tag.RowsAffected() == 0 {
		return nil, NotFoundf("note %d not found", noteID)
	}

	for _, p := range paths {
		if err := s.files.Remove(p); err != nil {
			log.Printf("Failed to delete attachment file %s: %v", p, err)
		}
	}

	return &DeleteResult{Deleted: true, Affected: tag.RowsAffected() + int64(len(paths))}, nil
}

// AddAttachment streams an upload into the file store and records its
// metadata. The file is written first; if the insert then fails the stored
// bytes are removed so no orphan survives the request.
func (s *NoteService) AddAttachment(ctx context.Context, noteID int64, originalName, mimeType string, r io.Reader) (*models.Attachment, error) {
	if strings.TrimSpace(originalName) == "" {
		return nil, Validationf("filename is required")
	}
	if !AllowedAttachmentType(mimeType) {
		return nil, Validationf("invalid file type: only PDF, Word documents, and text files are allowed")
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM project_notes WHERE id = $1)`, noteID).Scan(&exists); err != nil {
		return nil, Internalf(err, "checking note")
	}
	if !exists {
		return nil, NotFoundf("note %d not found", noteID)
	}

	path, size, err := s.files.Save(originalName, io.LimitReader(r, MaxAttachmentSize+1))
	if err != nil {
		return nil, Internalf(err, "storing attachment file")
	}
	if size > MaxAttachmentSize {
		_ = s.files.Remove(path)
		return nil, Validationf("file exceeds the %d byte limit", MaxAttachmentSize)
	}

	var a models.Attachment
	err = s.db.QueryRow(ctx, `
		INSERT INTO note_attachments (note_id, filename, original_filename, file_path, file_size, mime_type)
		VALUES ($1, $2, $3, $2, $4, $5)
		RETURNING id, note_id, filename, original_filename, file_path, file_size, mime_type, created_at`,
		noteID, path, originalName, size, mimeType,
	).Scan(&a.ID, &a.NoteID, &a.Filename, &a.OriginalFilename,
		&a.FilePath, &a.FileSize, &a.MimeType, &a.CreatedAt)
	if err != nil {
		if rmErr := s.files.Remove(path); rmErr != nil {
			log.Printf("Failed to clean up attachment file %s: %v", path, rmErr)
		}
		return nil, classifyPgError(err, "recording attachment")
	}
	return &a, nil
}

// GetAttachment returns attachment metadata plus a reader over the payload.
// The caller owns closing the reader.
func (s *NoteService) GetAttachment(ctx context.Context, attachmentID int64) (*models.Attachment, io.ReadCloser, error) {
	var a models.Attachment
	err := s.db.QueryRow(ctx, `
		SELECT id, note_id, filename, original_filename, file_path, file_size, mime_type, created_at
		FROM note_attachments WHERE id = $1`,
		attachmentID,
	).Scan(&a.ID, &a.NoteID, &a.Filename, &a.OriginalFilename,
		&a.FilePath, &a.FileSize, &a.MimeType, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, NotFoundf("attachment %d not found", attachmentID)
		}
		return nil, nil, Internalf(err, "fetching attachment")
	}

	if !s.files.Exists(a.FilePath) {
		return nil, nil, NotFoundf("attachment file missing from storage")
	}
	f, err := s.files.Open(a.FilePath)
	if err != nil {
		return nil, nil, Internalf(err, "opening attachment file")
	}
	return &a, f, nil
}

// DeleteAttachment removes the metadata row, then the stored file best
// effort.
func (s *NoteService) DeleteAttachment(ctx context.Context, attachmentID int64) (*DeleteResult, error) {
	var path string
	err := s.db.QueryRow(ctx, `SELECT file_path FROM note_attachments WHERE id = $1`, attachmentID).Scan(&path)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("attachment %d not found", attachmentID)
		}
		return nil, Internalf(err, "fetching attachment path")
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM note_attachments WHERE id = $1`, attachmentID)
	if err != nil {
		return nil, classifyPgError(err, "deleting attachment")
	}
	if tag.RowsAffected() == 0 {
		return nil, NotFoundf("attachment %d not found", attachmentID)
	}

	if err := s.files.Remove(path); err != nil {
		log.Printf("Failed to delete attachment file %s: %v", path, err)
	}
	return &DeleteResult{Deleted: true, Affected: tag.RowsAffected()}, nil
}
