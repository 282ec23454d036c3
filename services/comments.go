package services

import (
	"context"
	"errors"
	"html"
	"strings"

	"github.com/jackc/pgx/v5"

	"trackdesk/database"
	"trackdesk/models"
)

// CommentService manages the authored discussion threads on tasks and phases.
type CommentService struct {
	db database.Database
}

func NewCommentService(db database.Database) *CommentService {
	return &CommentService{db: db}
}

// CreateCommentInput attaches a comment to exactly one of a task or a phase.
type CreateCommentInput struct {
	TaskID      *int64 `json:"task_id"`
	PhaseID     *int64 `json:"phase_id"`
	CommentText string `json:"comment_text"`
}

// CreateComment stores a comment for the given author. Comment text is
// HTML-escaped before storage. Exactly one of TaskID and PhaseID must be set.
func (s *CommentService) CreateComment(ctx context.Context, authorID int64, in CreateCommentInput) (*models.Comment, error) {
	if err := validateOneOf(in.TaskID, in.PhaseID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.CommentText) == "" || len(in.CommentText) > 2000 {
		return nil, Validationf("comment_text is required and must be at most 2000 characters")
	}

	sanitized := html.EscapeString(in.CommentText)

	var commentID int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO comments (task_id, phase_id, user_id, comment_text)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		in.TaskID, in.PhaseID, authorID, sanitized,
	).Scan(&commentID)
	if err != nil {
		return nil, classifyPgError(err, "creating comment")
	}

	return s.GetComment(ctx, commentID)
}

// GetComment returns one comment joined with its author.
func (s *CommentService) GetComment(ctx context.Context, commentID int64) (*models.Comment, error) {
	var c models.Comment
	err := s.db.QueryRow(ctx, `
		SELECT c.id, c.task_id, c.phase_id, c.user_id, c.comment_text, c.created_at,
		       u.username, u.role, COALESCE(u.client_name, '')
		FROM comments c
		JOIN users u ON c.user_id = u.id
		WHERE c.id = $1`,
		commentID,
	).Scan(&c.ID, &c.TaskID, &c.PhaseID, &c.UserID, &c.CommentText, &c.CreatedAt,
		&c.Username, &c.Role, &c.ClientName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("comment %d not found", commentID)
		}
		return nil, Internalf(err, "fetching comment")
	}
	return &c, nil
}

// ListTaskComments returns a task's comments newest first.
func (s *CommentService) ListTaskComments(ctx context.Context, taskID int64) ([]models.Comment, error) {
	return s.listComments(ctx, `c.task_id = $1`, taskID)
}

// ListPhaseComments returns a phase's comments newest first.
func (s *CommentService) ListPhaseComments(ctx context.Context, phaseID int64) ([]models.Comment, error) {
	return s.listComments(ctx, `c.phase_id = $1`, phaseID)
}

func (s *CommentService) listComments(ctx context.Context, where string, arg int64) ([]models.Comment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.id, c.task_id, c.phase_id, c.user_id, c.comment_text, c.created_at,
		       u.username, u.role, COALESCE(u.client_name, '')
		FROM comments c
		JOIN users u ON c.user_id = u.id
		WHERE `+where+`
		ORDER BY c.created_at DESC`,
		arg,
	)
	if err != nil {
		return nil, Internalf(err, "listing comments")
	}
	defer rows.Close()

	comments := make([]models.Comment, 0)
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.PhaseID, &c.UserID, &c.CommentText, &c.CreatedAt,
			&c.Username, &c.Role, &c.ClientName); err != nil {
			return nil, Internalf(err, "scanning comment row")
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, Internalf(err, "iterating comment rows")
	}
	return comments, nil
}

// DeleteComment removes a comment. Admins may delete any comment; other
// callers only their own.
func (s *CommentService) DeleteComment(ctx context.Context, commentID int64, callerID int64, callerRole string) (*DeleteResult, error) {
	var authorID int64
	err := s.db.QueryRow(ctx, `SELECT user_id FROM comments WHERE id = $1`, commentID).Scan(&authorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("comment %d not found", commentID)
		}
		return nil, Internalf(err, "fetching comment author")
	}

	if callerRole != models.RoleAdmin && authorID != callerID {
		return nil, Forbiddenf("not authorized to delete this comment")
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, commentID)
	if err != nil {
		return nil, classifyPgError(err, "deleting comment")
	}
	return &DeleteResult{Deleted: true, Affected: tag.RowsAffected()}, nil
}

// validateOneOf enforces the exactly-one-of target rule shared by comments
// and updates.
func validateOneOf(taskID, phaseID *int64) error {
	if taskID == nil && phaseID == nil {
		return Validationf("either task_id or phase_id must be provided")
	}
	if taskID != nil && phaseID != nil {
		return Validationf("task_id and phase_id are mutually exclusive")
	}
	return nil
}
