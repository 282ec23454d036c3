package services

import (
	"context"
	"strings"
	"time"

	"trackdesk/database"
	"trackdesk/models"
)

// UpdateService manages milestone update entries on tasks and phases.
type UpdateService struct {
	db database.Database
}

func NewUpdateService(db database.Database) *UpdateService {
	return &UpdateService{db: db}
}

// CreateUpdateInput attaches an update to exactly one of a task or a phase.
type CreateUpdateInput struct {
	TaskID        *int64     `json:"task_id"`
	PhaseID       *int64     `json:"phase_id"`
	UpdateText    string     `json:"update_text"`
	MilestoneDate *time.Time `json:"milestone_date"`
}

// CreateUpdate stores a milestone entry and returns the stored row.
func (s *UpdateService) CreateUpdate(ctx context.Context, in CreateUpdateInput) (*models.Update, error) {
	if err := validateOneOf(in.TaskID, in.PhaseID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.UpdateText) == "" {
		return nil, Validationf("update_text is required")
	}

	var u models.Update
	err := s.db.QueryRow(ctx, `
		INSERT INTO updates (task_id, phase_id, update_text, milestone_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id, task_id, phase_id, update_text, milestone_date, created_at`,
		in.TaskID, in.PhaseID, in.UpdateText, in.MilestoneDate,
	).Scan(&u.ID, &u.TaskID, &u.PhaseID, &u.UpdateText, &u.MilestoneDate, &u.CreatedAt)
	if err != nil {
		return nil, classifyPgError(err, "creating update")
	}
	return &u, nil
}

// ListTaskUpdates returns a task's updates newest first.
func (s *UpdateService) ListTaskUpdates(ctx context.Context, taskID int64) ([]models.Update, error) {
	return s.listUpdates(ctx, `task_id = $1`, taskID)
}

// ListPhaseUpdates returns a phase's updates newest first.
func (s *UpdateService) ListPhaseUpdates(ctx context.Context, phaseID int64) ([]models.Update, error) {
	return s.listUpdates(ctx, `phase_id = $1`, phaseID)
}

func (s *UpdateService) listUpdates(ctx context.Context, where string, arg int64) ([]models.Update, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, task_id, phase_id, update_text, milestone_date, created_at
		FROM updates
		WHERE `+where+`
		ORDER BY created_at DESC`,
		arg,
	)
	if err != nil {
		return nil, Internalf(err, "listing updates")
	}
	defer rows.Close()

	updates := make([]models.Update, 0)
	for rows.Next() {
		var u models.Update
		if err := rows.Scan(&u.ID, &u.TaskID, &u.PhaseID, &u.UpdateText, &u.MilestoneDate, &u.CreatedAt); err != nil {
			return nil, Internalf(err, "scanning update row")
		}
		updates = append(updates, u)
	}
	if err := rows.Err(); err != nil {
		return nil, Internalf(err, "iterating update rows")
	}
	return updates, nil
}

// DeleteUpdate removes one milestone entry.
func (s *UpdateService) DeleteUpdate(ctx context.Context, updateID int64) (*DeleteResult, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM updates WHERE id = $1`, updateID)
	if err != nil {
		return nil, classifyPgError(err, "deleting update")
	}
	if tag.RowsAffected() == 0 {
		return nil, NotFoundf("update %d not found", updateID)
	}
	return &DeleteResult{Deleted: true, Affected: tag.RowsAffected()}, nil
}
