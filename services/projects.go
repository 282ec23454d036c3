package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"trackdesk/database"
	"trackdesk/models"
)

// ProjectService manages the project structure: phases, tasks, and their
// ordering.
type ProjectService struct {
	db database.Database
}

func NewProjectService(db database.Database) *ProjectService {
	return &ProjectService{db: db}
}

// GetProject returns a project with its phases ordered by phase number, each
// phase carrying its ordered tasks and newest-first updates.
func (s *ProjectService) GetProject(ctx context.Context, projectID int64) (*models.Project, error) {
	var project models.Project
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, project_name, created_at FROM projects WHERE id = $1`,
		projectID,
	).Scan(&project.ID, &project.UserID, &project.ProjectName, &project.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("project %d not found", projectID)
		}
		return nil, Internalf(err, "fetching project")
	}

	phases, err := s.loadPhases(ctx, projectID)
	if err != nil {
		return nil, err
	}
	project.Phases = phases
	return &project, nil
}

// GetProjectForUser returns the project owned by the given client user.
func (s *ProjectService) GetProjectForUser(ctx context.Context, userID int64) (*models.Project, error) {
	var projectID int64
	err := s.db.QueryRow(ctx, `SELECT id FROM projects WHERE user_id = $1`, userID).Scan(&projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("no project for user %d", userID)
		}
		return nil, Internalf(err, "resolving project for user")
	}
	return s.GetProject(ctx, projectID)
}

func (s *ProjectService) loadPhases(ctx context.Context, projectID int64) ([]models.Phase, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, project_id, phase_number, phase_name, status, created_at
		FROM phases WHERE project_id = $1 ORDER BY phase_number`,
		projectID,
	)
	if err != nil {
		return nil, Internalf(err, "listing phases")
	}
	defer rows.Close()

	phases := make([]models.Phase, 0)
	for rows.Next() {
		var ph models.Phase
		if err := rows.Scan(&ph.ID, &ph.ProjectID, &ph.PhaseNumber, &ph.PhaseName, &ph.Status, &ph.CreatedAt); err != nil {
			return nil, Internalf(err, "scanning phase row")
		}
		phases = append(phases, ph)
	}
	if err := rows.Err(); err != nil {
		return nil, Internalf(err, "iterating phase rows")
	}

	for i := range phases {
		tasks, err := s.loadTasks(ctx, phases[i].ID)
		if err != nil {
			return nil, err
		}
		updates, err := s.loadPhaseUpdates(ctx, phases[i].ID)
		if err != nil {
			return nil, err
		}
		phases[i].Tasks = tasks
		phases[i].Updates = updates
	}
	return phases, nil
}

func (s *ProjectService) loadTasks(ctx context.Context, phaseID int64) ([]models.Task, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, phase_id, task_name, task_order, status, notes, due_date, created_at, updated_at
		FROM tasks WHERE phase_id = $1 ORDER BY task_order, id`,
		phaseID,
	)
	if err != nil {
		return nil, Internalf(err, "listing tasks")
	}
	defer rows.Close()

	tasks := make([]models.Task, 0)
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.PhaseID, &t.TaskName, &t.TaskOrder, &t.Status,
			&t.Notes, &t.DueDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, Internalf(err, "scanning task row")
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, Internalf(err, "iterating task rows")
	}
	return tasks, nil
}

func (s *ProjectService) loadPhaseUpdates(ctx context.Context, phaseID int64) ([]models.Update, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, task_id, phase_id, update_text, milestone_date, created_at
		FROM updates WHERE phase_id = $1 ORDER BY created_at DESC`,
		phaseID,
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

// GetPhase returns a single phase with its ordered tasks, each carrying
// newest-first updates, plus the phase's own updates.
func (s *ProjectService) GetPhase(ctx context.Context, phaseID int64) (*models.Phase, error) {
	var ph models.Phase
	err := s.db.QueryRow(ctx, `
		SELECT id, project_id, phase_number, phase_name, status, created_at
		FROM phases WHERE id = $1`,
		phaseID,
	).Scan(&ph.ID, &ph.ProjectID, &ph.PhaseNumber, &ph.PhaseName, &ph.Status, &ph.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("phase %d not found", phaseID)
		}
		return nil, Internalf(err, "fetching phase")
	}

	tasks, err := s.loadTasks(ctx, ph.ID)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		updates, err := s.loadTaskUpdates(ctx, tasks[i].ID)
		if err != nil {
			return nil, err
		}
		tasks[i].Updates = updates
	}
	updates, err := s.loadPhaseUpdates(ctx, ph.ID)
	if err != nil {
		return nil, err
	}
	ph.Tasks = tasks
	ph.Updates = updates
	return &ph, nil
}

// GetTask returns a single task with its newest-first updates.
func (s *ProjectService) GetTask(ctx context.Context, taskID int64) (*models.Task, error) {
	var t models.Task
	err := s.db.QueryRow(ctx, `
		SELECT id, phase_id, task_name, task_order, status, notes, due_date, created_at, updated_at
		FROM tasks WHERE id = $1`,
		taskID,
	).Scan(&t.ID, &t.PhaseID, &t.TaskName, &t.TaskOrder, &t.Status,
		&t.Notes, &t.DueDate, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("task %d not found", taskID)
		}
		return nil, Internalf(err, "fetching task")
	}

	updates, err := s.loadTaskUpdates(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	t.Updates = updates
	return &t, nil
}

func (s *ProjectService) loadTaskUpdates(ctx context.Context, taskID int64) ([]models.Update, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, task_id, phase_id, update_text, milestone_date, created_at
		FROM updates WHERE task_id = $1 ORDER BY created_at DESC`,
		taskID,
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

// CreatePhaseInput adds a phase to an existing project.
type CreatePhaseInput struct {
	ProjectID   int64  `json:"project_id"`
	PhaseNumber int    `json:"phase_number"`
	PhaseName   string `json:"phase_name"`
}

// CreatePhase inserts a phase. A duplicate phase number within the project
// surfaces as a conflict, a missing project as an integrity failure.
func (s *ProjectService) CreatePhase(ctx context.Context, in CreatePhaseInput) (*models.Phase, error) {
	if strings.TrimSpace(in.PhaseName) == "" || len(in.PhaseName) > 100 {
		return nil, Validationf("phase_name is required and must be at most 100 characters")
	}
	if in.PhaseNumber < 0 {
		return nil, Validationf("phase_number must not be negative")
	}

	var ph models.Phase
	err := s.db.QueryRow(ctx, `
		INSERT INTO phases (project_id, phase_number, phase_name)
		VALUES ($1, $2, $3)
		RETURNING id, project_id, phase_number, phase_name, status, created_at`,
		in.ProjectID, in.PhaseNumber, in.PhaseName,
	).Scan(&ph.ID, &ph.ProjectID, &ph.PhaseNumber, &ph.PhaseName, &ph.Status, &ph.CreatedAt)
	if err != nil {
		return nil, classifyPgError(err, "creating phase")
	}
	return &ph, nil
}

// UpdatePhaseInput carries the optional fields of a phase update.
type UpdatePhaseInput struct {
	PhaseName *string `json:"phase_name"`
	Status    *string `json:"status"`
}

// UpdatePhase applies the provided fields and returns the full phase.
func (s *ProjectService) UpdatePhase(ctx context.Context, phaseID int64, in UpdatePhaseInput) (*models.Phase, error) {
	if in.PhaseName == nil && in.Status == nil {
		return nil, Validationf("no valid fields to update")
	}
	if in.PhaseName != nil && (strings.TrimSpace(*in.PhaseName) == "" || len(*in.PhaseName) > 100) {
		return nil, Validationf("phase_name must be non-empty and at most 100 characters")
	}
	if in.Status != nil && !models.ValidStatus(*in.Status) {
		return nil, Validationf("invalid status %q", *in.Status)
	}

	var ph models.Phase
	err := s.db.QueryRow(ctx, `
		UPDATE phases SET
			phase_name = COALESCE($2, phase_name),
			status = COALESCE($3, status)
		WHERE id = $1
		RETURNING id, project_id, phase_number, phase_name, status, created_at`,
		phaseID, in.PhaseName, in.Status,
	).Scan(&ph.ID, &ph.ProjectID, &ph.PhaseNumber, &ph.PhaseName, &ph.Status, &ph.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("phase %d not found", phaseID)
		}
		return nil, classifyPgError(err, "updating phase")
	}
	return &ph, nil
}

// DeletePhase removes a phase and everything under it.
func (s *ProjectService) DeletePhase(ctx context.Context, phaseID int64) (*DeleteResult, error) {
	var affected int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE phase_id = $1`, phaseID).Scan(&affected)
	if err != nil {
		return nil, Internalf(err, "counting phase tasks")
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM phases WHERE id = $1`, phaseID)
	if err != nil {
		return nil, classifyPgError(err, "deleting phase")
	}
	if tag.RowsAffected() == 0 {
		return nil, NotFoundf("phase %d not found", phaseID)
	}
	return &DeleteResult{Deleted: true, Affected: affected + tag.RowsAffected()}, nil
}

// CreateTaskInput adds a task to a phase.
type CreateTaskInput struct {
	PhaseID   int64      `json:"phase_id"`
	TaskName  string     `json:"task_name"`
	TaskOrder int        `json:"task_order"`
	Notes     string     `json:"notes"`
	DueDate   *time.Time `json:"due_date"`
}

// CreateTask inserts a task and returns the stored row.
func (s *ProjectService) CreateTask(ctx context.Context, in CreateTaskInput) (*models.Task, error) {
	if strings.TrimSpace(in.TaskName) == "" || len(in.TaskName) > 200 {
		return nil, Validationf("task_name is required and must be at most 200 characters")
	}

	var t models.Task
	err := s.db.QueryRow(ctx, `
		INSERT INTO tasks (phase_id, task_name, task_order, notes, due_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, phase_id, task_name, task_order, status, notes, due_date, created_at, updated_at`,
		in.PhaseID, in.TaskName, in.TaskOrder, in.Notes, in.DueDate,
	).Scan(&t.ID, &t.PhaseID, &t.TaskName, &t.TaskOrder, &t.Status, &t.Notes,
		&t.DueDate, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, classifyPgError(err, "creating task")
	}
	return &t, nil
}

// UpdateTaskInput carries the optional fields of a task update. Notes and
// DueDate distinguish absent from explicitly cleared.
type UpdateTaskInput struct {
	TaskName  *string    `json:"task_name"`
	Status    *string    `json:"status"`
	Notes     *string    `json:"notes"`
	DueDate   *time.Time `json:"due_date"`
	ClearDue  bool       `json:"clear_due_date"`
	TaskOrder *int       `json:"task_order"`
}

// UpdateTask applies the provided fields and returns the full task.
func (s *ProjectService) UpdateTask(ctx context.Context, taskID int64, in UpdateTaskInput) (*models.Task, error) {
	if in.TaskName == nil && in.Status == nil && in.Notes == nil && in.DueDate == nil && !in.ClearDue && in.TaskOrder == nil {
		return nil, Validationf("no valid fields to update")
	}
	if in.TaskName != nil && (strings.TrimSpace(*in.TaskName) == "" || len(*in.TaskName) > 200) {
		return nil, Validationf("task_name must be non-empty and at most 200 characters")
	}
	if in.Status != nil && !models.ValidStatus(*in.Status) {
		return nil, Validationf("invalid status %q", *in.Status)
	}

	var t models.Task
	err := s.db.QueryRow(ctx, `
		UPDATE tasks SET
			task_name = COALESCE($2, task_name),
			status = COALESCE($3, status),
			notes = COALESCE($4, notes),
			due_date = CASE WHEN $6 THEN NULL ELSE COALESCE($5, due_date) END,
			task_order = COALESCE($7, task_order)
		WHERE id = $1
		RETURNING id, phase_id, task_name, task_order, status, notes, due_date, created_at, updated_at`,
		taskID, in.TaskName, in.Status, in.Notes, in.DueDate, in.ClearDue, in.TaskOrder,
	).Scan(&t.ID, &t.PhaseID, &t.TaskName, &t.TaskOrder, &t.Status, &t.Notes,
		&t.DueDate, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("task %d not found", taskID)
		}
		return nil, classifyPgError(err, "updating task")
	}
	return &t, nil
}

// DeleteTask removes a single task.
func (s *ProjectService) DeleteTask(ctx context.Context, taskID int64) (*DeleteResult, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID)
	if err != nil {
		return nil, classifyPgError(err, "deleting task")
	}
	if tag.RowsAffected() == 0 {
		return nil, NotFoundf("task %d not found", taskID)
	}
	return &DeleteResult{Deleted: true, Affected: tag.RowsAffected()}, nil
}

// ReorderTasks rewrites the order of every task in a phase. orderedIDs must
// be an exact permutation of the phase's current task ids; anything less, more,
// duplicated, or foreign is rejected before a single row changes. The phase's
// rows are locked for the duration so a concurrent insert cannot slip between
// validation and the writes.
func (s *ProjectService) ReorderTasks(ctx context.Context, phaseID int64, orderedIDs []int64) ([]models.Task, error) {
	if len(orderedIDs) == 0 {
		return nil, Validationf("task id list must not be empty")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, Internalf(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM phases WHERE id = $1)`, phaseID).Scan(&exists); err != nil {
		return nil, Internalf(err, "checking phase")
	}
	if !exists {
		return nil, NotFoundf("phase %d not found", phaseID)
	}

	rows, err := tx.Query(ctx, `SELECT id FROM tasks WHERE phase_id = $1 FOR UPDATE`, phaseID)
	if err != nil {
		return nil, Internalf(err, "locking phase tasks")
	}
	current := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, Internalf(err, "scanning task id")
		}
		current[id] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, Internalf(err, "iterating task ids")
	}

	if err := validatePermutation(current, orderedIDs); err != nil {
		return nil, err
	}

	for i, id := range orderedIDs {
		if _, err := tx.Exec(ctx, `UPDATE tasks SET task_order = $2 WHERE id = $1`, id, i+1); err != nil {
			return nil, classifyPgError(err, "reordering task")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, Internalf(err, "committing reorder")
	}

	return s.loadTasks(ctx, phaseID)
}

// validatePermutation checks that orderedIDs contains every id in current
// exactly once and nothing else. A mismatched set is an integrity failure:
// the request disagrees with the stored task graph, not merely with the
// input format.
func validatePermutation(current map[int64]bool, orderedIDs []int64) error {
	if len(orderedIDs) != len(current) {
		return Integrityf("expected %d task ids, got %d", len(current), len(orderedIDs))
	}
	seen := make(map[int64]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		if seen[id] {
			return Integrityf("duplicate task id %d", id)
		}
		if !current[id] {
			return Integrityf("task %d does not belong to this phase", id)
		}
		seen[id] = true
	}
	return nil
}
