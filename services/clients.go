// Package services implements the entity lifecycle operations of trackdesk:
// client provisioning, project structure management, discussion threads, and
// project notes with attachments. All multi-row mutations run in database
// transactions so partial writes never become visible.
package services

import (
	"context"
	"crypto/rand"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"

	"trackdesk/crypto"
	"trackdesk/database"
	"trackdesk/models"
)

// DefaultPhaseCount is the number of phases provisioned with a new project.
const DefaultPhaseCount = 4

// seedTaskName is the task created on the first phase of every new project.
const seedTaskName = "Initial Assessment"

// ClientService manages client accounts and their cascade lifecycle.
type ClientService struct {
	db database.Database
}

func NewClientService(db database.Database) *ClientService {
	return &ClientService{db: db}
}

// CreateClientInput is the admin request to provision a client.
type CreateClientInput struct {
	ClientName  string   `json:"client_name"`
	CompanyName string   `json:"company_name"`
	ProjectName string   `json:"project_name"`
	Contact     string   `json:"contact"`
	PhaseNames  []string `json:"phase_names"`
}

// CreatedClient is returned once, with the only copy of the temporary password.
type CreatedClient struct {
	ID                int64  `json:"id"`
	Username          string `json:"username"`
	TemporaryPassword string `json:"temporary_password"`
	ClientName        string `json:"client_name"`
	CompanyName       string `json:"company_name"`
	ProjectID         int64  `json:"project_id"`
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// UsernameFromClientName derives the login name: lowercase with all
// whitespace stripped.
func UsernameFromClientName(clientName string) string {
	return whitespaceRe.ReplaceAllString(strings.ToLower(clientName), "")
}

func (in *CreateClientInput) validate() error {
	if strings.TrimSpace(in.ClientName) == "" || len(in.ClientName) > 100 {
		return Validationf("client_name is required and must be at most 100 characters")
	}
	if strings.TrimSpace(in.CompanyName) == "" || len(in.CompanyName) > 100 {
		return Validationf("company_name is required and must be at most 100 characters")
	}
	if strings.TrimSpace(in.ProjectName) == "" || len(in.ProjectName) > 100 {
		return Validationf("project_name is required and must be at most 100 characters")
	}
	if len(in.PhaseNames) != DefaultPhaseCount {
		return Validationf("phase_names must contain exactly %d entries", DefaultPhaseCount)
	}
	for _, name := range in.PhaseNames {
		if strings.TrimSpace(name) == "" || len(name) > 100 {
			return Validationf("each phase name is required and must be at most 100 characters")
		}
	}
	if UsernameFromClientName(in.ClientName) == "" {
		return Validationf("client_name must contain at least one non-space character")
	}
	return nil
}

// CreateClientWithProject provisions the full client graph in one
// transaction: user, project, the default phases, and the seed task on the
// first phase.
func (s *ClientService) CreateClientWithProject(ctx context.Context, in CreateClientInput) (*CreatedClient, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	username := UsernameFromClientName(in.ClientName)

	tempPassword, err := crypto.GenerateTempPassword()
	if err != nil {
		return nil, Internalf(err, "generating temporary password")
	}
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, Internalf(err, "generating salt")
	}
	passwordHash := crypto.HashPassword(tempPassword, salt)

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, Internalf(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, role, client_name, company_name, contact, must_change_password)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), true)
		RETURNING id`,
		username, passwordHash, models.RoleClient, in.ClientName, in.CompanyName, in.Contact,
	).Scan(&userID)
	if err != nil {
		return nil, classifyPgError(err, "creating client user")
	}

	var projectID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO projects (user_id, project_name)
		VALUES ($1, $2)
		RETURNING id`,
		userID, in.ProjectName,
	).Scan(&projectID)
	if err != nil {
		return nil, classifyPgError(err, "creating project")
	}

	for i, phaseName := range in.PhaseNames {
		var phaseID int64
		err = tx.QueryRow(ctx, `
			INSERT INTO phases (project_id, phase_number, phase_name)
			VALUES ($1, $2, $3)
			RETURNING id`,
			projectID, i, phaseName,
		).Scan(&phaseID)
		if err != nil {
			return nil, classifyPgError(err, "creating phase")
		}

		if i == 0 {
			_, err = tx.Exec(ctx, `
				INSERT INTO tasks (phase_id, task_name, task_order)
				VALUES ($1, $2, 1)`,
				phaseID, seedTaskName,
			)
			if err != nil {
				return nil, classifyPgError(err, "creating seed task")
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, Internalf(err, "committing client creation")
	}

	return &CreatedClient{
		ID:                userID,
		Username:          username,
		TemporaryPassword: tempPassword,
		ClientName:        in.ClientName,
		CompanyName:       in.CompanyName,
		ProjectID:         projectID,
	}, nil
}

// ListClients returns all client accounts joined with their project, newest
// first.
func (s *ClientService) ListClients(ctx context.Context) ([]models.ClientSummary, error) {
	rows, err := s.db.Query(ctx, `
		SELECT u.id, u.username, u.client_name, u.company_name, COALESCE(u.contact, ''), u.created_at,
		       p.id, p.project_name
		FROM users u
		LEFT JOIN projects p ON u.id = p.user_id
		WHERE u.role = $1
		ORDER BY u.created_at DESC`,
		models.RoleClient,
	)
	if err != nil {
		return nil, Internalf(err, "listing clients")
	}
	defer rows.Close()

	clients := make([]models.ClientSummary, 0)
	for rows.Next() {
		var c models.ClientSummary
		var projectID *int64
		var projectName *string
		if err := rows.Scan(&c.ID, &c.Username, &c.ClientName, &c.CompanyName, &c.Contact,
			&c.CreatedAt, &projectID, &projectName); err != nil {
			return nil, Internalf(err, "scanning client row")
		}
		c.ProjectID = projectID
		if projectName != nil {
			c.ProjectName = *projectName
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, Internalf(err, "iterating client rows")
	}
	return clients, nil
}

// GetClient returns one client account with its project.
func (s *ClientService) GetClient(ctx context.Context, id int64) (*models.ClientSummary, error) {
	var c models.ClientSummary
	var projectID *int64
	var projectName *string
	err := s.db.QueryRow(ctx, `
		SELECT u.id, u.username, u.client_name, u.company_name, COALESCE(u.contact, ''), u.created_at,
		       p.id, p.project_name
		FROM users u
		LEFT JOIN projects p ON u.id = p.user_id
		WHERE u.id = $1 AND u.role = $2`,
		id, models.RoleClient,
	).Scan(&c.ID, &c.Username, &c.ClientName, &c.CompanyName, &c.Contact,
		&c.CreatedAt, &projectID, &projectName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("client %d not found", id)
		}
		return nil, Internalf(err, "fetching client")
	}
	c.ProjectID = projectID
	if projectName != nil {
		c.ProjectName = *projectName
	}
	return &c, nil
}

// DeleteResult reports what a cascading delete removed.
type DeleteResult struct {
	Deleted  bool  `json:"deleted"`
	Affected int64 `json:"affected"`
}

// DeleteClient removes a client account. Database cascades take the project,
// phases, tasks, comments, updates, and notes with it; Affected counts the
// rows under the client's project that went away.
func (s *ClientService) DeleteClient(ctx context.Context, id int64) (*DeleteResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, Internalf(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var affected int64
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM (
			SELECT p.id FROM projects p WHERE p.user_id = $1
			UNION ALL
			SELECT ph.id FROM phases ph
			JOIN projects p ON p.id = ph.project_id WHERE p.user_id = $1
			UNION ALL
			SELECT t.id FROM tasks t
			JOIN phases ph ON ph.id = t.phase_id
			JOIN projects p ON p.id = ph.project_id WHERE p.user_id = $1
			UNION ALL
			SELECT n.id FROM project_notes n
			JOIN projects p ON p.id = n.project_id WHERE p.user_id = $1
		) sub`,
		id,
	).Scan(&affected)
	if err != nil {
		return nil, Internalf(err, "counting cascade scope")
	}

	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1 AND role = $2`, id, models.RoleClient)
	if err != nil {
		return nil, classifyPgError(err, "deleting client")
	}
	if tag.RowsAffected() == 0 {
		return nil, NotFoundf("client %d not found", id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, Internalf(err, "committing client deletion")
	}

	return &DeleteResult{Deleted: true, Affected: affected + tag.RowsAffected()}, nil
}
