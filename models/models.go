// Package models defines the entities of the client-project tracking domain
// and the JSON shapes returned by the API.
package models

import "time"

// Roles assigned to users.
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

// Status values shared by phases and tasks. Any status may transition to any
// other; changes happen only through explicit admin action.
const (
	StatusNotStarted = "Not Started"
	StatusInProgress = "In Progress"
	StatusCompleted  = "Completed"
	StatusBlocked    = "Blocked"
)

// ValidStatus reports whether s is one of the four phase/task statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusBlocked:
		return true
	}
	return false
}

// User is an authenticated principal. Client users carry contact details and
// own at most one project; admin users own nothing.
type User struct {
	ID                 int64     `json:"id"`
	Username           string    `json:"username"`
	Role               string    `json:"role"`
	ClientName         string    `json:"client_name,omitempty"`
	CompanyName        string    `json:"company_name,omitempty"`
	Contact            string    `json:"contact,omitempty"`
	MustChangePassword bool      `json:"must_change_password"`
	CreatedAt          time.Time `json:"created_at"`
}

// Project belongs to exactly one client user.
type Project struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	ProjectName string    `json:"project_name"`
	CreatedAt   time.Time `json:"created_at"`
	Phases      []Phase   `json:"phases,omitempty"`
}

// Phase is an ordered stage of a project. PhaseNumber is unique per project
// and defines display order.
type Phase struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	PhaseNumber int       `json:"phase_number"`
	PhaseName   string    `json:"phase_name"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	Tasks       []Task    `json:"tasks,omitempty"`
	Updates     []Update  `json:"updates,omitempty"`
}

// Task belongs to one phase; TaskOrder defines display order within it.
type Task struct {
	ID        int64      `json:"id"`
	PhaseID   int64      `json:"phase_id"`
	TaskName  string     `json:"task_name"`
	TaskOrder int        `json:"task_order"`
	Status    string     `json:"status"`
	Notes     string     `json:"notes,omitempty"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Updates   []Update   `json:"updates,omitempty"`
}

// Comment is attached to exactly one of a task or a phase and always has an
// author.
type Comment struct {
	ID          int64     `json:"id"`
	TaskID      *int64    `json:"task_id,omitempty"`
	PhaseID     *int64    `json:"phase_id,omitempty"`
	UserID      int64     `json:"user_id"`
	CommentText string    `json:"comment_text"`
	CreatedAt   time.Time `json:"created_at"`
	Username    string    `json:"username,omitempty"`
	Role        string    `json:"role,omitempty"`
	ClientName  string    `json:"client_name,omitempty"`
}

// Update is a free-text milestone entry on a task or a phase. It has no
// author reference.
type Update struct {
	ID            int64      `json:"id"`
	TaskID        *int64     `json:"task_id,omitempty"`
	PhaseID       *int64     `json:"phase_id,omitempty"`
	UpdateText    string     `json:"update_text"`
	MilestoneDate *time.Time `json:"milestone_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Note is project-scoped rich text (optionally markdown) written by an admin.
type Note struct {
	ID          int64        `json:"id"`
	ProjectID   int64        `json:"project_id"`
	UserID      *int64       `json:"user_id,omitempty"`
	Title       string       `json:"title"`
	Content     string       `json:"content"`
	IsMarkdown  bool         `json:"is_markdown"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	AuthorName  string       `json:"author_name,omitempty"`
	Attachments []Attachment `json:"attachments"`
}

// Attachment is a stored file hanging off a note. FilePath is the location in
// the file store; OriginalFilename is what the uploader called it.
type Attachment struct {
	ID               int64     `json:"id"`
	NoteID           int64     `json:"note_id"`
	Filename         string    `json:"-"`
	OriginalFilename string    `json:"original_filename"`
	FilePath         string    `json:"-"`
	FileSize         int64     `json:"file_size"`
	MimeType         string    `json:"mime_type"`
	CreatedAt        time.Time `json:"created_at"`
}

// ClientSummary is the admin list/detail view of a client joined with their
// project.
type ClientSummary struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	ClientName  string    `json:"client_name"`
	CompanyName string    `json:"company_name"`
	Contact     string    `json:"contact,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ProjectID   *int64    `json:"project_id,omitempty"`
	ProjectName string    `json:"project_name,omitempty"`
}
