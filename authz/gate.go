// Package authz decides whether a principal may act on an entity by
// resolving the entity's ownership chain up to its owning client user.
// Admins may act on everything; clients only on entities under their own
// project.
package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trackdesk/database"
	"trackdesk/models"
)

// Kind identifies an entity type in the ownership graph.
type Kind string

const (
	KindUser       Kind = "user"
	KindProject    Kind = "project"
	KindPhase      Kind = "phase"
	KindTask       Kind = "task"
	KindComment    Kind = "comment"
	KindUpdate     Kind = "update"
	KindNote       Kind = "note"
	KindAttachment Kind = "attachment"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID int64
	Role   string
}

// Ref names a single entity.
type Ref struct {
	Kind Kind
	ID   int64
}

// ErrDenied means the entity exists but the principal may not touch it.
// Callers must keep this distinct from ErrNotFound: a client probing another
// client's project gets 403, not 404.
var ErrDenied = errors.New("authz: access denied")

// ErrNotFound means the entity does not exist.
var ErrNotFound = errors.New("authz: entity not found")

// Gate authorizes entity access against the database.
type Gate struct {
	db database.Database
}

func NewGate(db database.Database) *Gate {
	return &Gate{db: db}
}

// Decide is the pure access rule: admins own everything, clients only
// entities whose chain resolves to their own user id.
func Decide(p Principal, ownerID int64) bool {
	if p.Role == models.RoleAdmin {
		return true
	}
	return p.UserID == ownerID
}

// Authorize resolves ref's owning user and applies Decide. Returns
// ErrNotFound when the entity (or any link of its chain) is missing and
// ErrDenied when the principal loses the ownership check.
func (g *Gate) Authorize(ctx context.Context, p Principal, ref Ref) error {
	ownerID, err := g.resolveOwner(ctx, ref)
	if err != nil {
		return err
	}
	if !Decide(p, ownerID) {
		return ErrDenied
	}
	return nil
}

// resolveOwner walks the chain entity -> ... -> project -> user and returns
// the owning client user id.
func (g *Gate) resolveOwner(ctx context.Context, ref Ref) (int64, error) {
	var query string
	switch ref.Kind {
	case KindUser:
		query = `SELECT id FROM users WHERE id = $1`
	case KindProject:
		query = `SELECT user_id FROM projects WHERE id = $1`
	case KindPhase:
		query = `
			SELECT pr.user_id FROM phases ph
			JOIN projects pr ON pr.id = ph.project_id
			WHERE ph.id = $1`
	case KindTask:
		query = `
			SELECT pr.user_id FROM tasks t
			JOIN phases ph ON ph.id = t.phase_id
			JOIN projects pr ON pr.id = ph.project_id
			WHERE t.id = $1`
	case KindComment:
		query = `
			SELECT pr.user_id FROM comments c
			LEFT JOIN tasks t ON t.id = c.task_id
			LEFT JOIN phases tph ON tph.id = t.phase_id
			LEFT JOIN phases cph ON cph.id = c.phase_id
			JOIN projects pr ON pr.id = COALESCE(tph.project_id, cph.project_id)
			WHERE c.id = $1`
	case KindUpdate:
		query = `
			SELECT pr.user_id FROM updates u
			LEFT JOIN tasks t ON t.id = u.task_id
			LEFT JOIN phases tph ON tph.id = t.phase_id
			LEFT JOIN phases uph ON uph.id = u.phase_id
			JOIN projects pr ON pr.id = COALESCE(tph.project_id, uph.project_id)
			WHERE u.id = $1`
	case KindNote:
		query = `
			SELECT pr.user_id FROM project_notes n
			JOIN projects pr ON pr.id = n.project_id
			WHERE n.id = $1`
	case KindAttachment:
		query = `
			SELECT pr.user_id FROM note_attachments a
			JOIN project_notes n ON n.id = a.note_id
			JOIN projects pr ON pr.id = n.project_id
			WHERE a.id = $1`
	default:
		return 0, fmt.Errorf("authz: unknown entity kind %q", ref.Kind)
	}

	var ownerID int64
	err := g.db.QueryRow(ctx, query, ref.ID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("authz: resolving %s %d: %w", ref.Kind, ref.ID, err)
	}
	return ownerID, nil
}
