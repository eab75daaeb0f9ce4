// Package access decides what an identity may do with a project, task or
// file. Every decision is derived from ownership and membership as currently
// stored; nothing is cached between calls.
//
// Predicates never fail. A missing resource or a storage error is a denial,
// and storage errors are logged.
package access

import (
	"context"
	"errors"

	"github.com/campusconnect/campusconnect/internal/errs"
	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/campusconnect/campusconnect/internal/store"
	"github.com/rs/zerolog/log"
)

// Facts is the part of the store the guard reads.
type Facts interface {
	GetProject(ctx context.Context, id uint) (*models.Project, error)
	GetMembership(ctx context.Context, projectID, userID uint) (*models.ProjectMembership, error)
}

type Guard struct {
	facts Facts
}

func NewGuard(facts Facts) *Guard {
	return &Guard{facts: facts}
}

// RoleOf returns the user's effective role in the project, or "" when the
// user has none. The project's owner is always RoleOwner.
func (g *Guard) RoleOf(ctx context.Context, userID uint, project *models.Project) models.Role {
	if project == nil || userID == 0 {
		return ""
	}
	if project.OwnerID == userID {
		return models.RoleOwner
	}

	membership, err := g.facts.GetMembership(ctx, project.ID, userID)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			log.Error().Err(err).Uint("project_id", project.ID).Uint("user_id", userID).Msg("membership lookup failed")
		}
		return ""
	}

	return membership.Role
}

func (g *Guard) CanView(ctx context.Context, userID uint, project *models.Project) bool {
	return g.RoleOf(ctx, userID, project).Valid()
}

func (g *Guard) CanManageMembers(ctx context.Context, userID uint, project *models.Project) bool {
	return g.RoleOf(ctx, userID, project).AtLeast(models.RoleAdmin)
}

// CanModifyProject allows owners only. Admins manage members and content
// but cannot edit or delete the project itself.
func (g *Guard) CanModifyProject(ctx context.Context, userID uint, project *models.Project) bool {
	return g.RoleOf(ctx, userID, project) == models.RoleOwner
}

func (g *Guard) CanModifyTask(ctx context.Context, userID uint, task *models.Task) bool {
	if task == nil || userID == 0 {
		return false
	}
	if task.CreatedBy == userID || (task.AssignedTo != nil && *task.AssignedTo == userID) {
		return true
	}
	return g.managesProject(ctx, userID, task.ProjectID)
}

func (g *Guard) CanModifyFile(ctx context.Context, userID uint, file *models.File) bool {
	if file == nil || userID == 0 {
		return false
	}
	if file.UploadedBy == userID {
		return true
	}
	return g.managesProject(ctx, userID, file.ProjectID)
}

func (g *Guard) managesProject(ctx context.Context, userID, projectID uint) bool {
	project, err := g.facts.GetProject(ctx, projectID)
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			log.Error().Err(err).Uint("project_id", projectID).Msg("project lookup failed")
		}
		return false
	}
	return g.CanManageMembers(ctx, userID, project)
}

// CanAddMember reports whether userID may add someone to the project with
// role. Only owners hand out the owner role.
func (g *Guard) CanAddMember(ctx context.Context, userID uint, project *models.Project, role models.Role) bool {
	actor := g.RoleOf(ctx, userID, project)
	if !actor.AtLeast(models.RoleAdmin) {
		return false
	}
	return role != models.RoleOwner || actor == models.RoleOwner
}

// CanChangeRole reports whether userID may move target to role. The
// project's owner cannot be demoted, and only owners grant or revoke the
// owner role.
func (g *Guard) CanChangeRole(ctx context.Context, userID uint, project *models.Project, target *models.ProjectMembership, role models.Role) bool {
	if project == nil || target == nil || target.UserID == project.OwnerID {
		return false
	}

	actor := g.RoleOf(ctx, userID, project)
	if !actor.AtLeast(models.RoleAdmin) {
		return false
	}
	if target.Role == models.RoleOwner || role == models.RoleOwner {
		return actor == models.RoleOwner
	}
	return true
}

// CanRemoveMember reports whether userID may remove target from the
// project. Members may always leave, except the project's owner who can
// never be removed.
func (g *Guard) CanRemoveMember(ctx context.Context, userID uint, project *models.Project, target *models.ProjectMembership) bool {
	if project == nil || target == nil || target.UserID == project.OwnerID {
		return false
	}
	if target.UserID == userID {
		return true
	}

	actor := g.RoleOf(ctx, userID, project)
	if !actor.AtLeast(models.RoleAdmin) {
		return false
	}
	if target.Role == models.RoleOwner {
		return actor == models.RoleOwner
	}
	return true
}

// ProjectScope restricts a projects query to what CanView allows.
func (g *Guard) ProjectScope(userID uint) store.Scope {
	return store.VisibleProjects(userID)
}

// TaskScope restricts a tasks query to tasks of projects the user can view.
func (g *Guard) TaskScope(userID uint) store.Scope {
	return store.TasksInVisibleProjects(userID)
}
