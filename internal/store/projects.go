package store

import (
	"context"
	"errors"
	"strings"

	"github.com/campusconnect/campusconnect/internal/blob"
	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type NewProject struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
}

type ProjectUpdate struct {
	Title       *string `json:"title" validate:"omitnil,min=1,max=200"`
	Description *string `json:"description" validate:"omitnil,max=5000"`
}

// CreateProject creates the project and the creator's owner membership in
// one transaction.
func (s *Store) CreateProject(ctx context.Context, ownerID uint, in NewProject) (*models.Project, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)

	if err := s.check(in); err != nil {
		return nil, err
	}

	project := models.Project{
		Title:       in.Title,
		Description: in.Description,
		OwnerID:     ownerID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner models.User
		if err := tx.Take(&owner, ownerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("owner %d", ownerID)
			}
			return err
		}

		if err := tx.Create(&project).Error; err != nil {
			return err
		}

		return tx.Create(&models.ProjectMembership{
			ProjectID: project.ID,
			UserID:    ownerID,
			Role:      models.RoleOwner,
		}).Error
	})
	if err != nil {
		return nil, translate(err, "project")
	}

	return &project, nil
}

func (s *Store) GetProject(ctx context.Context, id uint) (*models.Project, error) {
	var project models.Project
	if err := s.db.WithContext(ctx).Take(&project, id).Error; err != nil {
		return nil, translate(err, "project")
	}
	return &project, nil
}

// ListProjectsVisibleTo returns the projects the user owns or belongs to,
// newest first.
func (s *Store) ListProjectsVisibleTo(ctx context.Context, userID uint) ([]models.Project, error) {
	projects := []models.Project{}

	err := s.db.WithContext(ctx).
		Scopes(VisibleProjects(userID)).
		Order("projects.created_at DESC, projects.id DESC").
		Find(&projects).Error
	if err != nil {
		return nil, translate(err, "projects")
	}

	return projects, nil
}

func (s *Store) UpdateProject(ctx context.Context, id uint, in ProjectUpdate) (*models.Project, error) {
	in.Title = trimPtr(in.Title)
	in.Description = trimPtr(in.Description)

	if err := s.check(in); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Title != nil {
		updates["title"] = *in.Title
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if len(updates) == 0 {
		return nil, invalid("no fields to update")
	}

	var project models.Project
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Take(&project, id).Error; err != nil {
			return err
		}
		if err := tx.Model(&project).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Take(&project, id).Error
	})
	if err != nil {
		return nil, translate(err, "project")
	}

	return &project, nil
}

// DeleteProject removes the project together with its memberships, tasks
// and file rows, then deletes the file blobs once the rows are gone.
func (s *Store) DeleteProject(ctx context.Context, id uint) error {
	var keys []string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Take(&project, id).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.File{}).Where("project_id = ?", id).Pluck("stored_name", &keys).Error; err != nil {
			return err
		}

		for _, model := range []interface{}{&models.File{}, &models.Task{}, &models.ProjectMembership{}} {
			if err := tx.Where("project_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&project).Error
	})
	if err != nil {
		return translate(err, "project")
	}

	for _, key := range keys {
		if err := s.blobs.Delete(key); err != nil && !errors.Is(err, blob.ErrNotExist) {
			log.Error().Err(err).Uint("project_id", id).Str("blob", key).Msg("failed to delete blob of deleted project")
		}
	}

	return nil
}

// SearchProjects matches title and description case-insensitively.
func (s *Store) SearchProjects(ctx context.Context, term string, n int, scopes ...Scope) ([]models.Project, error) {
	projects := []models.Project{}

	err := s.db.WithContext(ctx).
		Scopes(scopes...).
		Scopes(containsFold(term, "projects.title", "projects.description"), limit(n)).
		Order("projects.updated_at DESC, projects.id DESC").
		Find(&projects).Error
	if err != nil {
		return nil, translate(err, "projects")
	}

	return projects, nil
}
