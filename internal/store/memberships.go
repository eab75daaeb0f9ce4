package store

import (
	"context"
	"errors"

	"github.com/campusconnect/campusconnect/internal/models"
	"gorm.io/gorm"
)

func (s *Store) checkRole(role models.Role) error {
	if !role.Valid() {
		return invalid("role must be one of owner, admin, member")
	}
	return nil
}

// AddMember grants userID a role in the project. Adding an existing member
// is a conflict.
func (s *Store) AddMember(ctx context.Context, projectID, userID uint, role models.Role) (*models.ProjectMembership, error) {
	if err := s.checkRole(role); err != nil {
		return nil, err
	}

	membership := models.ProjectMembership{
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Take(&project, projectID).Error; err != nil {
			return err
		}

		var user models.User
		if err := tx.Where("id = ? AND is_active = ?", userID, true).Take(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("user %d", userID)
			}
			return err
		}

		var existing models.ProjectMembership
		err := tx.Where("project_id = ? AND user_id = ?", projectID, userID).Take(&existing).Error
		if err == nil {
			return conflict("user %d is already a member of this project", userID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Create(&membership).Error; err != nil {
			return err
		}

		membership.User = user
		return nil
	})
	if err != nil {
		return nil, translate(err, "project")
	}

	return &membership, nil
}

func (s *Store) GetMembership(ctx context.Context, projectID, userID uint) (*models.ProjectMembership, error) {
	var membership models.ProjectMembership

	err := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Take(&membership).Error
	if err != nil {
		return nil, translate(err, "membership")
	}

	return &membership, nil
}

// ListMembers returns the project's memberships with their users, in join
// order.
func (s *Store) ListMembers(ctx context.Context, projectID uint) ([]models.ProjectMembership, error) {
	memberships := []models.ProjectMembership{}

	err := s.db.WithContext(ctx).
		Preload("User").
		Where("project_id = ?", projectID).
		Order("joined_at ASC, id ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, translate(err, "memberships")
	}

	return memberships, nil
}

// ListMembershipsOf returns every membership the user holds, with projects.
func (s *Store) ListMembershipsOf(ctx context.Context, userID uint) ([]models.ProjectMembership, error) {
	memberships := []models.ProjectMembership{}

	err := s.db.WithContext(ctx).
		Preload("Project").
		Where("user_id = ?", userID).
		Order("joined_at ASC, id ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, translate(err, "memberships")
	}

	return memberships, nil
}

func (s *Store) UpdateMemberRole(ctx context.Context, projectID, userID uint, role models.Role) (*models.ProjectMembership, error) {
	if err := s.checkRole(role); err != nil {
		return nil, err
	}

	var membership models.ProjectMembership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ? AND user_id = ?", projectID, userID).Take(&membership).Error; err != nil {
			return err
		}
		if err := tx.Model(&membership).Update("role", role).Error; err != nil {
			return err
		}
		return tx.Preload("User").Take(&membership, membership.ID).Error
	})
	if err != nil {
		return nil, translate(err, "membership")
	}

	return &membership, nil
}

func (s *Store) RemoveMember(ctx context.Context, projectID, userID uint) error {
	result := s.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&models.ProjectMembership{})
	if result.Error != nil {
		return translate(result.Error, "membership")
	}
	if result.RowsAffected == 0 {
		return notFound("membership")
	}
	return nil
}
