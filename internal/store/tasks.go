package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/campusconnect/campusconnect/internal/models"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type NewTask struct {
	Title       string            `json:"title" validate:"required,max=200"`
	Description string            `json:"description" validate:"max=5000"`
	Status      models.TaskStatus `json:"status" validate:"omitempty,task_status"`
	AssignedTo  *uint             `json:"assigned_to"`
	DueDate     *time.Time        `json:"due_date"`
}

// TaskUpdate merges the supplied fields. AssignedTo of 0 clears the
// assignee.
type TaskUpdate struct {
	Title       *string            `json:"title" validate:"omitnil,min=1,max=200"`
	Description *string            `json:"description" validate:"omitnil,max=5000"`
	Status      *models.TaskStatus `json:"status" validate:"omitnil,task_status"`
	AssignedTo  *uint              `json:"assigned_to"`
	DueDate     *time.Time         `json:"due_date"`
}

type TaskFilter struct {
	Status     models.TaskStatus
	AssignedTo *uint
}

func (f TaskFilter) scope() Scope {
	return func(db *gorm.DB) *gorm.DB {
		if f.Status != "" {
			db = db.Where("tasks.status = ?", f.Status)
		}
		if f.AssignedTo != nil {
			db = db.Where("tasks.assigned_to = ?", *f.AssignedTo)
		}
		return db
	}
}

// checkAssignee requires the assignee to exist. An assignee outside the
// project is tolerated and only logged.
func checkAssignee(tx *gorm.DB, projectID, userID uint) error {
	var user models.User
	if err := tx.Take(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return invalid("assigned user %d does not exist", userID)
		}
		return err
	}

	var members int64
	err := tx.Model(&models.ProjectMembership{}).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		Count(&members).Error
	if err != nil {
		return err
	}
	if members == 0 {
		log.Warn().Uint("project_id", projectID).Uint("user_id", userID).Msg("task assigned to a user outside the project")
	}

	return nil
}

func (s *Store) CreateTask(ctx context.Context, projectID, createdBy uint, in NewTask) (*models.Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	if in.Status == "" {
		in.Status = models.TaskTodo
	}
	if in.AssignedTo != nil && *in.AssignedTo == 0 {
		in.AssignedTo = nil
	}

	if err := s.check(in); err != nil {
		return nil, err
	}

	task := models.Task{
		ProjectID:   projectID,
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		AssignedTo:  in.AssignedTo,
		CreatedBy:   createdBy,
		DueDate:     in.DueDate,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var project models.Project
		if err := tx.Take(&project, projectID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("project %d", projectID)
			}
			return err
		}

		if task.AssignedTo != nil {
			if err := checkAssignee(tx, projectID, *task.AssignedTo); err != nil {
				return err
			}
		}

		return tx.Create(&task).Error
	})
	if err != nil {
		return nil, translate(err, "task")
	}

	return &task, nil
}

func (s *Store) GetTask(ctx context.Context, id uint) (*models.Task, error) {
	var task models.Task
	if err := s.db.WithContext(ctx).Take(&task, id).Error; err != nil {
		return nil, translate(err, "task")
	}
	return &task, nil
}

func (s *Store) ListProjectTasks(ctx context.Context, projectID uint, filter TaskFilter) ([]models.Task, error) {
	tasks := []models.Task{}

	err := s.db.WithContext(ctx).
		Where("tasks.project_id = ?", projectID).
		Scopes(filter.scope()).
		Order("tasks.created_at DESC, tasks.id DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, translate(err, "tasks")
	}

	return tasks, nil
}

// ListTasksVisibleTo returns tasks across every project the user can see.
func (s *Store) ListTasksVisibleTo(ctx context.Context, userID uint, filter TaskFilter) ([]models.Task, error) {
	tasks := []models.Task{}

	err := s.db.WithContext(ctx).
		Scopes(TasksInVisibleProjects(userID), filter.scope()).
		Order("tasks.created_at DESC, tasks.id DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, translate(err, "tasks")
	}

	return tasks, nil
}

func (s *Store) UpdateTask(ctx context.Context, id uint, in TaskUpdate) (*models.Task, error) {
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
	if in.Status != nil {
		updates["status"] = *in.Status
	}
	if in.DueDate != nil {
		updates["due_date"] = *in.DueDate
	}
	if in.AssignedTo != nil {
		if *in.AssignedTo == 0 {
			updates["assigned_to"] = nil
		} else {
			updates["assigned_to"] = *in.AssignedTo
		}
	}
	if len(updates) == 0 {
		return nil, invalid("no fields to update")
	}

	var task models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Take(&task, id).Error; err != nil {
			return err
		}

		if in.AssignedTo != nil && *in.AssignedTo != 0 {
			if err := checkAssignee(tx, task.ProjectID, *in.AssignedTo); err != nil {
				return err
			}
		}

		if err := tx.Model(&task).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Take(&task, id).Error
	})
	if err != nil {
		return nil, translate(err, "task")
	}

	return &task, nil
}

func (s *Store) DeleteTask(ctx context.Context, id uint) error {
	result := s.db.WithContext(ctx).Delete(&models.Task{}, id)
	if result.Error != nil {
		return translate(result.Error, "task")
	}
	if result.RowsAffected == 0 {
		return notFound("task %d", id)
	}
	return nil
}

// SearchTasks matches title and description case-insensitively.
func (s *Store) SearchTasks(ctx context.Context, term string, n int, scopes ...Scope) ([]models.Task, error) {
	tasks := []models.Task{}

	err := s.db.WithContext(ctx).
		Scopes(scopes...).
		Scopes(containsFold(term, "tasks.title", "tasks.description"), limit(n)).
		Order("tasks.updated_at DESC, tasks.id DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, translate(err, "tasks")
	}

	return tasks, nil
}
