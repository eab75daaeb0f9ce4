package models

import "time"

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskReview     TaskStatus = "review"
	TaskDone       TaskStatus = "done"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskTodo, TaskInProgress, TaskReview, TaskDone:
		return true
	}
	return false
}

type Task struct {
	BaseModel

	ProjectID   uint       `gorm:"not null;index"`
	Title       string     `gorm:"not null"`
	Description string
	Status      TaskStatus `gorm:"type:varchar(16);not null;default:todo;index"`
	AssignedTo  *uint      `gorm:"index"`
	CreatedBy   uint       `gorm:"not null;index"`
	DueDate     *time.Time

	// Relationships
	Project  Project `gorm:"foreignKey:ProjectID"`
	Assignee *User   `gorm:"foreignKey:AssignedTo;constraint:OnDelete:SET NULL"`
	Creator  User    `gorm:"foreignKey:CreatedBy"`
}
