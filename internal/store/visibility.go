package store

import "gorm.io/gorm"

const visibleProjectIDs = "SELECT id FROM projects WHERE owner_id = ? OR id IN (SELECT project_id FROM project_memberships WHERE user_id = ?)"

// VisibleProjects limits a projects query to those the user owns or holds a
// membership in.
func VisibleProjects(userID uint) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("projects.id IN ("+visibleProjectIDs+")", userID, userID)
	}
}

// TasksInVisibleProjects limits a tasks query to tasks whose project is
// visible to the user.
func TasksInVisibleProjects(userID uint) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tasks.project_id IN ("+visibleProjectIDs+")", userID, userID)
	}
}
