package models

import "time"

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Rank orders roles by privilege for project-management actions. Unknown
// roles rank below member.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleAdmin:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

func (r Role) Valid() bool {
	return r.Rank() > 0
}

// AtLeast reports whether r grants at least the privileges of other.
func (r Role) AtLeast(other Role) bool {
	return r.Valid() && r.Rank() >= other.Rank()
}

type ProjectMembership struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_user_project"`
	ProjectID uint      `gorm:"not null;uniqueIndex:idx_user_project;index"`
	Role      Role      `gorm:"type:varchar(16);not null"`
	JoinedAt  time.Time `gorm:"autoCreateTime"`

	// Relationships
	User    User    `gorm:"foreignKey:UserID"`
	Project Project `gorm:"foreignKey:ProjectID"`
}
