package models

type User struct {
	BaseModel

	Username     string  `gorm:"uniqueIndex;not null"`
	Email        string  `gorm:"uniqueIndex;not null"`
	FullName     string  `gorm:"not null"`
	PasswordHash string  `gorm:"not null" json:"-"`
	IsActive     bool    `gorm:"not null;default:true"`
	ProfileImage *string

	// Relationships
	OwnedProjects      []Project           `gorm:"foreignKey:OwnerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	ProjectMemberships []ProjectMembership `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
