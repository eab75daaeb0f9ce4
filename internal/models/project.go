package models

type Project struct {
	BaseModel

	Title       string `gorm:"not null"`
	Description string
	OwnerID     uint `gorm:"not null;index"`

	// Relationships
	Owner              User                `gorm:"foreignKey:OwnerID" json:"-"`
	ProjectMemberships []ProjectMembership `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Tasks              []Task              `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Files              []File              `gorm:"foreignKey:ProjectID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
}
