package models

type File struct {
	BaseModel

	ProjectID    uint   `gorm:"not null;index"`
	StoredName   string `gorm:"uniqueIndex;not null"` // blob key, never the client's file name
	OriginalName string `gorm:"not null"`
	Size         int64  `gorm:"not null"`
	MimeType     string `gorm:"not null"`
	Description  string
	UploadedBy   uint `gorm:"not null;index"`

	// Relationships
	Project  Project `gorm:"foreignKey:ProjectID"`
	Uploader User    `gorm:"foreignKey:UploadedBy"`
}
