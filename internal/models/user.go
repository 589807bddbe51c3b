package models

// User mirrors the identity provider's directory. Records are reference data
// for the messaging core: read, never created or updated here.
type User struct {
	BaseModel

	Name  string `gorm:"not null" json:"name"`
	Email string `gorm:"uniqueIndex;not null" json:"email"`
	Role  string `gorm:"type:varchar(32);not null;default:'user';index" json:"role"`

	IsActive bool `gorm:"default:true" json:"is_active"`
}
