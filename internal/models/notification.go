package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification types.
const (
	NotificationTypeInfo    = "info"
	NotificationTypeSuccess = "success"
	NotificationTypeWarning = "warning"
	NotificationTypeError   = "error"
)

// Notification represents an in-app notification for a user. Only the read
// flag is mutable; deletion is permanent.
type Notification struct {
	BaseModel

	UserID   string         `gorm:"type:uuid;index;not null" json:"user_id"`
	Type     string         `gorm:"type:varchar(32);not null;default:'info'" json:"type"`
	Title    string         `gorm:"type:varchar(255);not null" json:"title"`
	Message  string         `gorm:"type:text" json:"message"`
	Metadata datatypes.JSON `json:"metadata"`

	IsRead bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt *time.Time `json:"read_at"`
}
