package models

import "time"

// Message kinds.
const (
	MessageKindText   = "text"
	MessageKindFile   = "file"
	MessageKindSystem = "system"
)

// Message is an immutable entry in a conversation. Ids are ULIDs issued from a
// monotonic source, so ordering by (created_at, id) is a stable total order.
type Message struct {
	ID             string `gorm:"primaryKey;type:varchar(26)" json:"id"`
	ConversationID string `gorm:"type:uuid;not null;index" json:"conversation_id"`
	SenderID       string `gorm:"type:uuid;not null" json:"sender_id"`

	Kind string `gorm:"type:varchar(16);not null;default:'text'" json:"kind"`
	Body string `gorm:"type:text" json:"body"`

	// File attachments are opaque references; storage mechanics live elsewhere.
	FileName string `json:"file_name,omitempty"`
	FileURL  string `gorm:"type:text" json:"file_url,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`

	// Reads is the message's read set, one row per user who has seen it.
	Reads []MessageRead `gorm:"foreignKey:MessageID" json:"read_by"`
}

// MessageRead records that a user has read a message. Rows are only ever
// inserted; readBy growth is monotonic.
type MessageRead struct {
	MessageID string    `gorm:"primaryKey;type:varchar(26)" json:"-"`
	UserID    string    `gorm:"primaryKey;type:uuid" json:"user_id"`
	ReadAt    time.Time `json:"read_at"`
}
