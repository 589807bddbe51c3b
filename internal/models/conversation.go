package models

import "strings"

// Conversation kinds.
const (
	ConversationKindDirect  = "direct"
	ConversationKindGroup   = "group"
	ConversationKindProgram = "program"
)

// Conversation is a thread between two or more participants. Direct
// conversations carry a PairKey derived from the sorted participant ids; the
// unique index on it is the durable half of the pair-uniqueness invariant
// (the directory's per-pair mutex is the in-process half).
type Conversation struct {
	BaseModel

	Title string `gorm:"not null" json:"title"`
	Kind  string `gorm:"type:varchar(16);not null;index" json:"kind"`

	// ProgramRef links program conversations to an external program entity.
	// The id is opaque to this core.
	ProgramRef *string `gorm:"type:uuid" json:"program_ref,omitempty"`

	CreatedBy string `gorm:"type:uuid;not null" json:"created_by"`

	// PairKey is set only for direct conversations. Nullable so group and
	// program rows do not collide on the unique index.
	PairKey *string `gorm:"uniqueIndex" json:"-"`

	Participants []User `gorm:"many2many:conversation_participants;" json:"participants,omitempty"`
}

// DirectPairKey canonicalises an unordered participant pair.
func DirectPairKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}
