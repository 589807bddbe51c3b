package identity

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/progdesk/comms/internal/models"
	apperrors "github.com/progdesk/comms/pkg/errors"
)

// Identity is the `{id, role}` pair every core operation receives explicitly.
type Identity struct {
	ID   string
	Role Role
}

// Resolver looks identities up in the user directory. It is the sole source
// of truth for role-based decisions in the messaging core.
type Resolver struct {
	db *gorm.DB
}

// NewResolver constructs a Resolver.
func NewResolver(db *gorm.DB) (*Resolver, error) {
	if db == nil {
		return nil, errors.New("identity: db is required")
	}
	return &Resolver{db: db}, nil
}

// Resolve returns the identity for the supplied user id.
func (r *Resolver) Resolve(ctx context.Context, userID string) (Identity, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, apperrors.ErrNotFound
		}
		return Identity{}, fmt.Errorf("identity: resolve %s: %w", userID, err)
	}

	role, err := ParseRole(user.Role)
	if err != nil {
		return Identity{}, err
	}

	return Identity{ID: user.ID, Role: role}, nil
}
