package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/progdesk/comms/internal/identity"
	"github.com/progdesk/comms/internal/models"
	apperrors "github.com/progdesk/comms/pkg/errors"
)

// SearchUsersInput captures a role-scoped user search.
type SearchUsersInput struct {
	Term       string
	CallerID   string
	CallerRole identity.Role
	Limit      int
}

// UserService reads the mirrored user directory. The directory is owned by
// the identity provider; this service never creates or updates users.
type UserService struct {
	db *gorm.DB
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	return &UserService{db: db}, nil
}

// GetByID returns a single user.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", strings.TrimSpace(id)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("user service: load user: %w", err)
	}
	return &user, nil
}

// Search matches active users by name or email substring, excluding the
// caller. Callers with role `user` only see finance-role users, mirroring the
// directory's visibility rule.
func (s *UserService) Search(ctx context.Context, input SearchUsersInput) ([]models.User, error) {
	ctx = ensureContext(ctx)

	callerID := strings.TrimSpace(input.CallerID)
	if callerID == "" {
		return nil, apperrors.NewValidation("caller id is required")
	}

	limit := input.Limit
	if limit <= 0 || limit > 50 {
		limit = 20
	}

	query := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("id <> ?", callerID).
		Order("name ASC").
		Limit(limit)

	if term := strings.TrimSpace(input.Term); term != "" {
		pattern := "%" + strings.ToLower(term) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", pattern, pattern)
	}

	if input.CallerRole == identity.RoleUser {
		query = query.Where("role IN ?", identity.FinanceRoles())
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("user service: search users: %w", err)
	}
	return users, nil
}
