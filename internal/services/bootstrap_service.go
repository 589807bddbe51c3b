package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/progdesk/comms/internal/identity"
	"github.com/progdesk/comms/internal/models"
	apperrors "github.com/progdesk/comms/pkg/errors"
	"github.com/progdesk/comms/pkg/logger"
	"github.com/progdesk/comms/pkg/metrics"
)

// RolePair names two roles whose members get pre-created direct conversations
// during the staff fan-out.
type RolePair struct {
	A string `mapstructure:"a"`
	B string `mapstructure:"b"`
}

// BootstrapPolicy is the configuration-driven policy table: which roles may
// serve as a regular user's designated counterpart, and which role pairs the
// staff fan-out pre-creates.
type BootstrapPolicy struct {
	CounterpartRoles []string   `mapstructure:"counterpart_roles"`
	PairRoles        []RolePair `mapstructure:"pair_roles"`
}

// DefaultBootstrapPolicy pairs regular users with the finance team and
// pre-creates conversations between all finance-role pairs.
func DefaultBootstrapPolicy() BootstrapPolicy {
	finance := []string{
		string(identity.RoleFinance),
		string(identity.RoleFinanceOfficer),
		string(identity.RoleSuperAdmin),
	}
	var pairs []RolePair
	for i, a := range finance {
		for _, b := range finance[i:] {
			pairs = append(pairs, RolePair{A: a, B: b})
		}
	}
	return BootstrapPolicy{CounterpartRoles: finance, PairRoles: pairs}
}

// BootstrapService guarantees, idempotently and best-effort, that
// role-mandated direct conversations exist before a session's first listing.
// Individual creation failures are logged, never surfaced: bootstrap must not
// block the caller's session.
type BootstrapService struct {
	db            *gorm.DB
	conversations *ConversationService
	resolver      *identity.Resolver
	policy        BootstrapPolicy
	log           *zap.Logger
}

// NewBootstrapService constructs a BootstrapService.
func NewBootstrapService(db *gorm.DB, conversations *ConversationService, resolver *identity.Resolver, policy BootstrapPolicy) (*BootstrapService, error) {
	if db == nil {
		return nil, errors.New("bootstrap service: db is required")
	}
	if conversations == nil {
		return nil, errors.New("bootstrap service: conversation service is required")
	}
	if resolver == nil {
		return nil, errors.New("bootstrap service: identity resolver is required")
	}
	if len(policy.CounterpartRoles) == 0 {
		policy = DefaultBootstrapPolicy()
	}
	return &BootstrapService{
		db:            db,
		conversations: conversations,
		resolver:      resolver,
		policy:        policy,
		log:           logger.WithModule("bootstrap"),
	}, nil
}

// Run dispatches to the role-appropriate bootstrap entry point.
func (s *BootstrapService) Run(ctx context.Context, caller identity.Identity) error {
	if caller.Role == identity.RoleUser {
		return s.EnsureFinanceConversation(ctx, caller.ID)
	}
	return s.EnsureDirectConversations(ctx, caller.ID)
}

// EnsureFinanceConversation find-or-creates the single direct conversation
// between a regular user and the designated finance counterpart: the
// lowest-id active user holding a counterpart role. Deterministic, so repeated
// sessions always converge on the same conversation.
func (s *BootstrapService) EnsureFinanceConversation(ctx context.Context, userID string) error {
	ctx = ensureContext(ctx)

	caller, err := s.resolver.Resolve(ctx, strings.TrimSpace(userID))
	if err != nil {
		return err
	}

	counterpart, err := s.designatedCounterpart(ctx)
	if err != nil {
		return err
	}
	if counterpart == nil {
		s.log.Warn("no active finance counterpart; skipping bootstrap",
			zap.String("user_id", caller.ID))
		metrics.BootstrapRuns.WithLabelValues(string(caller.Role), "partial").Inc()
		return nil
	}

	if err := s.ensureDirect(ctx, caller.ID, counterpart.ID, counterpart.Name); err != nil {
		s.log.Error("finance conversation bootstrap failed",
			zap.String("user_id", caller.ID),
			zap.String("counterpart_id", counterpart.ID),
			zap.Error(err))
		metrics.BootstrapRuns.WithLabelValues(string(caller.Role), "partial").Inc()
		return nil
	}

	metrics.BootstrapRuns.WithLabelValues(string(caller.Role), "ok").Inc()
	return nil
}

// EnsureDirectConversations runs the staff fan-out: a direct conversation
// between the actor and every active regular user missing one, plus the
// policy table's role pairs. Each creation is individually best-effort.
func (s *BootstrapService) EnsureDirectConversations(ctx context.Context, actorID string) error {
	ctx = ensureContext(ctx)

	actor, err := s.resolver.Resolve(ctx, strings.TrimSpace(actorID))
	if err != nil {
		return err
	}
	if !identity.IsStaff(actor.Role) {
		return apperrors.NewForbidden("bootstrap fan-out requires a staff role")
	}

	var failures error

	regulars, err := s.activeUsersByRole(ctx, []string{string(identity.RoleUser)})
	if err != nil {
		return err
	}
	for _, user := range regulars {
		if user.ID == actor.ID {
			continue
		}
		if err := s.ensureDirect(ctx, actor.ID, user.ID, user.Name); err != nil {
			failures = multierr.Append(failures, fmt.Errorf("pair %s/%s: %w", actor.ID, user.ID, err))
		}
	}

	failures = multierr.Append(failures, s.ensurePolicyPairs(ctx))

	if failures != nil {
		// Best-effort by contract: log and let the session proceed to listing.
		s.log.Error("bootstrap fan-out completed with failures",
			zap.String("actor_id", actor.ID),
			zap.Int("failed", len(multierr.Errors(failures))),
			zap.Error(failures))
		metrics.BootstrapRuns.WithLabelValues(string(actor.Role), "partial").Inc()
		return nil
	}

	metrics.BootstrapRuns.WithLabelValues(string(actor.Role), "ok").Inc()
	return nil
}

func (s *BootstrapService) ensurePolicyPairs(ctx context.Context) error {
	var failures error
	for _, pair := range s.policy.PairRoles {
		left, err := s.activeUsersByRole(ctx, []string{pair.A})
		if err != nil {
			failures = multierr.Append(failures, err)
			continue
		}
		right, err := s.activeUsersByRole(ctx, []string{pair.B})
		if err != nil {
			failures = multierr.Append(failures, err)
			continue
		}
		for _, a := range left {
			for _, b := range right {
				if a.ID == b.ID {
					continue
				}
				if err := s.ensureDirect(ctx, a.ID, b.ID, b.Name); err != nil {
					failures = multierr.Append(failures, fmt.Errorf("pair %s/%s: %w", a.ID, b.ID, err))
				}
			}
		}
	}
	return failures
}

// designatedCounterpart picks the lowest-id active counterpart-role user.
func (s *BootstrapService) designatedCounterpart(ctx context.Context) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("role IN ? AND is_active = ?", s.policy.CounterpartRoles, true).
		Order("id ASC").
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("bootstrap service: counterpart lookup: %w", err)
	}
	return &user, nil
}

func (s *BootstrapService) activeUsersByRole(ctx context.Context, roles []string) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("role IN ? AND is_active = ?", roles, true).
		Order("id ASC").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("bootstrap service: load users by role: %w", err)
	}
	return users, nil
}

func (s *BootstrapService) ensureDirect(ctx context.Context, creatorID, otherID, otherName string) error {
	_, _, err := s.conversations.Create(ctx, CreateConversationInput{
		CreatorID:      creatorID,
		Title:          otherName,
		ParticipantIDs: []string{otherID},
	})
	return err
}
