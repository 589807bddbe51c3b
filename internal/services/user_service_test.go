package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/progdesk/comms/internal/database/testutil"
	"github.com/progdesk/comms/internal/identity"
	apperrors "github.com/progdesk/comms/pkg/errors"
)

func TestUserServiceSearchRoleScoping(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	seedUser(t, db, "user-1", "Alice", "user")
	seedUser(t, db, "user-2", "Bob", "user")
	seedUser(t, db, "fin-1", "Frank", "finance")
	seedUser(t, db, "adm-1", "Root", "admin")

	svc, err := NewUserService(db)
	require.NoError(t, err)

	ctx := context.Background()

	// Regular users only discover finance-role users.
	results, err := svc.Search(ctx, SearchUsersInput{CallerID: "user-1", CallerRole: identity.RoleUser})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "fin-1", results[0].ID)

	// Staff see everyone but themselves.
	results, err = svc.Search(ctx, SearchUsersInput{CallerID: "fin-1", CallerRole: identity.RoleFinance})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, user := range results {
		require.NotEqual(t, "fin-1", user.ID)
	}
}

func TestUserServiceSearchTermMatching(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	seedUser(t, db, "fin-1", "Frank Miller", "finance")
	seedUser(t, db, "fin-2", "Grace Hopper", "finance_officer")
	seedUser(t, db, "adm-1", "Root", "admin")

	svc, err := NewUserService(db)
	require.NoError(t, err)

	ctx := context.Background()

	results, err := svc.Search(ctx, SearchUsersInput{CallerID: "adm-1", CallerRole: identity.RoleAdmin, Term: "gRaCe"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "fin-2", results[0].ID)

	// Email substrings match too.
	results, err = svc.Search(ctx, SearchUsersInput{CallerID: "adm-1", CallerRole: identity.RoleAdmin, Term: "fin-1@"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "fin-1", results[0].ID)
}

func TestUserServiceSearchExcludesInactive(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	seedUser(t, db, "adm-1", "Root", "admin")

	dormant := seedUser(t, db, "fin-1", "Frank", "finance")
	require.NoError(t, db.Model(&dormant).Update("is_active", false).Error)

	svc, err := NewUserService(db)
	require.NoError(t, err)

	results, err := svc.Search(context.Background(), SearchUsersInput{CallerID: "adm-1", CallerRole: identity.RoleAdmin})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestUserServiceGetByID(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	seedUser(t, db, "user-1", "Alice", "user")

	svc, err := NewUserService(db)
	require.NoError(t, err)

	ctx := context.Background()
	user, err := svc.GetByID(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, "Alice", user.Name)

	_, err = svc.GetByID(ctx, "ghost")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
