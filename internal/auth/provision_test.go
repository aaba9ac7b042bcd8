package auth

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/bigtable/bttest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/chatssi/server/internal/store"
)

func newTestStore(t *testing.T) *store.BigtableStore {
	t.Helper()

	srv, err := bttest.NewServer("localhost:0")
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	s, err := store.NewBigtableStore(ctx, "test-project", "test-instance", "users",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	s.EnsureSchema(ctx)
	return s
}

func TestGetOrCreateUserRequiresSubjectAndEmail(t *testing.T) {
	t.Parallel()
	db := newTestStore(t)
	ctx := context.Background()

	_, err := GetOrCreateUser(ctx, db, &GoogleProfile{Email: "a@x.com"})
	var validation *store.ValidationError
	require.True(t, errors.As(err, &validation))
	require.Equal(t, "sub", validation.Field)

	_, err = GetOrCreateUser(ctx, db, &GoogleProfile{SubjectID: "g1"})
	require.True(t, errors.As(err, &validation))
	require.Equal(t, "email", validation.Field)
}

func TestGetOrCreateUserCreatesOnMiss(t *testing.T) {
	t.Parallel()
	db := newTestStore(t)
	ctx := context.Background()

	user, err := GetOrCreateUser(ctx, db, &GoogleProfile{
		SubjectID: "g1",
		Email:     "a@x.com",
		Name:      "A",
		Picture:   "https://example.com/a.png",
	})
	require.NoError(t, err)
	require.Equal(t, "A", user.Name)
	require.Equal(t, "g1", user.GoogleID)

	stored, err := db.GetUserByGoogleID(ctx, "g1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, user.ID, stored.ID)
}

func TestGetOrCreateUserDefaultsNameToEmailLocalPart(t *testing.T) {
	t.Parallel()
	db := newTestStore(t)
	ctx := context.Background()

	user, err := GetOrCreateUser(ctx, db, &GoogleProfile{SubjectID: "g2", Email: "grace@x.com"})
	require.NoError(t, err)
	require.Equal(t, "grace", user.Name)
}

func TestGetOrCreateUserRefreshesChangedProfile(t *testing.T) {
	t.Parallel()
	db := newTestStore(t)
	ctx := context.Background()

	created, err := GetOrCreateUser(ctx, db, &GoogleProfile{SubjectID: "g3", Email: "a@x.com", Name: "Old Name"})
	require.NoError(t, err)

	refreshed, err := GetOrCreateUser(ctx, db, &GoogleProfile{SubjectID: "g3", Email: "a@x.com", Name: "New Name"})
	require.NoError(t, err)
	require.Equal(t, created.ID, refreshed.ID, "same identity must map to the same row")
	require.Equal(t, "New Name", refreshed.Name)

	again, err := GetOrCreateUser(ctx, db, &GoogleProfile{SubjectID: "g3", Email: "a@x.com", Name: "New Name"})
	require.NoError(t, err)
	require.Equal(t, created.ID, again.ID)
}
