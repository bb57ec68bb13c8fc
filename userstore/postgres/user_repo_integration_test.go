//go:build integration

package postgres_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/MrEthical07/cookieauth/userstore"
	pgstore "github.com/MrEthical07/cookieauth/userstore/postgres"
)

func TestUserRepository_Postgres(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2)),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	migrator, err := pgstore.NewMigrator(connStr)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())
	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
	require.NoError(t, migrator.Close())

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	repo := pgstore.NewUserRepository(pool)

	created, err := repo.Create(ctx, "Alice@Example.com", "digest")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", created.Email)

	_, err = repo.Create(ctx, "ALICE@example.com", "other")
	assert.ErrorIs(t, err, userstore.ErrEmailTaken)

	found, err := repo.FindByEmail(ctx, "alice@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.False(t, found.Verified)

	verified, err := repo.MarkVerified(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, verified.Verified)

	updated, err := repo.UpdatePasswordHash(ctx, created.ID, "digest-2")
	require.NoError(t, err)
	assert.Equal(t, "digest-2", updated.PasswordHash)

	_, err = repo.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, userstore.ErrNotFound)
}
