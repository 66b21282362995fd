package auth

import (
	"context"
	"testing"

	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsersGetByEmail(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	repo := setupTestDB(t, cfg)

	seeded := seedUser(t, repo, cfg, &User{
		FirstName: "Eve",
		LastName:  "Example",
		Email:     "eve@example.com",
		Role:      RoleUser,
	}, "password-1234")

	found, err := repo.Users().GetByEmail(ctx, "eve@example.com")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, found.ID)

	_, err = repo.Users().GetByEmail(ctx, "nobody@example.com")
	require.Error(t, err)
	assert.True(t, repository.IsRecordNotFound(err))
}

func TestUsersPerishableTokenLookup(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	repo := setupTestDB(t, cfg)

	token := NewPerishableToken()
	seeded := seedUser(t, repo, cfg, &User{
		FirstName:       "Percy",
		LastName:        "Pending",
		Email:           "percy@example.com",
		Role:            RoleUser,
		PerishableToken: &token,
	}, "password-1234")

	found, err := repo.Users().GetByPerishableToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, found.ID)

	t.Run("empty token never matches", func(t *testing.T) {
		// other rows store NULL there; an empty string must not scan them
		_, err := repo.Users().GetByPerishableToken(ctx, "")
		require.Error(t, err)
		assert.True(t, repository.IsRecordNotFound(err))
	})

	t.Run("confirm email consumes the token", func(t *testing.T) {
		require.NoError(t, repo.Users().ConfirmEmail(ctx, seeded.ID))

		updated, err := repo.Users().GetByID(ctx, seeded.ID.String())
		require.NoError(t, err)
		assert.True(t, updated.EmailConfirmed)
		assert.Nil(t, updated.PerishableToken)

		_, err = repo.Users().GetByPerishableToken(ctx, token)
		assert.True(t, repository.IsRecordNotFound(err))
	})
}

func TestUsersSetPasswordClearsToken(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	repo := setupTestDB(t, cfg)

	token := NewPerishableToken()
	seeded := seedUser(t, repo, cfg, &User{
		FirstName:       "Sam",
		LastName:        "Secure",
		Email:           "sam@example.com",
		Role:            RoleUser,
		PerishableToken: &token,
	}, "password-1234")

	hash, err := NewBcryptHasher(cfg.BcryptCost).HashPassword("replacement-99")
	require.NoError(t, err)
	require.NoError(t, repo.Users().SetPassword(ctx, seeded.ID, hash))

	updated, err := repo.Users().GetByID(ctx, seeded.ID.String())
	require.NoError(t, err)
	assert.Equal(t, hash, updated.PasswordHash)
	assert.Nil(t, updated.PerishableToken)
}

func TestUsersCreateDefaults(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	repo := setupTestDB(t, cfg)

	created, err := repo.Users().Create(ctx, &User{
		FirstName:    "Default",
		LastName:     "Role",
		Email:        "default@example.com",
		PasswordHash: "irrelevant",
	})
	require.NoError(t, err)
	assert.Equal(t, RoleUser, created.Role)
	assert.NotEqual(t, "00000000-0000-0000-0000-000000000000", created.ID.String())
}

func TestTokensLifecycle(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	repo := setupTestDB(t, cfg)

	seeded := seedUser(t, repo, cfg, &User{
		FirstName: "Tok",
		LastName:  "Holder",
		Email:     "tok@example.com",
		Role:      RoleUser,
	}, "password-1234")

	record, err := repo.Tokens().Create(ctx, &Token{
		Token:  "opaque-credential",
		UserID: seeded.ID,
	})
	require.NoError(t, err)

	found, err := repo.Tokens().GetByToken(ctx, "opaque-credential")
	require.NoError(t, err)
	assert.Equal(t, record.ID, found.ID)
	assert.Equal(t, 0, found.UsageCount)

	require.NoError(t, repo.Tokens().Touch(ctx, found.ID))

	touched, err := repo.Tokens().GetByToken(ctx, "opaque-credential")
	require.NoError(t, err)
	assert.Equal(t, 1, touched.UsageCount)
	assert.NotNil(t, touched.LastUsed)

	require.NoError(t, repo.Tokens().DeleteByToken(ctx, "opaque-credential"))

	_, err = repo.Tokens().GetByToken(ctx, "opaque-credential")
	require.Error(t, err)
	assert.True(t, repository.IsRecordNotFound(err))
}
