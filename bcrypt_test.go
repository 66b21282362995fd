package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/arcably/go-auth"
)

func TestBcryptHasherRoundTrip(t *testing.T) {
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	hash, err := hasher.HashPassword("securePassword123!")
	require.NoError(t, err)
	require.NotEmpty(t, hash)
	assert.NotEqual(t, "securePassword123!", hash)

	assert.NoError(t, hasher.ComparePasswordAndHash("securePassword123!", hash))

	err = hasher.ComparePasswordAndHash("wrongPassword", hash)
	assert.ErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
}

func TestBcryptHasherRejectsEmptyPassword(t *testing.T) {
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	_, err := hasher.HashPassword("")
	assert.ErrorIs(t, err, auth.ErrNoEmptyString)
}

func TestBcryptHasherInvalidHash(t *testing.T) {
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)

	err := hasher.ComparePasswordAndHash("whatever", "not-a-bcrypt-hash")
	require.Error(t, err)
	assert.NotErrorIs(t, err, auth.ErrMismatchedHashAndPassword)
}

func TestBcryptHasherCostFallback(t *testing.T) {
	tests := []struct {
		name string
		cost int
	}{
		{name: "below minimum", cost: bcrypt.MinCost - 1},
		{name: "above maximum", cost: bcrypt.MaxCost + 1},
		{name: "zero", cost: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hasher := auth.NewBcryptHasher(tt.cost)
			hash, err := hasher.HashPassword("password")
			require.NoError(t, err)

			cost, err := bcrypt.Cost([]byte(hash))
			require.NoError(t, err)
			assert.Equal(t, auth.DefaultBcryptCost, cost)
		})
	}
}

func TestRandomPassword(t *testing.T) {
	seen := map[string]bool{}

	for i := 0; i < 5; i++ {
		out, err := auth.RandomPassword()
		require.NoError(t, err)
		assert.Len(t, out, 10)
		assert.False(t, seen[out], "generated passwords should not repeat")
		seen[out] = true
	}
}
