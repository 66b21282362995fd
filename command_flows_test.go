package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-repository-bun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerMessage(email string) RegisterMessage {
	return RegisterMessage{
		User: RegisterUserPayload{
			FirstName:            "Pepe",
			LastName:             "Rone",
			Email:                email,
			Password:             "pizza-time-123",
			PasswordConfirmation: "pizza-time-123",
		},
	}
}

func TestRegisterCreatesUnconfirmedSuperuser(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	repo := setupTestDB(t, cfg)
	notifier, mailer := setupNotifier(t, cfg)

	handler := NewRegisterHandler(repo, notifier, cfg)

	var res *RegisterResponse
	msg := registerMessage("pepe@example.com")
	msg.OnResponse = func(resp *RegisterResponse) { res = resp }

	require.NoError(t, handler.Execute(ctx, msg))
	require.NotNil(t, res)

	assert.Equal(t, RoleSuperuser, res.User.Role)
	assert.False(t, res.User.EmailConfirmed)
	assert.Empty(t, res.User.PasswordHash, "response must be sanitized")
	assert.Nil(t, res.User.PerishableToken, "response must be sanitized")

	stored, err := repo.Users().GetByEmail(ctx, "pepe@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored.PerishableToken)
	assert.NoError(t, NewBcryptHasher(cfg.BcryptCost).
		ComparePasswordAndHash("pizza-time-123", stored.PasswordHash))

	require.Equal(t, 1, mailer.count())
	sent := mailer.last(t)
	assert.Equal(t, "pepe@example.com", sent.To)
	assert.Equal(t, SubjectConfirm, sent.Subject)
	assert.Contains(t, sent.HTML, *stored.PerishableToken)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(WithConfirmEmail(false))
	repo := setupTestDB(t, cfg)
	notifier, _ := setupNotifier(t, cfg)

	handler := NewRegisterHandler(repo, notifier, cfg)

	require.NoError(t, handler.Execute(ctx, registerMessage("dupe@example.com")))

	err := handler.Execute(ctx, registerMessage("dupe@example.com"))
	require.Error(t, err)
	assert.True(t, IsConflictError(err))
}

func TestRegisterInvalidPayload(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	repo := setupTestDB(t, cfg)
	notifier, mailer := setupNotifier(t, cfg)

	handler := NewRegisterHandler(repo, notifier, cfg)

	msg := registerMessage("pepe@example.com")
	msg.User.PasswordConfirmation = "something-else"

	err := handler.Execute(ctx, msg)
	require.Error(t, err)
	assert.False(t, IsConflictError(err))
	assert.Equal(t, 0, mailer.count())
}

func TestRegisterMultitenant(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(WithMultitenancy(true), WithConfirmEmail(false))
	repo := setupTestDB(t, cfg)
	notifier, _ := setupNotifier(t, cfg)

	handler := NewRegisterHandler(repo, notifier, cfg)

	var res *RegisterResponse
	msg := registerMessage("owner@acme.com")
	msg.Organization = &RegisterOrganizationPayload{Name: "ACME"}
	msg.OnResponse = func(resp *RegisterResponse) { res = resp }

	require.NoError(t, handler.Execute(ctx, msg))
	require.NotNil(t, res.Organization)
	require.NotNil(t, res.User.OrganizationID)
	assert.Equal(t, res.Organization.ID, *res.User.OrganizationID)

	t.Run("missing organization payload", func(t *testing.T) {
		bad := registerMessage("second@acme.com")
		err := handler.Execute(ctx, bad)
		require.Error(t, err)
	})

	t.Run("duplicate organization name", func(t *testing.T) {
		again := registerMessage("other@acme.com")
		again.Organization = &RegisterOrganizationPayload{Name: "ACME"}

		err := handler.Execute(ctx, again)
		require.Error(t, err)
		assert.True(t, IsConflictError(err))
	})
}

func TestRegisterSkipsEmailWhenConfirmationDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(WithConfirmEmail(false))
	repo := setupTestDB(t, cfg)
	notifier, mailer := setupNotifier(t, cfg)

	handler := NewRegisterHandler(repo, notifier, cfg)
	require.NoError(t, handler.Execute(ctx, registerMessage("quiet@example.com")))
	assert.Equal(t, 0, mailer.count())
}

func TestActivateIsOneShot(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	repo := setupTestDB(t, cfg)
	notifier, mailer := setupNotifier(t, cfg)

	require.NoError(t, NewRegisterHandler(repo, notifier, cfg).
		Execute(ctx, registerMessage("fresh@example.com")))

	stored, err := repo.Users().GetByEmail(ctx, "fresh@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored.PerishableToken)
	token := *stored.PerishableToken

	handler := NewActivateHandler(repo, notifier)

	var res *ActivateResponse
	require.NoError(t, handler.Execute(ctx, ActivateMessage{
		Token:      token,
		OnResponse: func(resp *ActivateResponse) { res = resp },
	}))

	require.NotNil(t, res)
	assert.True(t, res.User.EmailConfirmed)
	assert.Nil(t, res.User.PerishableToken)

	confirmed, err := repo.Users().GetByEmail(ctx, "fresh@example.com")
	require.NoError(t, err)
	assert.True(t, confirmed.EmailConfirmed)
	assert.Nil(t, confirmed.PerishableToken)

	// confirmation + account active emails
	assert.Equal(t, 2, mailer.count())
	assert.Equal(t, SubjectActive, mailer.last(t).Subject)

	t.Run("replaying the consumed token fails", func(t *testing.T) {
		err := handler.Execute(ctx, ActivateMessage{Token: token})
		require.Error(t, err)
		assert.True(t, IsUnauthorizedError(err))
	})

	t.Run("unknown token fails", func(t *testing.T) {
		err := handler.Execute(ctx, ActivateMessage{Token: NewPerishableToken()})
		require.Error(t, err)
		assert.True(t, IsUnauthorizedError(err))
	})

	t.Run("empty token is invalid input", func(t *testing.T) {
		err := handler.Execute(ctx, ActivateMessage{})
		require.Error(t, err)
		assert.False(t, IsUnauthorizedError(err))
	})
}

func TestActivateNotifyOrFail(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(WithConfirmEmail(false))
	repo := setupTestDB(t, cfg)
	notifier, mailer := setupNotifier(t, cfg)

	require.NoError(t, NewRegisterHandler(repo, notifier, cfg).
		Execute(ctx, registerMessage("unlucky@example.com")))

	stored, err := repo.Users().GetByEmail(ctx, "unlucky@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored.PerishableToken)

	mailer.fail = errors.New("smtp is down")

	err = NewActivateHandler(repo, notifier).
		Execute(ctx, ActivateMessage{Token: *stored.PerishableToken})
	require.Error(t, err)

	// the mutation is already committed when delivery fails
	confirmed, err := repo.Users().GetByEmail(ctx, "unlucky@example.com")
	require.NoError(t, err)
	assert.True(t, confirmed.EmailConfirmed)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	repo := setupTestDB(t, cfg)
	codec := NewTokenCodec(cfg)

	seedUser(t, repo, cfg, &User{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Role:      RoleSuperuser,
	}, "engines-4ever")

	handler := NewLoginHandler(repo, codec, cfg)

	var res *LoginResponse
	require.NoError(t, handler.Execute(ctx, LoginMessage{
		Email:      "ada@example.com",
		Password:   "engines-4ever",
		OnResponse: func(resp *LoginResponse) { res = resp },
	}))

	require.NotNil(t, res)
	assert.NotEmpty(t, res.Token)
	assert.Empty(t, res.User.PasswordHash)

	claims, err := codec.Decode(res.Token)
	require.NoError(t, err)
	gotID, err := claims.UserUUID()
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, gotID)

	record, err := repo.Tokens().GetByToken(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, record.UserID)

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		wrongPass := handler.Execute(ctx, LoginMessage{
			Email:    "ada@example.com",
			Password: "not-the-password",
		})
		require.Error(t, wrongPass)
		assert.True(t, IsUnauthorizedError(wrongPass))

		unknown := handler.Execute(ctx, LoginMessage{
			Email:    "nobody@example.com",
			Password: "whatever-1234",
		})
		require.Error(t, unknown)
		assert.True(t, IsUnauthorizedError(unknown))

		assert.Equal(t, wrongPass.Error(), unknown.Error())
	})

	t.Run("malformed payload", func(t *testing.T) {
		err := handler.Execute(ctx, LoginMessage{Email: "not-an-email", Password: "x"})
		require.Error(t, err)
		assert.False(t, IsUnauthorizedError(err))
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	repo := setupTestDB(t, cfg)
	codec := NewTokenCodec(cfg)

	seedUser(t, repo, cfg, &User{
		FirstName: "Tom",
		LastName:  "Out",
		Email:     "tom@example.com",
		Role:      RoleUser,
	}, "password-123")

	var res *LoginResponse
	require.NoError(t, NewLoginHandler(repo, codec, cfg).Execute(ctx, LoginMessage{
		Email:      "tom@example.com",
		Password:   "password-123",
		OnResponse: func(resp *LoginResponse) { res = resp },
	}))

	handler := NewLogoutHandler(repo)
	require.NoError(t, handler.Execute(ctx, LogoutMessage{Token: res.Token}))

	_, err := repo.Tokens().GetByToken(ctx, res.Token)
	require.Error(t, err)
	assert.True(t, repository.IsRecordNotFound(err))

	t.Run("empty token is invalid input", func(t *testing.T) {
		err := handler.Execute(ctx, LogoutMessage{})
		require.Error(t, err)
	})
}

func TestAdminLogin(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	repo := setupTestDB(t, cfg)
	codec := NewTokenCodec(cfg)

	seedUser(t, repo, cfg, &User{
		FirstName: "Root",
		LastName:  "Admin",
		Email:     "admin@example.com",
		Role:      RoleAdmin,
	}, "admin-pass-123")

	seedUser(t, repo, cfg, &User{
		FirstName: "Plain",
		LastName:  "User",
		Email:     "plain@example.com",
		Role:      RoleUser,
	}, "plain-pass-123")

	handler := NewAdminLoginHandler(repo, codec, cfg)

	var res *LoginResponse
	require.NoError(t, handler.Execute(ctx, AdminLoginMessage{
		Email:      "admin@example.com",
		Password:   "admin-pass-123",
		OnResponse: func(resp *LoginResponse) { res = resp },
	}))
	require.NotNil(t, res)
	assert.NotEmpty(t, res.Token)

	t.Run("non admin role is rejected", func(t *testing.T) {
		err := handler.Execute(ctx, AdminLoginMessage{
			Email:    "plain@example.com",
			Password: "plain-pass-123",
		})
		require.Error(t, err)
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		err := handler.Execute(ctx, AdminLoginMessage{
			Email:    "admin@example.com",
			Password: "guessing",
		})
		require.Error(t, err)
		assert.True(t, IsUnauthorizedError(err))
	})
}

func TestAdminLoginMultitenant(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(WithMultitenancy(true))
	repo := setupTestDB(t, cfg)
	codec := NewTokenCodec(cfg)

	org, err := repo.Organizations().Create(ctx, &Organization{Name: "Initech"})
	require.NoError(t, err)

	seedUser(t, repo, cfg, &User{
		FirstName:      "Bill",
		LastName:       "Lumbergh",
		Email:          "bill@initech.com",
		Role:           RoleAdmin,
		OrganizationID: &org.ID,
	}, "tps-reports-1")

	handler := NewAdminLoginHandler(repo, codec, cfg)

	t.Run("organization id is required", func(t *testing.T) {
		err := handler.Execute(ctx, AdminLoginMessage{
			Email:    "bill@initech.com",
			Password: "tps-reports-1",
		})
		require.Error(t, err)
	})

	t.Run("token carries the requested organization", func(t *testing.T) {
		var res *LoginResponse
		require.NoError(t, handler.Execute(ctx, AdminLoginMessage{
			Email:          "bill@initech.com",
			Password:       "tps-reports-1",
			OrganizationID: org.ID.String(),
			OnResponse:     func(resp *LoginResponse) { res = resp },
		}))

		claims, err := codec.Decode(res.Token)
		require.NoError(t, err)

		gotOrg, err := claims.OrganizationUUID()
		require.NoError(t, err)
		require.NotNil(t, gotOrg)
		assert.Equal(t, org.ID, *gotOrg)
	})
}
