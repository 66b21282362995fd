package auth

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type LoginMessage struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	OnResponse func(resp *LoginResponse)
}

func (m LoginMessage) Type() string { return "auth.login" }

// Validate runs before any store access; failures map to invalid params.
func (m LoginMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, is.Email),
		validation.Field(&m.Password, validation.Required),
	)
}

type LoginResponse struct {
	User         *User         `json:"user"`
	Organization *Organization `json:"organization,omitempty"`
	Token        string        `json:"token"`
}

type LoginHandler struct {
	repo   RepositoryManager
	codec  *TokenCodec
	hasher PasswordAuthenticator
	cfg    Config
	logger Logger
}

func NewLoginHandler(repo RepositoryManager, codec *TokenCodec, cfg Config) *LoginHandler {
	return &LoginHandler{
		repo:   repo,
		codec:  codec,
		hasher: NewBcryptHasher(cfg.BcryptCost),
		cfg:    cfg,
		logger: defLogger{},
	}
}

func (h *LoginHandler) WithLogger(logger Logger) *LoginHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *LoginHandler) WithHasher(hasher PasswordAuthenticator) *LoginHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *LoginHandler) Execute(ctx context.Context, event LoginMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during login",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *LoginHandler) execute(ctx context.Context, event LoginMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, ErrInvalidParams.Category, ErrInvalidParams.Message).
			WithCode(ErrInvalidParams.Code).
			WithTextCode(ErrInvalidParams.TextCode)
	}

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			// same observable outcome as a password mismatch
			return ErrUnauthorized
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during login")
	}

	var organization *Organization
	if h.cfg.Multitenancy && user.OrganizationID != nil {
		organization, err = h.repo.Organizations().GetByID(ctx, user.OrganizationID.String())
		if err != nil && !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve organization during login")
		}
	}

	if err := h.verifyPassword(event.Password, user.PasswordHash); err != nil {
		return err
	}

	token, err := h.codec.Encode(user.ID, user.OrganizationID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode login token")
	}

	record := &Token{
		Token:  token,
		UserID: user.ID,
	}
	if h.cfg.Multitenancy {
		record.OrganizationID = user.OrganizationID
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := h.repo.Tokens().CreateTx(ctx, tx, record)
		return err
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist login token record")
	}

	if event.OnResponse != nil {
		event.OnResponse(&LoginResponse{
			User:         user.Sanitized(),
			Organization: organization,
			Token:        token,
		})
	}

	return nil
}

func (h *LoginHandler) verifyPassword(plaintext, hash string) error {
	if err := h.hasher.ComparePasswordAndHash(plaintext, hash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			return ErrUnauthorized
		}

		h.logger.Error("password comparison failed", "error", err)
		return goerrors.Wrap(err, ErrCryptoFailure.Category, ErrCryptoFailure.Message).
			WithTextCode(ErrCryptoFailure.TextCode)
	}
	return nil
}
