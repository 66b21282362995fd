package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CreateUserMessage provisions a regular account inside the caller's
// organization. The new user starts unconfirmed and cannot log in as an
// administrator.
type CreateUserMessage struct {
	FirstName      string     `json:"first_name"`
	LastName       string     `json:"last_name"`
	Email          string     `json:"email"`
	Password       string     `json:"password"`
	OrganizationID *uuid.UUID `json:"-"`
	OnResponse     func(user *User)
}

func (m CreateUserMessage) Type() string { return "auth.create_user" }

func (m CreateUserMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.FirstName, validation.Required),
		validation.Field(&m.LastName, validation.Required),
		validation.Field(&m.Email, validation.Required, is.Email),
		validation.Field(&m.Password, validation.Required),
	)
}

type CreateUserHandler struct {
	repo   RepositoryManager
	hasher PasswordAuthenticator
	cfg    Config
	logger Logger
}

func NewCreateUserHandler(repo RepositoryManager, cfg Config) *CreateUserHandler {
	return &CreateUserHandler{
		repo:   repo,
		hasher: NewBcryptHasher(cfg.BcryptCost),
		cfg:    cfg,
		logger: defLogger{},
	}
}

func (h *CreateUserHandler) WithLogger(logger Logger) *CreateUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *CreateUserHandler) WithHasher(hasher PasswordAuthenticator) *CreateUserHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *CreateUserHandler) Execute(ctx context.Context, event CreateUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user creation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *CreateUserHandler) execute(ctx context.Context, event CreateUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, ErrInvalidParams.Category, ErrInvalidParams.Message).
			WithTextCode(ErrInvalidParams.TextCode)
	}

	user := &User{}
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := h.repo.Users().GetByEmailTx(ctx, tx, event.Email); err == nil {
			return ErrEmailNotUnique
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email uniqueness")
		}

		hash, err := h.hasher.HashPassword(event.Password)
		if err != nil {
			return goerrors.Wrap(err, ErrCryptoFailure.Category, ErrCryptoFailure.Message).
				WithTextCode(ErrCryptoFailure.TextCode)
		}

		record := &User{
			FirstName:    event.FirstName,
			LastName:     event.LastName,
			Email:        event.Email,
			Role:         RoleUser,
			PasswordHash: hash,
		}
		if h.cfg.Multitenancy {
			record.OrganizationID = event.OrganizationID
		}

		user, err = h.repo.Users().CreateTx(ctx, tx, record)
		if err != nil {
			// the store-level unique index is the real gate
			return goerrors.Wrap(err, ErrEmailNotUnique.Category, ErrEmailNotUnique.Message).
				WithTextCode(ErrEmailNotUnique.TextCode)
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user")
	}

	if event.OnResponse != nil {
		event.OnResponse(user.Sanitized())
	}

	return nil
}
