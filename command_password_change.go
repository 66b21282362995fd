package auth

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ChangePasswordMessage updates the password of an already authenticated
// account. The caller proves knowledge of the current password before the
// new one is accepted.
type ChangePasswordMessage struct {
	UserID          uuid.UUID `json:"-"`
	CurrentPassword string    `json:"current_password"`
	NewPassword     string    `json:"new_password"`
	minLength       int
	OnResponse      func(resp *ChangePasswordResponse)
}

func (m ChangePasswordMessage) Type() string { return "auth.password_change" }

func (m ChangePasswordMessage) Validate() error {
	minLength := m.minLength
	if minLength == 0 {
		minLength = DefaultMinPasswordLength
	}
	return validation.ValidateStruct(&m,
		validation.Field(&m.CurrentPassword, validation.Required),
		validation.Field(&m.NewPassword,
			validation.Required,
			validation.Length(minLength+1, 0).Error(
				fmt.Sprintf("the length must be greater than %d", minLength),
			),
		),
	)
}

type ChangePasswordResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ChangePasswordHandler struct {
	repo     RepositoryManager
	notifier *Notifier
	hasher   PasswordAuthenticator
	cfg      Config
	logger   Logger
}

func NewChangePasswordHandler(repo RepositoryManager, notifier *Notifier, cfg Config) *ChangePasswordHandler {
	return &ChangePasswordHandler{
		repo:     repo,
		notifier: notifier,
		hasher:   NewBcryptHasher(cfg.BcryptCost),
		cfg:      cfg,
		logger:   defLogger{},
	}
}

func (h *ChangePasswordHandler) WithLogger(logger Logger) *ChangePasswordHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ChangePasswordHandler) WithHasher(hasher PasswordAuthenticator) *ChangePasswordHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	event.minLength = h.cfg.MinPasswordLength
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, ErrInvalidParams.Category, ErrInvalidParams.Message).
			WithTextCode(ErrInvalidParams.TextCode)
	}

	if event.UserID == uuid.Nil {
		return ErrUnauthorized
	}

	user := &User{}
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error

		// fetch a fresh record, the hash on the request context may be stale
		user, err = h.repo.Users().GetByIDTx(ctx, tx, event.UserID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUnauthorized
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password change")
		}

		if err := h.comparePassword(user.PasswordHash, event.CurrentPassword); err != nil {
			return err
		}

		hash, err := h.hasher.HashPassword(event.NewPassword)
		if err != nil {
			return goerrors.Wrap(err, ErrCryptoFailure.Category, ErrCryptoFailure.Message).
				WithTextCode(ErrCryptoFailure.TextCode)
		}

		if err := h.repo.Users().SetPasswordTx(ctx, tx, user.ID, hash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist new password")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to change password")
	}

	if err := h.notifier.PasswordChanged(ctx, user); err != nil {
		h.logger.Error("password change email failed", "email", user.Email, "error", err)
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(&ChangePasswordResponse{
			Success: true,
			Message: "Password updated",
		})
	}

	return nil
}

func (h *ChangePasswordHandler) comparePassword(hash, password string) error {
	err := h.hasher.ComparePasswordAndHash(password, hash)
	if err == nil {
		return nil
	}
	if goerrors.Is(err, ErrMismatchedHashAndPassword) {
		return ErrUnauthorized
	}
	h.logger.Error("password comparison failed", "error", err)
	return goerrors.Wrap(err, ErrCryptoFailure.Category, ErrCryptoFailure.Message).
		WithTextCode(ErrCryptoFailure.TextCode)
}
