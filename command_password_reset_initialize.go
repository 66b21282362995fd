package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// InitializePasswordResetMessage starts the reset flow: a fresh perishable
// token is written to the principal and mailed as a confirmation link.
// Re-requesting overwrites the outstanding token, invalidating the prior
// link.
type InitializePasswordResetMessage struct {
	Email      string `json:"email"`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (m InitializePasswordResetMessage) Type() string { return "auth.password_reset" }

func (m InitializePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, is.Email),
	)
}

type InitializePasswordResetResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	notifier *Notifier
	logger   Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager, notifier *Notifier) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		notifier: notifier,
		logger:   defLogger{},
	}
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, ErrInvalidParams.Category, ErrInvalidParams.Message).
			WithCode(ErrInvalidParams.Code).
			WithTextCode(ErrInvalidParams.TextCode)
	}

	user := &User{}
	perishable := NewPerishableToken()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error

		user, err = h.repo.Users().GetByEmailTx(ctx, tx, event.Email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUnauthorized
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
		}

		if err := h.repo.Users().SetPerishableTokenTx(ctx, tx, user.ID, perishable); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist reset token")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to initialize password reset")
	}

	if err := h.notifier.PasswordResetRequest(ctx, user, perishable); err != nil {
		h.logger.Error("reset request email failed", "email", user.Email, "error", err)
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(&InitializePasswordResetResponse{
			Success: true,
			Message: "Reset request sent",
		})
	}

	return nil
}
