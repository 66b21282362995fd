package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// FinalizePasswordResetMessage consumes the reset token: a strong random
// replacement password is generated, hashed and persisted, the token is
// cleared, and the plaintext is mailed to the account's email address.
type FinalizePasswordResetMessage struct {
	Token      string `json:"token"`
	OnResponse func(resp *FinalizePasswordResetResponse)
}

func (m FinalizePasswordResetMessage) Type() string { return "auth.password_reset_confirm" }

type FinalizePasswordResetResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	notifier *Notifier
	hasher   PasswordAuthenticator
	logger   Logger
}

func NewFinalizePasswordResetHandler(repo RepositoryManager, notifier *Notifier, cfg Config) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:     repo,
		notifier: notifier,
		hasher:   NewBcryptHasher(cfg.BcryptCost),
		logger:   defLogger{},
	}
}

func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *FinalizePasswordResetHandler) WithHasher(hasher PasswordAuthenticator) *FinalizePasswordResetHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Token == "" {
		return ErrInvalidParams
	}

	user := &User{}
	plaintext, err := RandomPassword()
	if err != nil {
		return err
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error

		user, err = h.repo.Users().GetByPerishableTokenTx(ctx, tx, event.Token)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUnauthorized
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for reset confirmation")
		}

		hash, err := h.hasher.HashPassword(plaintext)
		if err != nil {
			return goerrors.Wrap(err, ErrCryptoFailure.Category, ErrCryptoFailure.Message).
				WithTextCode(ErrCryptoFailure.TextCode)
		}

		// SetPassword also clears the perishable token, consuming it
		if err := h.repo.Users().SetPasswordTx(ctx, tx, user.ID, hash); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist replacement password")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize password reset")
	}

	if err := h.notifier.PasswordResetConfirm(ctx, user, plaintext); err != nil {
		h.logger.Error("reset confirmation email failed", "email", user.Email, "error", err)
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(&FinalizePasswordResetResponse{
			Success: true,
			Message: "Password has been reset",
		})
	}

	return nil
}
