package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// ActivateMessage consumes a perishable token to confirm an email
// address. The transition is one shot: the token is nulled on success, so
// replaying the same value can never match again.
type ActivateMessage struct {
	Token      string `json:"token"`
	OnResponse func(resp *ActivateResponse)
}

func (m ActivateMessage) Type() string { return "auth.activate" }

type ActivateResponse struct {
	User *User `json:"user"`
}

type ActivateHandler struct {
	repo     RepositoryManager
	notifier *Notifier
	logger   Logger
}

func NewActivateHandler(repo RepositoryManager, notifier *Notifier) *ActivateHandler {
	return &ActivateHandler{
		repo:     repo,
		notifier: notifier,
		logger:   defLogger{},
	}
}

func (h *ActivateHandler) WithLogger(logger Logger) *ActivateHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *ActivateHandler) Execute(ctx context.Context, event ActivateMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account activation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateHandler) execute(ctx context.Context, event ActivateMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Token == "" {
		return ErrInvalidParams
	}

	user := &User{}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error

		user, err = h.repo.Users().GetByPerishableTokenTx(ctx, tx, event.Token)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return goerrors.Wrap(err, ErrUnauthorized.Category, "invalid activation token").
					WithCode(ErrUnauthorized.Code).
					WithTextCode(ErrUnauthorized.TextCode)
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for activation")
		}

		if err := h.repo.Users().ConfirmEmailTx(ctx, tx, user.ID); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to confirm user email")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account activation failed")
	}

	user.EmailConfirmed = true
	user.PerishableToken = nil
	now := time.Now()
	user.UpdatedAt = &now

	// the mutation is already committed; a delivery failure still fails
	// the flow
	if err := h.notifier.AccountActive(ctx, user); err != nil {
		h.logger.Error("activation email failed", "email", user.Email, "error", err)
		return err
	}

	if event.OnResponse != nil {
		event.OnResponse(&ActivateResponse{User: user.Sanitized()})
	}

	return nil
}
