package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// LogoutMessage deletes the persisted token record matching the bearer
// token presented on the request. The encoded token itself stays valid
// until it expires; this module keeps no revocation list.
type LogoutMessage struct {
	Token string `json:"token"`
}

func (m LogoutMessage) Type() string { return "auth.logout" }

type LogoutHandler struct {
	repo   RepositoryManager
	logger Logger
}

func NewLogoutHandler(repo RepositoryManager) *LogoutHandler {
	return &LogoutHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

func (h *LogoutHandler) WithLogger(logger Logger) *LogoutHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *LogoutHandler) Execute(ctx context.Context, event LogoutMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during logout",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *LogoutHandler) execute(ctx context.Context, event LogoutMessage) error {
	if event.Token == "" {
		return ErrInvalidParams
	}

	if err := h.repo.Tokens().DeleteByToken(ctx, event.Token); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete token record")
	}

	return nil
}
