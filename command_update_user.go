package auth

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// UpdateUserMessage patches a user's profile fields. Credentials,
// timestamps, and organization membership are never writable through
// this path.
type UpdateUserMessage struct {
	ID         uuid.UUID `json:"-"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email"`
	OnResponse func(user *User)
}

func (m UpdateUserMessage) Type() string { return "auth.update_user" }

func (m UpdateUserMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, is.Email),
	)
}

type UpdateUserHandler struct {
	repo   RepositoryManager
	logger Logger
}

func NewUpdateUserHandler(repo RepositoryManager) *UpdateUserHandler {
	return &UpdateUserHandler{
		repo:   repo,
		logger: defLogger{},
	}
}

func (h *UpdateUserHandler) WithLogger(logger Logger) *UpdateUserHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UpdateUserHandler) Execute(ctx context.Context, event UpdateUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateUserHandler) execute(ctx context.Context, event UpdateUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, ErrInvalidParams.Category, ErrInvalidParams.Message).
			WithTextCode(ErrInvalidParams.TextCode)
	}

	if event.ID == uuid.Nil {
		return ErrInvalidParams
	}

	record := &User{
		ID:        event.ID,
		FirstName: event.FirstName,
		LastName:  event.LastName,
		Email:     event.Email,
	}

	user, err := h.repo.Users().Update(ctx, record,
		repository.UpdateByID(event.ID.String()),
		repository.UpdateSkipZeroValues(),
	)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryNotFound, "user not found").
				WithMetadata(map[string]any{"id": event.ID.String()})
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update user")
	}

	if event.OnResponse != nil {
		event.OnResponse(user.Sanitized())
	}

	return nil
}
