package auth

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AdminLoginMessage mints an admin scoped token. The route sits behind the
// authorization middleware and the admin role guard; under multitenancy
// the target organization is chosen explicitly rather than inherited from
// the user record.
type AdminLoginMessage struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	OrganizationID string `json:"organization_id,omitempty"`
	multitenant    bool
	OnResponse     func(resp *LoginResponse)
}

func (m AdminLoginMessage) Type() string { return "auth.admin_login" }

func (m AdminLoginMessage) Validate() error {
	fields := []*validation.FieldRules{
		validation.Field(&m.Email, validation.Required, is.Email),
		validation.Field(&m.Password, validation.Required),
	}

	if m.multitenant {
		fields = append(fields, validation.Field(&m.OrganizationID, validation.Required, is.UUIDv4))
	}

	return validation.ValidateStruct(&m, fields...)
}

type AdminLoginHandler struct {
	repo   RepositoryManager
	codec  *TokenCodec
	hasher PasswordAuthenticator
	cfg    Config
	logger Logger
}

func NewAdminLoginHandler(repo RepositoryManager, codec *TokenCodec, cfg Config) *AdminLoginHandler {
	return &AdminLoginHandler{
		repo:   repo,
		codec:  codec,
		hasher: NewBcryptHasher(cfg.BcryptCost),
		cfg:    cfg,
		logger: defLogger{},
	}
}

func (h *AdminLoginHandler) WithLogger(logger Logger) *AdminLoginHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *AdminLoginHandler) WithHasher(hasher PasswordAuthenticator) *AdminLoginHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *AdminLoginHandler) Execute(ctx context.Context, event AdminLoginMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during admin login",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *AdminLoginHandler) execute(ctx context.Context, event AdminLoginMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	event.multitenant = h.cfg.Multitenancy
	if err := event.Validate(); err != nil {
		return goerrors.Wrap(err, ErrInvalidParams.Category, ErrInvalidParams.Message).
			WithCode(ErrInvalidParams.Code).
			WithTextCode(ErrInvalidParams.TextCode)
	}

	user, err := h.repo.Users().GetByEmail(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return ErrUnauthorized
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user during admin login")
	}

	if user.Role != RoleAdmin {
		return ErrInsufficientPermissions
	}

	var organization *Organization
	var organizationID *uuid.UUID

	if h.cfg.Multitenancy {
		oid, err := uuid.Parse(event.OrganizationID)
		if err != nil {
			return goerrors.Wrap(err, ErrInvalidParams.Category, ErrInvalidParams.Message).
				WithCode(ErrInvalidParams.Code).
				WithTextCode(ErrInvalidParams.TextCode)
		}

		organization, err = h.repo.Organizations().GetByID(ctx, oid.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUnauthorized
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve organization during admin login")
		}

		organizationID = &oid
	}

	if err := h.hasher.ComparePasswordAndHash(event.Password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			return ErrUnauthorized
		}
		h.logger.Error("password comparison failed", "error", err)
		return goerrors.Wrap(err, ErrCryptoFailure.Category, ErrCryptoFailure.Message).
			WithTextCode(ErrCryptoFailure.TextCode)
	}

	token, err := h.codec.Encode(user.ID, organizationID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode admin token")
	}

	record := &Token{
		Token:          token,
		UserID:         user.ID,
		OrganizationID: organizationID,
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := h.repo.Tokens().CreateTx(ctx, tx, record)
		return err
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist admin token record")
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
