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

// RegisterUserPayload is the principal half of a registration request.
type RegisterUserPayload struct {
	FirstName            string `json:"first_name"`
	LastName             string `json:"last_name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (p RegisterUserPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FirstName, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.LastName, validation.Required, validation.Length(1, 200)),
		validation.Field(&p.Email, validation.Required, is.Email),
		validation.Field(&p.Password, validation.Required),
		validation.Field(
			&p.PasswordConfirmation,
			validation.Required,
			validation.By(ValidateStringEquals(p.Password)),
		),
	)
}

// RegisterOrganizationPayload is the tenant half, required only when
// multitenancy is enabled.
type RegisterOrganizationPayload struct {
	Name string `json:"name"`
}

func (p RegisterOrganizationPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 200)),
	)
}

type RegisterMessage struct {
	User         RegisterUserPayload          `json:"user"`
	Organization *RegisterOrganizationPayload `json:"organization,omitempty"`
	OnResponse   func(resp *RegisterResponse)
}

func (m RegisterMessage) Type() string { return "auth.register" }

type RegisterResponse struct {
	User         *User         `json:"user"`
	Organization *Organization `json:"organization,omitempty"`
}

type RegisterHandler struct {
	repo     RepositoryManager
	notifier *Notifier
	hasher   PasswordAuthenticator
	cfg      Config
	logger   Logger
}

func NewRegisterHandler(repo RepositoryManager, notifier *Notifier, cfg Config) *RegisterHandler {
	return &RegisterHandler{
		repo:     repo,
		notifier: notifier,
		hasher:   NewBcryptHasher(cfg.BcryptCost),
		cfg:      cfg,
		logger:   defLogger{},
	}
}

func (h *RegisterHandler) WithLogger(logger Logger) *RegisterHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *RegisterHandler) WithHasher(hasher PasswordAuthenticator) *RegisterHandler {
	if hasher != nil {
		h.hasher = hasher
	}
	return h
}

func (h *RegisterHandler) Execute(ctx context.Context, event RegisterMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterHandler) execute(ctx context.Context, event RegisterMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := h.validate(event); err != nil {
		return err
	}

	user := &User{}
	var organization *Organization
	perishable := NewPerishableToken()

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if h.cfg.Multitenancy {
			if _, err := h.repo.Organizations().GetByNameTx(ctx, tx, event.Organization.Name); err == nil {
				return ErrOrganizationNotUnique
			} else if !repository.IsRecordNotFound(err) {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check organization uniqueness")
			}
		}

		if _, err := h.repo.Users().GetByEmailTx(ctx, tx, event.User.Email); err == nil {
			return ErrEmailNotUnique
		} else if !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email uniqueness")
		}

		hash, err := h.hasher.HashPassword(event.User.Password)
		if err != nil {
			return goerrors.Wrap(err, ErrCryptoFailure.Category, ErrCryptoFailure.Message).
				WithTextCode(ErrCryptoFailure.TextCode)
		}

		if h.cfg.Multitenancy {
			organization, err = h.repo.Organizations().CreateTx(ctx, tx, &Organization{
				Name: event.Organization.Name,
			})
			if err != nil {
				// the store-level unique index is the real gate
				return goerrors.Wrap(err, ErrOrganizationNotUnique.Category, ErrOrganizationNotUnique.Message).
					WithTextCode(ErrOrganizationNotUnique.TextCode)
			}
		}

		user.FirstName = event.User.FirstName
		user.LastName = event.User.LastName
		user.Email = event.User.Email
		user.PasswordHash = hash
		user.Role = RoleSuperuser
		user.EmailConfirmed = false
		user.PerishableToken = &perishable
		if organization != nil {
			user.OrganizationID = &organization.ID
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
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
		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	// notification runs after the commit; a delivery failure fails the
	// flow while the account stays registered
	if h.cfg.ConfirmEmail {
		if err := h.notifier.ConfirmationRequest(ctx, user, perishable); err != nil {
			h.logger.Error("registration confirmation email failed", "email", user.Email, "error", err)
			return err
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(&RegisterResponse{
			User:         user.Sanitized(),
			Organization: organization,
		})
	}

	return nil
}

func (h *RegisterHandler) validate(event RegisterMessage) error {
	if err := event.User.Validate(); err != nil {
		return goerrors.Wrap(err, ErrInvalidParams.Category, ErrInvalidParams.Message).
			WithCode(ErrInvalidParams.Code).
			WithTextCode(ErrInvalidParams.TextCode)
	}

	if h.cfg.Multitenancy {
		if event.Organization == nil {
			return ErrInvalidParams
		}
		if err := event.Organization.Validate(); err != nil {
			return goerrors.Wrap(err, ErrInvalidParams.Category, ErrInvalidParams.Message).
				WithCode(ErrInvalidParams.Code).
				WithTextCode(ErrInvalidParams.TextCode)
		}
	}

	return nil
}

// ValidateStringEquals will check that both values match
func ValidateStringEquals(str string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != str {
			return goerrors.New("values must match", goerrors.CategoryValidation)
		}
		return nil
	}
}
