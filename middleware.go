package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// Locals keys used by the request authorization middleware.
const (
	LocalsAuthKey   = "auth"
	LocalsClaimsKey = "auth_claims"
	LocalsTokenKey  = "auth_token"
)

// Authorizer is the request authorization middleware. It decodes the bearer
// token, loads the account it names, and reissues a fresh token on the
// exchange header so clients can keep a rolling session.
type Authorizer struct {
	codec  *TokenCodec
	repo   RepositoryManager
	cfg    Config
	logger Logger
}

func NewAuthorizer(codec *TokenCodec, repo RepositoryManager, cfg Config) *Authorizer {
	return &Authorizer{
		codec:  codec,
		repo:   repo,
		cfg:    cfg,
		logger: defLogger{},
	}
}

func (a *Authorizer) WithLogger(logger Logger) *Authorizer {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// Handler returns the fiber middleware. Every failure collapses into the
// same forbidden response so callers cannot probe which stage rejected
// them.
func (a *Authorizer) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		credential, err := a.extractCredential(c)
		if err != nil {
			return a.reject(c, err)
		}

		claims, err := a.codec.Decode(credential)
		if err != nil {
			return a.reject(c, err)
		}

		authCtx, err := a.resolveIdentity(c, claims)
		if err != nil {
			return a.reject(c, err)
		}

		exchange, err := a.codec.Reissue(claims)
		if err != nil {
			return a.reject(c, err)
		}
		c.Set(a.cfg.ExchangeHeader, exchange)

		c.Locals(LocalsAuthKey, authCtx)
		c.Locals(LocalsClaimsKey, claims)
		c.Locals(LocalsTokenKey, credential)

		ctx := WithAuthContext(c.UserContext(), authCtx)
		ctx = WithClaimsContext(ctx, claims)
		c.SetUserContext(ctx)

		a.touchAudit(ctx, credential)

		return c.Next()
	}
}

func (a *Authorizer) extractCredential(c *fiber.Ctx) (string, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return "", goerrors.Wrap(ErrUnauthorized, ErrUnauthorized.Category, "missing authorization header").
			WithTextCode(ErrUnauthorized.TextCode)
	}

	// exactly two parts: scheme and credential
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return "", goerrors.Wrap(ErrUnauthorized, ErrUnauthorized.Category, "malformed authorization header").
			WithTextCode(ErrUnauthorized.TextCode)
	}

	if !strings.EqualFold(parts[0], a.cfg.AuthScheme) {
		return "", goerrors.Wrap(ErrUnauthorized, ErrUnauthorized.Category, "unexpected authorization scheme").
			WithTextCode(ErrUnauthorized.TextCode)
	}

	return parts[1], nil
}

func (a *Authorizer) resolveIdentity(c *fiber.Ctx, claims *TokenClaims) (*AuthContext, error) {
	userID, err := claims.UserUUID()
	if err != nil {
		return nil, ErrTokenMalformed
	}

	user, err := a.repo.Users().GetByID(c.UserContext(), userID.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUnauthorized
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve token subject")
	}

	authCtx := &AuthContext{User: user.Sanitized()}

	if a.cfg.Multitenancy {
		// the tenant comes from the principal record; the token claim is
		// informational and may lag behind a membership change
		if user.OrganizationID == nil {
			return nil, ErrUnauthorized
		}

		org, err := a.repo.Organizations().GetByID(c.UserContext(), user.OrganizationID.String())
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return nil, ErrUnauthorized
			}
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to resolve token organization")
		}
		authCtx.Organization = org
	}

	return authCtx, nil
}

// touchAudit bumps usage bookkeeping on the login token record, when one
// exists. Tokens minted through the exchange header carry no record, so a
// miss is not an error.
func (a *Authorizer) touchAudit(ctx context.Context, credential string) {
	record, err := a.repo.Tokens().GetByToken(ctx, credential)
	if err != nil {
		return
	}

	if err := a.repo.Tokens().Touch(ctx, record.ID); err != nil {
		a.logger.Debug("token usage bump failed", "error", err)
	}
}

func (a *Authorizer) reject(c *fiber.Ctx, err error) error {
	a.logger.Debug("request authorization rejected", "path", c.Path(), "error", err)
	return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
		"error": TextCodeUnauthorized,
	})
}

// AuthFromFiber extracts the AuthContext the Authorizer stored on the
// request, if any.
func AuthFromFiber(c *fiber.Ctx) (*AuthContext, bool) {
	raw, ok := c.Locals(LocalsAuthKey).(*AuthContext)
	return raw, ok && raw != nil
}

// ClaimsFromFiber extracts the decoded token claims stored by the
// Authorizer.
func ClaimsFromFiber(c *fiber.Ctx) (*TokenClaims, bool) {
	raw, ok := c.Locals(LocalsClaimsKey).(*TokenClaims)
	return raw, ok && raw != nil
}

// TokenFromFiber returns the raw credential the Authorizer accepted.
func TokenFromFiber(c *fiber.Ctx) (string, bool) {
	raw, ok := c.Locals(LocalsTokenKey).(string)
	return raw, ok && raw != ""
}
