package auth

import "time"

// Default policy values matching the module's reference behavior.
const (
	DefaultTokenLifetime     = 24 * time.Hour
	DefaultBcryptCost        = 13
	DefaultMinPasswordLength = 6
	DefaultAuthScheme        = "Bearer"
	DefaultExchangeHeader    = "Token-Exchange"
)

// SiteConfig is used to build links and name email templates.
type SiteConfig struct {
	Name string
	URL  string
}

// Config holds every knob the module reads. It is built once at process
// start and treated as read only afterwards; components receive it by
// value.
type Config struct {
	// SigningSecret is the shared HMAC secret for bearer tokens.
	SigningSecret string
	// TokenLifetime is the validity window for issued tokens.
	TokenLifetime time.Duration
	// Multitenancy scopes principals and tokens to an owning organization.
	Multitenancy bool
	// ConfirmEmail controls whether registration sends an activation email.
	ConfirmEmail bool
	// BcryptCost is the work factor for password hashing.
	BcryptCost int
	// MinPasswordLength is the exclusive lower bound for new passwords.
	MinPasswordLength int
	// AuthScheme is the expected Authorization header scheme.
	AuthScheme string
	// ExchangeHeader names the response header carrying re-issued tokens.
	ExchangeHeader string
	// EmailFrom is the sender address for outbound notifications.
	EmailFrom string
	// Site feeds link generation and template rendering.
	Site SiteConfig
}

// ConfigOption mutates a Config during construction.
type ConfigOption func(*Config)

// NewConfig builds a Config with reference defaults applied, then runs
// the given options. The result should not be mutated afterwards.
func NewConfig(secret string, opts ...ConfigOption) Config {
	cfg := Config{
		SigningSecret:     secret,
		TokenLifetime:     DefaultTokenLifetime,
		Multitenancy:      false,
		ConfirmEmail:      true,
		BcryptCost:        DefaultBcryptCost,
		MinPasswordLength: DefaultMinPasswordLength,
		AuthScheme:        DefaultAuthScheme,
		ExchangeHeader:    DefaultExchangeHeader,
		EmailFrom:         "no-reply@localhost",
		Site: SiteConfig{
			Name: "NAME THIS SITE!",
			URL:  "http://localhost:8000",
		},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return cfg
}

// WithMultitenancy toggles organization scoping.
func WithMultitenancy(on bool) ConfigOption {
	return func(c *Config) { c.Multitenancy = on }
}

// WithTokenLifetime overrides the token validity window.
func WithTokenLifetime(d time.Duration) ConfigOption {
	return func(c *Config) {
		if d > 0 {
			c.TokenLifetime = d
		}
	}
}

// WithConfirmEmail toggles the activation email on registration.
func WithConfirmEmail(on bool) ConfigOption {
	return func(c *Config) { c.ConfirmEmail = on }
}

// WithBcryptCost overrides the hashing work factor.
func WithBcryptCost(cost int) ConfigOption {
	return func(c *Config) {
		if cost > 0 {
			c.BcryptCost = cost
		}
	}
}

// WithSite sets the site name and base URL used in emails.
func WithSite(name, url string) ConfigOption {
	return func(c *Config) {
		if name != "" {
			c.Site.Name = name
		}
		if url != "" {
			c.Site.URL = url
		}
	}
}

// WithEmailFrom sets the sender address for notifications.
func WithEmailFrom(from string) ConfigOption {
	return func(c *Config) {
		if from != "" {
			c.EmailFrom = from
		}
	}
}
