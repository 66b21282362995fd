package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleUser is a regular account created through admin user management
	RoleUser UserRole = "user"
	// RoleAdmin can mint admin scoped tokens and manage sessions
	RoleAdmin UserRole = "admin"
	// RoleSuperuser is the account owner created through registration
	RoleSuperuser UserRole = "superuser"
)

// User is the principal record. PasswordHash and PerishableToken never
// leave the store layer unsanitized.
type User struct {
	bun.BaseModel   `bun:"table:users,alias:usr"`
	ID              uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	FirstName       string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName        string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	Email           string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Role            UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	PasswordHash    string     `bun:"password_hash" json:"-"`
	OrganizationID  *uuid.UUID `bun:"organization_id,nullzero,type:uuid" json:"organization_id,omitempty"`
	EmailConfirmed  bool       `bun:"email_confirmed" json:"email_confirmed"`
	PerishableToken *string    `bun:"perishable_token,nullzero,unique" json:"-"`
	CreatedAt       *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt       *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Sanitized returns a copy safe to expose outside the store layer:
// credential material and the single use nonce are stripped.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	out := *u
	out.PasswordHash = ""
	out.PerishableToken = nil
	return &out
}

// Organization is the tenant record; users optionally reference one by id.
type Organization struct {
	bun.BaseModel `bun:"table:organizations,alias:org"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,notnull,unique" json:"name,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Token is the persisted audit record for interactive logins. The
// authorization path never consults it; it exists for logout and
// bookkeeping only.
type Token struct {
	bun.BaseModel  `bun:"table:tokens,alias:tok"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Token          string     `bun:"token,notnull" json:"token,omitempty"`
	UserID         uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	OrganizationID *uuid.UUID `bun:"organization_id,nullzero,type:uuid" json:"organization_id,omitempty"`
	UsageCount     int        `bun:"usage_count" json:"usage_count"`
	LastUsed       *time.Time `bun:"last_used,nullzero" json:"last_used,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// AuthContext is the request scoped authorization context produced by the
// middleware. The embedded user is always sanitized.
type AuthContext struct {
	User         *User         `json:"user"`
	Organization *Organization `json:"organization,omitempty"`
}

// NewPerishableToken mints the single use nonce used for activation and
// password reset confirmation.
func NewPerishableToken() string {
	return uuid.NewString()
}
