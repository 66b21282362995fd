package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var confirmUserEmailSQL = `UPDATE "users" AS "usr"
SET
	"email_confirmed" = TRUE,
	"perishable_token" = NULL,
	"updated_at" = ?
WHERE
	"usr"."id" = ?;`

var setUserPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"perishable_token" = NULL,
	"updated_at" = ?
WHERE
	"usr"."id" = ?;`

// Users is the principal store. Secondary index lookups enforce the
// exactly-one contract: zero or ambiguous matches surface as record not
// found so flows can map them to their coarse failure kind.
type Users interface {
	repository.Repository[*User]

	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	GetByPerishableToken(ctx context.Context, token string) (*User, error)
	GetByPerishableTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error)

	ConfirmEmail(ctx context.Context, id uuid.UUID) error
	ConfirmEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	SetPerishableToken(ctx context.Context, id uuid.UUID, token string) error
	SetPerishableTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string) error
	SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return exactlyOneUser(ctx, tx, "email", email)
}

func (a *users) GetByPerishableToken(ctx context.Context, token string) (*User, error) {
	return a.GetByPerishableTokenTx(ctx, a.db, token)
}

func (a *users) GetByPerishableTokenTx(ctx context.Context, tx bun.IDB, token string) (*User, error) {
	if token == "" {
		// consumed tokens are stored as NULL, never match them
		return nil, repository.NewRecordNotFound()
	}
	return exactlyOneUser(ctx, tx, "perishable_token", token)
}

func (a *users) ConfirmEmail(ctx context.Context, id uuid.UUID) error {
	return a.ConfirmEmailTx(ctx, a.db, id)
}

func (a *users) ConfirmEmailTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewRaw(confirmUserEmailSQL, time.Now(), id.String()).Exec(ctx)
	return err
}

func (a *users) SetPerishableToken(ctx context.Context, id uuid.UUID, token string) error {
	return a.SetPerishableTokenTx(ctx, a.db, id, token)
}

func (a *users) SetPerishableTokenTx(ctx context.Context, tx bun.IDB, id uuid.UUID, token string) error {
	// NOTE: overwrites any outstanding token, invalidating prior reset links
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"perishable_token" = ?,
			"updated_at" = ?
		WHERE
			("usr".id = ?);
	`, token, time.Now(), id.String()).Exec(ctx)

	return err
}

func (a *users) SetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.SetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) SetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	_, err := tx.NewRaw(setUserPasswordSQL, passwordHash, time.Now(), id.String()).Exec(ctx)
	return err
}

// exactlyOneUser scans up to two matches so an ambiguous secondary index
// is indistinguishable from no match at all.
func exactlyOneUser(ctx context.Context, tx bun.IDB, column, value string) (*User, error) {
	var records []*User

	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias."+column+" = ?", value).
		Limit(2).
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	if len(records) != 1 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"column":  column,
				"matches": len(records),
			})
	}

	return records[0], nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
