package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Tokens is the audit store for interactive login tokens. The
// authorization middleware never reads it; it backs logout and
// bookkeeping only.
type Tokens interface {
	Create(ctx context.Context, record *Token) (*Token, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Token) (*Token, error)
	GetByToken(ctx context.Context, token string) (*Token, error)
	DeleteByToken(ctx context.Context, token string) error
	DeleteByTokenTx(ctx context.Context, tx bun.IDB, token string) error
	Touch(ctx context.Context, id uuid.UUID) error
}

type tokens struct {
	db *bun.DB
}

var _ Tokens = (*tokens)(nil)

func NewTokensRepository(db *bun.DB) Tokens {
	return &tokens{db: db}
}

func (a *tokens) Create(ctx context.Context, record *Token) (*Token, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *tokens) CreateTx(ctx context.Context, tx bun.IDB, record *Token) (*Token, error) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	now := time.Now()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	if record.LastUsed == nil {
		record.LastUsed = &now
	}

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, err
	}

	return record, nil
}

func (a *tokens) GetByToken(ctx context.Context, token string) (*Token, error) {
	record := &Token{}

	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

func (a *tokens) DeleteByToken(ctx context.Context, token string) error {
	return a.DeleteByTokenTx(ctx, a.db, token)
}

func (a *tokens) DeleteByTokenTx(ctx context.Context, tx bun.IDB, token string) error {
	_, err := tx.NewDelete().
		Model((*Token)(nil)).
		Where("?TableAlias.token = ?", token).
		Exec(ctx)

	return err
}

// Touch bumps the usage counter and last_used stamp.
func (a *tokens) Touch(ctx context.Context, id uuid.UUID) error {
	_, err := a.db.NewRaw(`
		UPDATE "tokens" AS "tok"
		SET
			"usage_count" = "usage_count" + 1,
			"last_used" = ?
		WHERE
			("tok".id = ?);
	`, time.Now(), id.String()).Exec(ctx)

	return err
}
