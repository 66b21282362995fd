package auth

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Migrate creates the tables and secondary indexes the module relies on.
// Email, perishable token, and organization name uniqueness live here, in
// the store layer, so concurrent check-then-act registrations cannot both
// succeed.
func Migrate(ctx context.Context, db *bun.DB, cfg Config) error {
	models := []any{
		(*User)(nil),
		(*Token)(nil),
	}

	if cfg.Multitenancy {
		models = append(models, (*Organization)(nil))
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to create table")
		}
	}

	type index struct {
		name    string
		model   any
		column  string
		unique  bool
		skipped bool
	}

	indexes := []index{
		{name: "users_email_idx", model: (*User)(nil), column: "email", unique: true},
		{name: "users_perishable_token_idx", model: (*User)(nil), column: "perishable_token", unique: true},
		{name: "users_created_at_idx", model: (*User)(nil), column: "created_at"},
		{name: "tokens_token_idx", model: (*Token)(nil), column: "token"},
		{name: "tokens_user_id_idx", model: (*Token)(nil), column: "user_id"},
		{name: "users_organization_id_idx", model: (*User)(nil), column: "organization_id", skipped: !cfg.Multitenancy},
		{name: "organizations_name_idx", model: (*Organization)(nil), column: "name", unique: true, skipped: !cfg.Multitenancy},
		{name: "organizations_created_at_idx", model: (*Organization)(nil), column: "created_at", skipped: !cfg.Multitenancy},
	}

	for _, idx := range indexes {
		if idx.skipped {
			continue
		}

		q := db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.column).
			IfNotExists()

		if idx.unique {
			q = q.Unique()
		}

		if _, err := q.Exec(ctx); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to create index").
				WithMetadata(map[string]any{"index": idx.name})
		}
	}

	return nil
}
