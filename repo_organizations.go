package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Organizations is the tenant store.
type Organizations interface {
	repository.Repository[*Organization]

	GetByName(ctx context.Context, name string) (*Organization, error)
	GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Organization, error)
}

type organizations struct {
	repository.Repository[*Organization]
	db *bun.DB
}

var (
	_ Organizations                        = (*organizations)(nil)
	_ repository.Repository[*Organization] = (*organizations)(nil)
)

func NewOrganizationsRepository(db *bun.DB) Organizations {
	repo := repository.NewRepository[*Organization](db, repository.ModelHandlers[*Organization]{
		NewRecord: func() *Organization { return &Organization{} },
		GetID: func(o *Organization) uuid.UUID {
			if o == nil {
				return uuid.Nil
			}
			return o.ID
		},
		SetID: func(o *Organization, id uuid.UUID) {
			if o != nil {
				o.ID = id
			}
		},
		GetIdentifier: func() string {
			return "name"
		},
	})

	return &organizations{
		Repository: repo,
		db:         db,
	}
}

func (a *organizations) Create(ctx context.Context, record *Organization, criteria ...repository.InsertCriteria) (*Organization, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *organizations) CreateTx(ctx context.Context, tx bun.IDB, record *Organization, criteria ...repository.InsertCriteria) (*Organization, error) {
	if record != nil && record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *organizations) GetByName(ctx context.Context, name string) (*Organization, error) {
	return a.GetByNameTx(ctx, a.db, name)
}

func (a *organizations) GetByNameTx(ctx context.Context, tx bun.IDB, name string) (*Organization, error) {
	record := &Organization{}

	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"name": name})
		}
		return nil, err
	}

	return record, nil
}
