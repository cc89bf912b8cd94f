// AngelaMos | 2026
// store.go

package ledger

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/careerpilot/ledger-service/internal/account"
	"github.com/careerpilot/ledger-service/internal/core"
)

// Store binds the balance store and the journal to one database handle so
// entitlement operations can mutate both inside a single transaction.
// InTx hands the callback a Store whose repositories share the open
// transaction; a partial state is never visible outside it.
type Store interface {
	Accounts() account.Repository
	Journal() Journal
	InTx(ctx context.Context, fn func(Store) error) error
}

type sqlStore struct {
	db   *sqlx.DB
	dbtx core.DBTX
}

func NewStore(db *sqlx.DB) Store {
	return &sqlStore{db: db, dbtx: db}
}

func (s *sqlStore) Accounts() account.Repository {
	return account.NewRepository(s.dbtx)
}

func (s *sqlStore) Journal() Journal {
	return NewJournal(s.dbtx)
}

func (s *sqlStore) InTx(ctx context.Context, fn func(Store) error) error {
	if s.db == nil {
		// Already transactional; nested calls join the open transaction.
		return fn(s)
	}

	return core.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&sqlStore{dbtx: tx})
	})
}
