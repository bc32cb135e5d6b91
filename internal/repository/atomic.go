package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repos bundles every repository over one query surface. A pool-backed set
// serves plain reads; a tx-backed set is handed to WithinTx closures.
type Repos struct {
	Accounts      AccountRepository
	Grants        AdminGrantRepository
	Suspensions   SuspensionRepository
	Notifications NotificationRepository
	Listings      ListingRepository
}

// NewRepos builds a repository set over the given query surface.
func NewRepos(db DBTX) *Repos {
	return &Repos{
		Accounts:      NewAccountRepository(db),
		Grants:        NewAdminGrantRepository(db),
		Suspensions:   NewSuspensionRepository(db),
		Notifications: NewNotificationRepository(db),
		Listings:      NewListingRepository(db),
	}
}

// Atomic runs a closure against a repository set inside one atomic unit:
// every mutation inside fn commits together or not at all.
type Atomic interface {
	WithinTx(ctx context.Context, fn func(r *Repos) error) error
}

type pgAtomic struct {
	pool *pgxpool.Pool
}

// NewAtomic returns a pgx transaction-backed Atomic.
func NewAtomic(pool *pgxpool.Pool) Atomic {
	return &pgAtomic{pool: pool}
}

func (a *pgAtomic) WithinTx(ctx context.Context, fn func(r *Repos) error) (err error) {
	tx, err := a.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(NewRepos(tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
