package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/listing-admin/internal/domain"
)

// AccountRepository defines persistence access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	Update(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	HardDelete(ctx context.Context, id string) error
}

type accountRepository struct {
	db DBTX
}

// NewAccountRepository returns a Postgres-backed implementation.
func NewAccountRepository(db DBTX) AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `id, handle, email, password_hash, role, previous_role, verified,
        suspended, suspension_reason, suspended_at, suspended_by,
        role_changed_at, role_changed_by, deleted, deleted_at, created_at, updated_at`

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	const query = `
        INSERT INTO accounts (handle, email, password_hash, role, verified)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

	return r.db.QueryRow(ctx, query,
		account.Handle,
		account.Email,
		account.PasswordHash,
		account.Role,
		account.Verified,
	).Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
}

func (r *accountRepository) Update(ctx context.Context, account *domain.Account) error {
	const query = `
        UPDATE accounts
        SET handle=$1, email=$2, password_hash=$3, role=$4, previous_role=$5, verified=$6,
            suspended=$7, suspension_reason=$8, suspended_at=$9, suspended_by=$10,
            role_changed_at=$11, role_changed_by=$12, deleted=$13, deleted_at=$14, updated_at=NOW()
        WHERE id=$15`

	cmd, err := r.db.Exec(ctx, query,
		account.Handle,
		account.Email,
		account.PasswordHash,
		account.Role,
		account.PreviousRole,
		account.Verified,
		account.Suspended,
		account.SuspensionReason,
		account.SuspendedAt,
		account.SuspendedBy,
		account.RoleChangedAt,
		account.RoleChangedBy,
		account.Deleted,
		account.DeletedAt,
		account.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM accounts WHERE email=$1`
	return r.scanOne(r.db.QueryRow(ctx, query, email))
}

func (r *accountRepository) HardDelete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *accountRepository) scanOne(row pgx.Row) (*domain.Account, error) {
	var account domain.Account
	if err := row.Scan(
		&account.ID,
		&account.Handle,
		&account.Email,
		&account.PasswordHash,
		&account.Role,
		&account.PreviousRole,
		&account.Verified,
		&account.Suspended,
		&account.SuspensionReason,
		&account.SuspendedAt,
		&account.SuspendedBy,
		&account.RoleChangedAt,
		&account.RoleChangedBy,
		&account.Deleted,
		&account.DeletedAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &account, nil
}
