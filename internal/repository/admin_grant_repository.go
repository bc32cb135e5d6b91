package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/listing-admin/internal/domain"
)

// AdminGrantRepository handles persistence for admin grants and their history.
// History rows are insert-only, ordered by seq per grant.
type AdminGrantRepository interface {
	Create(ctx context.Context, grant *domain.AdminGrant) error
	Update(ctx context.Context, grant *domain.AdminGrant) error
	GetByID(ctx context.Context, id string) (*domain.AdminGrant, error)
	GetByAccountID(ctx context.Context, accountID string) (*domain.AdminGrant, error)
	Delete(ctx context.Context, id string) error
	AppendHistory(ctx context.Context, entry *domain.AdminHistoryEntry) error
	ListHistory(ctx context.Context, grantID string) ([]domain.AdminHistoryEntry, error)
}

type adminGrantRepository struct {
	db DBTX
}

// NewAdminGrantRepository instantiates the repository.
func NewAdminGrantRepository(db DBTX) AdminGrantRepository {
	return &adminGrantRepository{db: db}
}

const grantColumns = `id, account_id, role, access_token, token_expires_at,
        activated, activated_at, activated_by, password_set,
        suspended, suspended_at, created_at, updated_at`

func (r *adminGrantRepository) Create(ctx context.Context, grant *domain.AdminGrant) error {
	const query = `
        INSERT INTO admin_grants (account_id, role, access_token, token_expires_at)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at, updated_at`

	return r.db.QueryRow(ctx, query,
		grant.AccountID,
		grant.Role,
		grant.AccessToken,
		grant.TokenExpiresAt,
	).Scan(&grant.ID, &grant.CreatedAt, &grant.UpdatedAt)
}

func (r *adminGrantRepository) Update(ctx context.Context, grant *domain.AdminGrant) error {
	const query = `
        UPDATE admin_grants
        SET role=$1, access_token=$2, token_expires_at=$3,
            activated=$4, activated_at=$5, activated_by=$6, password_set=$7,
            suspended=$8, suspended_at=$9, updated_at=NOW()
        WHERE id=$10`

	cmd, err := r.db.Exec(ctx, query,
		grant.Role,
		grant.AccessToken,
		grant.TokenExpiresAt,
		grant.Activated,
		grant.ActivatedAt,
		grant.ActivatedBy,
		grant.PasswordSet,
		grant.Suspended,
		grant.SuspendedAt,
		grant.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *adminGrantRepository) GetByID(ctx context.Context, id string) (*domain.AdminGrant, error) {
	const query = `SELECT ` + grantColumns + ` FROM admin_grants WHERE id=$1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *adminGrantRepository) GetByAccountID(ctx context.Context, accountID string) (*domain.AdminGrant, error) {
	const query = `SELECT ` + grantColumns + ` FROM admin_grants WHERE account_id=$1`
	return r.scanOne(r.db.QueryRow(ctx, query, accountID))
}

func (r *adminGrantRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM admin_grants WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *adminGrantRepository) AppendHistory(ctx context.Context, entry *domain.AdminHistoryEntry) error {
	const query = `
        INSERT INTO admin_grant_history (grant_id, seq, role, reason, changed_by)
        VALUES ($1, (SELECT COALESCE(MAX(seq),0)+1 FROM admin_grant_history WHERE grant_id=$1), $2, $3, $4)
        RETURNING id, seq, changed_at`

	return r.db.QueryRow(ctx, query,
		entry.GrantID,
		entry.Role,
		entry.Reason,
		entry.ChangedBy,
	).Scan(&entry.ID, &entry.Seq, &entry.ChangedAt)
}

func (r *adminGrantRepository) ListHistory(ctx context.Context, grantID string) ([]domain.AdminHistoryEntry, error) {
	const query = `
        SELECT id, grant_id, seq, role, reason, changed_by, changed_at
        FROM admin_grant_history WHERE grant_id=$1 ORDER BY seq ASC`

	rows, err := r.db.Query(ctx, query, grantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AdminHistoryEntry
	for rows.Next() {
		var entry domain.AdminHistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.GrantID,
			&entry.Seq,
			&entry.Role,
			&entry.Reason,
			&entry.ChangedBy,
			&entry.ChangedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *adminGrantRepository) scanOne(row pgx.Row) (*domain.AdminGrant, error) {
	var grant domain.AdminGrant
	if err := row.Scan(
		&grant.ID,
		&grant.AccountID,
		&grant.Role,
		&grant.AccessToken,
		&grant.TokenExpiresAt,
		&grant.Activated,
		&grant.ActivatedAt,
		&grant.ActivatedBy,
		&grant.PasswordSet,
		&grant.Suspended,
		&grant.SuspendedAt,
		&grant.CreatedAt,
		&grant.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &grant, nil
}
