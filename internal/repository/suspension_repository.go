package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/listing-admin/internal/domain"
)

// SuspensionRepository handles suspension records and their audit trail. The
// trail is insert-only; MarkAppealProcessed is the single sanctioned data
// amendment on an existing appeal entry.
type SuspensionRepository interface {
	Create(ctx context.Context, suspension *domain.Suspension) error
	Update(ctx context.Context, suspension *domain.Suspension) error
	GetByID(ctx context.Context, id string) (*domain.Suspension, error)
	GetActiveByAccount(ctx context.Context, accountID string) (*domain.Suspension, error)
	ListExpiredActive(ctx context.Context, now time.Time) ([]domain.Suspension, error)
	AppendHistory(ctx context.Context, entry *domain.SuspensionHistoryEntry) error
	ListHistory(ctx context.Context, suspensionID string) ([]domain.SuspensionHistoryEntry, error)
	GetHistoryEntry(ctx context.Context, entryID string) (*domain.SuspensionHistoryEntry, error)
	CountAppealsByAccountSince(ctx context.Context, accountID string, since time.Time) (int, error)
	MarkAppealProcessed(ctx context.Context, entryID string, data map[string]any) error
}

type suspensionRepository struct {
	db DBTX
}

// NewSuspensionRepository builds the repository.
func NewSuspensionRepository(db DBTX) SuspensionRepository {
	return &suspensionRepository{db: db}
}

const suspensionColumns = `id, account_id, active, suspended_until, created_at, updated_at`

func (r *suspensionRepository) Create(ctx context.Context, suspension *domain.Suspension) error {
	const query = `
        INSERT INTO suspensions (account_id, active, suspended_until)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`

	return r.db.QueryRow(ctx, query,
		suspension.AccountID,
		suspension.Active,
		suspension.SuspendedUntil,
	).Scan(&suspension.ID, &suspension.CreatedAt, &suspension.UpdatedAt)
}

func (r *suspensionRepository) Update(ctx context.Context, suspension *domain.Suspension) error {
	const query = `
        UPDATE suspensions SET active=$1, suspended_until=$2, updated_at=NOW()
        WHERE id=$3`

	cmd, err := r.db.Exec(ctx, query,
		suspension.Active,
		suspension.SuspendedUntil,
		suspension.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *suspensionRepository) GetByID(ctx context.Context, id string) (*domain.Suspension, error) {
	const query = `SELECT ` + suspensionColumns + ` FROM suspensions WHERE id=$1`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

func (r *suspensionRepository) GetActiveByAccount(ctx context.Context, accountID string) (*domain.Suspension, error) {
	const query = `SELECT ` + suspensionColumns + ` FROM suspensions WHERE account_id=$1 AND active`
	return r.scanOne(r.db.QueryRow(ctx, query, accountID))
}

func (r *suspensionRepository) ListExpiredActive(ctx context.Context, now time.Time) ([]domain.Suspension, error) {
	const query = `
        SELECT ` + suspensionColumns + `
        FROM suspensions
        WHERE active AND suspended_until IS NOT NULL AND suspended_until <= $1
        ORDER BY suspended_until ASC`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Suspension
	for rows.Next() {
		var suspension domain.Suspension
		if err := rows.Scan(
			&suspension.ID,
			&suspension.AccountID,
			&suspension.Active,
			&suspension.SuspendedUntil,
			&suspension.CreatedAt,
			&suspension.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, suspension)
	}
	return result, rows.Err()
}

func (r *suspensionRepository) AppendHistory(ctx context.Context, entry *domain.SuspensionHistoryEntry) error {
	const query = `
        INSERT INTO suspension_history (suspension_id, seq, action, description, actor_id, reason, duration, data)
        VALUES ($1, (SELECT COALESCE(MAX(seq),0)+1 FROM suspension_history WHERE suspension_id=$1), $2, $3, $4, $5, $6, $7)
        RETURNING id, seq, created_at`

	return r.db.QueryRow(ctx, query,
		entry.SuspensionID,
		entry.Action,
		entry.Description,
		entry.ActorID,
		entry.Reason,
		entry.Duration,
		entry.Data,
	).Scan(&entry.ID, &entry.Seq, &entry.CreatedAt)
}

func (r *suspensionRepository) ListHistory(ctx context.Context, suspensionID string) ([]domain.SuspensionHistoryEntry, error) {
	const query = `
        SELECT id, suspension_id, seq, action, description, actor_id, reason, duration, data, created_at
        FROM suspension_history WHERE suspension_id=$1 ORDER BY seq ASC`

	rows, err := r.db.Query(ctx, query, suspensionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SuspensionHistoryEntry
	for rows.Next() {
		var entry domain.SuspensionHistoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.SuspensionID,
			&entry.Seq,
			&entry.Action,
			&entry.Description,
			&entry.ActorID,
			&entry.Reason,
			&entry.Duration,
			&entry.Data,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *suspensionRepository) GetHistoryEntry(ctx context.Context, entryID string) (*domain.SuspensionHistoryEntry, error) {
	const query = `
        SELECT id, suspension_id, seq, action, description, actor_id, reason, duration, data, created_at
        FROM suspension_history WHERE id=$1`

	var entry domain.SuspensionHistoryEntry
	if err := r.db.QueryRow(ctx, query, entryID).Scan(
		&entry.ID,
		&entry.SuspensionID,
		&entry.Seq,
		&entry.Action,
		&entry.Description,
		&entry.ActorID,
		&entry.Reason,
		&entry.Duration,
		&entry.Data,
		&entry.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *suspensionRepository) CountAppealsByAccountSince(ctx context.Context, accountID string, since time.Time) (int, error) {
	const query = `
        SELECT COUNT(*)
        FROM suspension_history h
        JOIN suspensions s ON s.id = h.suspension_id
        WHERE s.account_id=$1 AND h.action='appeal' AND h.created_at >= $2`

	var count int
	if err := r.db.QueryRow(ctx, query, accountID, since).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// MarkAppealProcessed merges decision markers into an appeal entry's data
// payload. Restricted to appeal entries; no other column is touchable.
func (r *suspensionRepository) MarkAppealProcessed(ctx context.Context, entryID string, data map[string]any) error {
	const query = `
        UPDATE suspension_history SET data = COALESCE(data,'{}'::jsonb) || $2
        WHERE id=$1 AND action='appeal'`

	cmd, err := r.db.Exec(ctx, query, entryID, data)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *suspensionRepository) scanOne(row pgx.Row) (*domain.Suspension, error) {
	var suspension domain.Suspension
	if err := row.Scan(
		&suspension.ID,
		&suspension.AccountID,
		&suspension.Active,
		&suspension.SuspendedUntil,
		&suspension.CreatedAt,
		&suspension.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &suspension, nil
}
