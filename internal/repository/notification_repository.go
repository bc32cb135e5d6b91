package repository

import (
	"context"

	"github.com/spec-kit/listing-admin/internal/domain"
)

// NotificationRepository manages in-app inbox records.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]domain.Notification, error)
	DeleteByAccount(ctx context.Context, accountID string) error
}

type notificationRepository struct {
	db DBTX
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db DBTX) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *domain.Notification) error {
	const query = `
        INSERT INTO notifications (account_id, title, content, type)
        VALUES ($1,$2,$3,$4)
        RETURNING id, created_at`

	return r.db.QueryRow(ctx, query,
		notification.AccountID,
		notification.Title,
		notification.Content,
		notification.Type,
	).Scan(&notification.ID, &notification.CreatedAt)
}

func (r *notificationRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, account_id, title, content, type, read, created_at
        FROM notifications WHERE account_id=$1
        ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var notification domain.Notification
		if err := rows.Scan(
			&notification.ID,
			&notification.AccountID,
			&notification.Title,
			&notification.Content,
			&notification.Type,
			&notification.Read,
			&notification.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, notification)
	}
	return result, rows.Err()
}

func (r *notificationRepository) DeleteByAccount(ctx context.Context, accountID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM notifications WHERE account_id=$1`, accountID)
	return err
}
