package repository

import (
	"context"
)

// ListingRepository exposes the narrow listing surface the lifecycle core
// needs: visibility toggling for a suspended agent and asset enumeration for
// media cleanup after permanent deletion.
type ListingRepository interface {
	SetHiddenByOwner(ctx context.Context, ownerAccountID string, hidden bool) error
	ListAssetKeysByOwner(ctx context.Context, ownerAccountID string) ([]string, error)
	DeleteByOwner(ctx context.Context, ownerAccountID string) error
}

type listingRepository struct {
	db DBTX
}

// NewListingRepository constructs the repository.
func NewListingRepository(db DBTX) ListingRepository {
	return &listingRepository{db: db}
}

func (r *listingRepository) SetHiddenByOwner(ctx context.Context, ownerAccountID string, hidden bool) error {
	_, err := r.db.Exec(ctx,
		`UPDATE listings SET hidden=$1 WHERE owner_account_id=$2`,
		hidden, ownerAccountID)
	return err
}

func (r *listingRepository) ListAssetKeysByOwner(ctx context.Context, ownerAccountID string) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT asset_key FROM listings WHERE owner_account_id=$1 AND asset_key IS NOT NULL`,
		ownerAccountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *listingRepository) DeleteByOwner(ctx context.Context, ownerAccountID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM listings WHERE owner_account_id=$1`, ownerAccountID)
	return err
}
