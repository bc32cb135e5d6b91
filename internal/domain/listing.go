package domain

import "time"

// Listing is the minimal projection of a property listing needed by the
// lifecycle core: visibility toggling for suspended agents and media cleanup
// after permanent account deletion.
type Listing struct {
	ID             string
	OwnerAccountID string
	Title          string
	Hidden         bool
	AssetKey       *string
	CreatedAt      time.Time
}
