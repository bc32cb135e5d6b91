package domain

import "time"

// AdminGrant is the one-to-one companion record for an account in the admin tier.
// A non-activated grant carries the one-time access token; once activated the
// token fields are cleared and never reused.
type AdminGrant struct {
	ID        string
	AccountID string
	Role      Role

	AccessToken    *string
	TokenExpiresAt *time.Time

	Activated   bool
	ActivatedAt *time.Time
	ActivatedBy *string

	PasswordSet bool

	Suspended   bool
	SuspendedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TokenLive reports whether the grant still holds a non-expired access token.
func (g *AdminGrant) TokenLive(now time.Time) bool {
	return g.AccessToken != nil && g.TokenExpiresAt != nil && now.Before(*g.TokenExpiresAt)
}

// AdminHistoryEntry is one immutable record of a grant role change.
type AdminHistoryEntry struct {
	ID        string
	GrantID   string
	Seq       int
	Role      Role
	Reason    string
	ChangedBy string
	ChangedAt time.Time
}
