package domain

import "time"

// Role enumerates account tiers on the platform.
type Role string

const (
	RoleUser       Role = "user"
	RoleAgent      Role = "agent"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superAdmin"
	RoleCreator    Role = "creator"
)

// SystemActorID is the reserved identity attributed to time-driven transitions.
const SystemActorID = "system"

// adminTierRoles is the set of roles that require an AdminGrant companion record.
var adminTierRoles = map[Role]struct{}{
	RoleAdmin:      {},
	RoleSuperAdmin: {},
	RoleCreator:    {},
}

// IsAdminTier reports whether the role belongs to the administrative tier.
func (r Role) IsAdminTier() bool {
	_, ok := adminTierRoles[r]
	return ok
}

// IsValid reports whether the role is a known tier.
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin, RoleSuperAdmin, RoleCreator:
		return true
	}
	return false
}

// Account is the primary identity record for any user of the platform.
type Account struct {
	ID           string
	Handle       string
	Email        string
	PasswordHash string
	Role         Role
	PreviousRole *Role
	Verified     bool

	Suspended        bool
	SuspensionReason *string
	SuspendedAt      *time.Time
	SuspendedBy      *string

	RoleChangedAt *time.Time
	RoleChangedBy *string

	Deleted   bool
	DeletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
