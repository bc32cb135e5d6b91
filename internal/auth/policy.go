package auth

import (
	"github.com/spec-kit/listing-admin/internal/domain"
)

// Capability names an action class an actor may perform. All authorization in
// the lifecycle services goes through the role policy table rather than ad-hoc
// role comparisons at call sites.
type Capability string

const (
	CapManageUsers       Capability = "users.manage"
	CapManageAdmins      Capability = "admins.manage"
	CapAssignAdminRole   Capability = "admins.assign_role"
	CapSuspendAdmins     Capability = "admins.suspend"
	CapDeleteAdminGrants Capability = "admins.delete_grant"
	CapTriggerSweep      Capability = "suspensions.sweep"
)

var rolePolicy = map[domain.Role]map[Capability]struct{}{
	domain.RoleAdmin: {
		CapManageUsers: {},
	},
	domain.RoleSuperAdmin: allCapabilities(),
	domain.RoleCreator:    allCapabilities(),
}

func allCapabilities() map[Capability]struct{} {
	return map[Capability]struct{}{
		CapManageUsers:       {},
		CapManageAdmins:      {},
		CapAssignAdminRole:   {},
		CapSuspendAdmins:     {},
		CapDeleteAdminGrants: {},
		CapTriggerSweep:      {},
	}
}

// Allows reports whether the role holds the capability.
func Allows(role domain.Role, cap Capability) bool {
	caps, ok := rolePolicy[role]
	if !ok {
		return false
	}
	_, ok = caps[cap]
	return ok
}

// IsSuperAdmin reports whether the role carries super-administrator authority.
// The creator role is the platform owner and holds the same authority.
func IsSuperAdmin(role domain.Role) bool {
	return role == domain.RoleSuperAdmin || role == domain.RoleCreator
}
