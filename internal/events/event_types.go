package events

import (
	"time"

	"github.com/spec-kit/listing-admin/internal/domain"
)

// EventType enumerates supported event identifiers. Events are published only
// after the enclosing atomic unit has committed; handlers carry the
// best-effort side effects (mail, cache invalidation, media cleanup).
type EventType string

const (
	EventAdminTokenIssued   EventType = "admin_token_issued"
	EventAdminTokenReissued EventType = "admin_token_reissued"
	EventRoleChanged        EventType = "role_changed"
	EventAdminRemoved       EventType = "admin_removed"
	EventAccountSuspended   EventType = "account_suspended"
	EventSuspensionExtended EventType = "suspension_extended"
	EventSuspensionLifted   EventType = "suspension_lifted"
	EventAppealFiled        EventType = "appeal_filed"
	EventAppealResolved     EventType = "appeal_resolved"
	EventAccountDeleted     EventType = "account_deleted"
)

// Event represents a lifecycle event emitted by services after commit.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	AccountID string      `json:"account_id"`
	ActorID   string      `json:"actor_id"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TokenIssuedPayload carries the onboarding credential for the setup email.
type TokenIssuedPayload struct {
	RecipientEmail string      `json:"recipient_email"`
	Role           domain.Role `json:"role"`
	Token          string      `json:"token"`
	ExpiresAt      time.Time   `json:"expires_at"`
	Reissued       bool        `json:"reissued"`
}

// RoleChangedPayload captures an admin-to-admin role change.
type RoleChangedPayload struct {
	RecipientEmail string      `json:"recipient_email"`
	OldRole        domain.Role `json:"old_role"`
	NewRole        domain.Role `json:"new_role"`
	Reason         string      `json:"reason,omitempty"`
}

// AdminRemovedPayload captures a demotion out of the admin tier.
type AdminRemovedPayload struct {
	RecipientEmail string      `json:"recipient_email"`
	RestoredRole   domain.Role `json:"restored_role"`
	Reason         string      `json:"reason,omitempty"`
}

// SuspendedPayload captures a suspension or extension.
type SuspendedPayload struct {
	RecipientEmail string                    `json:"recipient_email"`
	SuspensionID   string                    `json:"suspension_id"`
	Reason         string                    `json:"reason"`
	Duration       domain.SuspensionDuration `json:"duration"`
	SuspendedUntil *time.Time                `json:"suspended_until,omitempty"`
}

// LiftedPayload captures a manual or automatic lift.
type LiftedPayload struct {
	RecipientEmail string `json:"recipient_email"`
	SuspensionID   string `json:"suspension_id"`
	Reason         string `json:"reason,omitempty"`
	Auto           bool   `json:"auto"`
}

// AppealFiledPayload notifies the original suspending actor.
type AppealFiledPayload struct {
	SuspensionID    string `json:"suspension_id"`
	AppealEntryID   string `json:"appeal_entry_id"`
	SuspenderID     string `json:"suspender_id"`
	SuspenderEmail  string `json:"suspender_email,omitempty"`
	SubjectAccount  string `json:"subject_account"`
	Reason          string `json:"reason"`
}

// AppealResolvedPayload captures the decision outcome.
type AppealResolvedPayload struct {
	RecipientEmail string `json:"recipient_email"`
	SuspensionID   string `json:"suspension_id"`
	Decision       string `json:"decision"`
	Notes          string `json:"notes,omitempty"`
}

// AccountDeletedPayload captures grant deletion outcomes. AssetKeys is
// non-empty only for permanent removals and drives media cleanup.
type AccountDeletedPayload struct {
	RecipientEmail string   `json:"recipient_email"`
	Reverted       bool     `json:"reverted"`
	Reason         string   `json:"reason,omitempty"`
	AssetKeys      []string `json:"asset_keys,omitempty"`
}
