package domain

import "time"

// NotificationType categorizes in-app notifications.
type NotificationType string

const (
	NotificationRoleChanged    NotificationType = "role_changed"
	NotificationAdminRemoved   NotificationType = "admin_removed"
	NotificationSuspension     NotificationType = "suspension"
	NotificationSuspensionLift NotificationType = "suspension_lift"
	NotificationAppealOutcome  NotificationType = "appeal_outcome"
	NotificationTokenIssued    NotificationType = "token_issued"
)

// Notification is an in-app inbox record owned by the recipient account.
type Notification struct {
	ID        string
	AccountID string
	Title     string
	Content   string
	Type      NotificationType
	Read      bool
	CreatedAt time.Time
}
