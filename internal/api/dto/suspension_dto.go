package dto

import "time"

// SuspendRequest opens a suspension against an account.
type SuspendRequest struct {
	AccountID string `json:"account_id"`
	Reason    string `json:"reason"`
	Category  string `json:"category"`
	Duration  string `json:"duration"`
}

// ExtendRequest pushes the end of an active suspension out.
type ExtendRequest struct {
	Duration string `json:"duration"`
	Reason   string `json:"reason"`
}

// LiftRequest deactivates a suspension.
type LiftRequest struct {
	Reason string `json:"reason"`
}

// AppealRequest contests the caller's active suspension.
type AppealRequest struct {
	Reason string `json:"reason"`
}

// ResolveAppealRequest decides a pending appeal.
type ResolveAppealRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
}

// SuspensionResponse is the public projection of a suspension record.
type SuspensionResponse struct {
	ID             string     `json:"id"`
	AccountID      string     `json:"account_id"`
	Active         bool       `json:"active"`
	SuspendedUntil *time.Time `json:"suspended_until,omitempty"`
}
