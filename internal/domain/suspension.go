package domain

import (
	"errors"
	"time"
)

// SuspensionAction enumerates the audit-trail entry kinds.
type SuspensionAction string

const (
	ActionSuspension     SuspensionAction = "suspension"
	ActionExtension      SuspensionAction = "extension"
	ActionLift           SuspensionAction = "lift"
	ActionAppeal         SuspensionAction = "appeal"
	ActionAppealApproved SuspensionAction = "appeal_approved"
	ActionAppealRejected SuspensionAction = "appeal_rejected"
	ActionAutoLift       SuspensionAction = "auto_lift"
)

// SuspensionDuration enumerates the accepted suspension lengths.
type SuspensionDuration string

const (
	Duration24Hours   SuspensionDuration = "24_hours"
	Duration3Days     SuspensionDuration = "3_days"
	Duration7Days     SuspensionDuration = "7_days"
	Duration30Days    SuspensionDuration = "30_days"
	DurationIndefinite SuspensionDuration = "indefinite"
)

// ErrUnknownDuration is returned for a duration outside the accepted set.
var ErrUnknownDuration = errors.New("unknown suspension duration")

// Until resolves the duration into an end timestamp relative to now.
// Indefinite suspensions have no end time.
func (d SuspensionDuration) Until(now time.Time) (*time.Time, error) {
	var span time.Duration
	switch d {
	case Duration24Hours:
		span = 24 * time.Hour
	case Duration3Days:
		span = 3 * 24 * time.Hour
	case Duration7Days:
		span = 7 * 24 * time.Hour
	case Duration30Days:
		span = 30 * 24 * time.Hour
	case DurationIndefinite:
		return nil, nil
	default:
		return nil, ErrUnknownDuration
	}
	until := now.Add(span)
	return &until, nil
}

// Suspension is an access-restriction record, active or historical. Lifted
// suspensions are deactivated, never deleted.
type Suspension struct {
	ID             string
	AccountID      string
	Active         bool
	SuspendedUntil *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// SuspensionHistoryEntry is one immutable record in a suspension's audit trail.
// Data carries free-form structured payload (category, previous end time, appeal
// processing markers).
type SuspensionHistoryEntry struct {
	ID           string
	SuspensionID string
	Seq          int
	Action       SuspensionAction
	Description  string
	ActorID      string
	Reason       string
	Duration     *SuspensionDuration
	Data         map[string]any
	CreatedAt    time.Time
}

// AppealProcessed reports whether an appeal entry already carries a decision.
func (e *SuspensionHistoryEntry) AppealProcessed() bool {
	if e.Data == nil {
		return false
	}
	processed, _ := e.Data["processed"].(bool)
	return processed
}
