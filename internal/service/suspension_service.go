package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/listing-admin/internal/auth"
	"github.com/spec-kit/listing-admin/internal/domain"
	"github.com/spec-kit/listing-admin/internal/events"
	"github.com/spec-kit/listing-admin/internal/observability"
	"github.com/spec-kit/listing-admin/internal/repository"
	apperrors "github.com/spec-kit/listing-admin/pkg/util"
)

// appealWindow is the lookback for the appeal rate limit.
const appealWindow = 24 * time.Hour

// maxAppealsPerWindow caps appeal entries an account may file per window.
const maxAppealsPerWindow = 2

// SuspensionService drives the suspend / extend / lift / appeal / auto-lift
// transitions on suspension records. Every transition appends exactly one
// audit entry inside the same atomic unit as its state change.
type SuspensionService struct {
	repos      *repository.Repos
	atomic     repository.Atomic
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	now        func() time.Time
}

// SuspensionDependencies bundles requirements for the suspension service.
type SuspensionDependencies struct {
	Repos      *repository.Repos
	Atomic     repository.Atomic
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewSuspensionService builds the service.
func NewSuspensionService(deps SuspensionDependencies) *SuspensionService {
	return &SuspensionService{
		repos:      deps.Repos,
		atomic:     deps.Atomic,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		now:        time.Now,
	}
}

// Suspend restricts the target account for the given duration. Agent listings
// are hidden and admin grants get their suspension mirror set, all within the
// same atomic unit as the suspension record and its first audit entry.
func (s *SuspensionService) Suspend(ctx context.Context, actor *domain.Account, accountID, reason, category string, duration domain.SuspensionDuration) (*domain.Suspension, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if actor.ID == accountID {
		return nil, apperrors.NewForbidden("cannot suspend yourself")
	}
	if !auth.Allows(actor.Role, auth.CapManageUsers) {
		return nil, apperrors.NewForbidden("user management capability required")
	}

	target, err := s.repos.Accounts.GetByID(ctx, accountID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("account", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	if target.Role.IsAdminTier() {
		if !auth.Allows(actor.Role, auth.CapSuspendAdmins) {
			return nil, apperrors.NewForbidden("super administrator capability required to suspend admins")
		}
		if auth.IsSuperAdmin(target.Role) && !auth.IsSuperAdmin(actor.Role) {
			return nil, apperrors.NewForbidden("only a super administrator may suspend a super administrator")
		}
	}

	if target.Suspended {
		return nil, apperrors.NewConflict("account already suspended", nil)
	}
	if _, err := s.repos.Suspensions.GetActiveByAccount(ctx, target.ID); err == nil {
		return nil, apperrors.NewConflict("an active suspension already exists", nil)
	} else if err != pgx.ErrNoRows {
		return nil, apperrors.NewInternalError(err)
	}

	now := s.now()
	until, err := duration.Until(now)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid duration", map[string]any{"duration": duration})
	}

	suspension := &domain.Suspension{
		AccountID:      target.ID,
		Active:         true,
		SuspendedUntil: until,
	}
	err = s.atomic.WithinTx(ctx, func(r *repository.Repos) error {
		if err := r.Suspensions.Create(ctx, suspension); err != nil {
			return err
		}
		dur := duration
		if err := r.Suspensions.AppendHistory(ctx, &domain.SuspensionHistoryEntry{
			SuspensionID: suspension.ID,
			Action:       domain.ActionSuspension,
			Description:  fmt.Sprintf("account suspended for %s", duration),
			ActorID:      actor.ID,
			Reason:       reason,
			Duration:     &dur,
			Data:         map[string]any{"category": category},
		}); err != nil {
			return err
		}

		target.Suspended = true
		target.SuspensionReason = &reason
		target.SuspendedAt = &now
		actorID := actor.ID
		target.SuspendedBy = &actorID
		if err := r.Accounts.Update(ctx, target); err != nil {
			return err
		}

		if target.Role == domain.RoleAgent {
			if err := r.Listings.SetHiddenByOwner(ctx, target.ID, true); err != nil {
				return err
			}
		}
		if target.Role.IsAdminTier() {
			if err := s.mirrorGrantSuspension(ctx, r, target.ID, true, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.record(string(domain.ActionSuspension))
	s.publish(ctx, events.Event{
		Type:      events.EventAccountSuspended,
		AccountID: target.ID,
		ActorID:   actor.ID,
		Payload: events.SuspendedPayload{
			RecipientEmail: target.Email,
			SuspensionID:   suspension.ID,
			Reason:         reason,
			Duration:       duration,
			SuspendedUntil: until,
		},
	})
	return suspension, nil
}

// Extend pushes the suspension end out to a new duration. Only the actor that
// issued the suspension may extend it; the prior end time is preserved in the
// new audit entry's data.
func (s *SuspensionService) Extend(ctx context.Context, actor *domain.Account, suspensionID string, newDuration domain.SuspensionDuration, reason string) (*domain.Suspension, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}

	suspension, err := s.repos.Suspensions.GetByID(ctx, suspensionID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("suspension", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	if !suspension.Active {
		return nil, apperrors.NewConflict("suspension is not active", nil)
	}

	suspenderID, err := s.originalSuspender(ctx, suspension.ID)
	if err != nil {
		return nil, err
	}
	if suspenderID != actor.ID {
		return nil, apperrors.NewForbidden("only the suspending administrator may extend")
	}

	now := s.now()
	until, err := newDuration.Until(now)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid duration", map[string]any{"duration": newDuration})
	}

	previousUntil := suspension.SuspendedUntil
	err = s.atomic.WithinTx(ctx, func(r *repository.Repos) error {
		suspension.SuspendedUntil = until
		if err := r.Suspensions.Update(ctx, suspension); err != nil {
			return err
		}
		dur := newDuration
		data := map[string]any{}
		if previousUntil != nil {
			data["previous_until"] = previousUntil.UTC().Format(time.RFC3339)
		}
		return r.Suspensions.AppendHistory(ctx, &domain.SuspensionHistoryEntry{
			SuspensionID: suspension.ID,
			Action:       domain.ActionExtension,
			Description:  fmt.Sprintf("suspension extended by %s", newDuration),
			ActorID:      actor.ID,
			Reason:       reason,
			Duration:     &dur,
			Data:         data,
		})
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	target, lookupErr := s.repos.Accounts.GetByID(ctx, suspension.AccountID)
	if lookupErr == nil {
		s.record(string(domain.ActionExtension))
		s.publish(ctx, events.Event{
			Type:      events.EventSuspensionExtended,
			AccountID: suspension.AccountID,
			ActorID:   actor.ID,
			Payload: events.SuspendedPayload{
				RecipientEmail: target.Email,
				SuspensionID:   suspension.ID,
				Reason:         reason,
				Duration:       newDuration,
				SuspendedUntil: until,
			},
		})
	}
	return suspension, nil
}

// Lift deactivates a suspension and restores the account. The original
// suspending actor may always lift; a super administrator may override for
// admin-tier subjects.
func (s *SuspensionService) Lift(ctx context.Context, actor *domain.Account, suspensionID, reason string) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}

	suspension, err := s.repos.Suspensions.GetByID(ctx, suspensionID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("suspension", nil)
		}
		return apperrors.NewInternalError(err)
	}
	if !suspension.Active {
		return apperrors.NewConflict("suspension is not active", nil)
	}

	target, err := s.repos.Accounts.GetByID(ctx, suspension.AccountID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("account", nil)
		}
		return apperrors.NewInternalError(err)
	}

	suspenderID, err := s.originalSuspender(ctx, suspension.ID)
	if err != nil {
		return err
	}
	if suspenderID != actor.ID {
		if !(target.Role.IsAdminTier() && auth.IsSuperAdmin(actor.Role)) {
			return apperrors.NewForbidden("only the suspending administrator may lift")
		}
	}

	err = s.atomic.WithinTx(ctx, func(r *repository.Repos) error {
		return s.applyLift(ctx, r, suspension, target, actor.ID, domain.ActionLift, reason, nil)
	})
	if err != nil {
		return apperrors.MapError(err)
	}

	s.record(string(domain.ActionLift))
	s.publish(ctx, events.Event{
		Type:      events.EventSuspensionLifted,
		AccountID: target.ID,
		ActorID:   actor.ID,
		Payload: events.LiftedPayload{
			RecipientEmail: target.Email,
			SuspensionID:   suspension.ID,
			Reason:         reason,
		},
	})
	return nil
}

// FileAppeal lets the suspended account contest its active suspension. At
// most one appeal per suspension; at most two appeal entries per account per
// 24 hours.
func (s *SuspensionService) FileAppeal(ctx context.Context, subject *domain.Account, reason string) (*domain.SuspensionHistoryEntry, error) {
	if subject == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if !subject.Suspended {
		return nil, apperrors.NewConflict("account is not suspended", nil)
	}

	suspension, err := s.repos.Suspensions.GetActiveByAccount(ctx, subject.ID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("active suspension", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}

	now := s.now()
	count, err := s.repos.Suspensions.CountAppealsByAccountSince(ctx, subject.ID, now.Add(-appealWindow))
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if count >= maxAppealsPerWindow {
		return nil, apperrors.NewRateLimited("appeal limit reached; try again later")
	}

	entry := &domain.SuspensionHistoryEntry{
		SuspensionID: suspension.ID,
		Action:       domain.ActionAppeal,
		Description:  "appeal filed by the suspended account",
		ActorID:      subject.ID,
		Reason:       reason,
		Data:         map[string]any{"processed": false},
	}
	err = s.atomic.WithinTx(ctx, func(r *repository.Repos) error {
		// The one-appeal check runs inside the atomic unit; the partial
		// unique index on appeal entries backstops concurrent writers.
		history, err := r.Suspensions.ListHistory(ctx, suspension.ID)
		if err != nil {
			return err
		}
		for _, prior := range history {
			if prior.Action == domain.ActionAppeal {
				return apperrors.NewConflict("an appeal was already filed for this suspension", nil)
			}
		}
		return r.Suspensions.AppendHistory(ctx, entry)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	suspenderID, _ := s.originalSuspender(ctx, suspension.ID)
	payload := events.AppealFiledPayload{
		SuspensionID:   suspension.ID,
		AppealEntryID:  entry.ID,
		SuspenderID:    suspenderID,
		SubjectAccount: subject.ID,
		Reason:         reason,
	}
	if suspenderID != "" {
		if suspender, err := s.repos.Accounts.GetByID(ctx, suspenderID); err == nil {
			payload.SuspenderEmail = suspender.Email
		}
	}
	s.record(string(domain.ActionAppeal))
	s.publish(ctx, events.Event{
		Type:      events.EventAppealFiled,
		AccountID: subject.ID,
		ActorID:   subject.ID,
		Payload:   payload,
	})
	return entry, nil
}

// ResolveAppeal decides a pending appeal on an active suspension. Approval
// performs the same state change as a lift; rejection leaves the suspension
// active. Either way the appeal entry is marked processed and cannot be
// decided twice. A suspension already lifted leaves nothing to resolve.
func (s *SuspensionService) ResolveAppeal(ctx context.Context, actor *domain.Account, suspensionID, appealEntryID, decision, notes string) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if decision != "approve" && decision != "reject" {
		return apperrors.NewValidationError("decision must be approve or reject", nil)
	}

	suspension, err := s.repos.Suspensions.GetByID(ctx, suspensionID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("suspension", nil)
		}
		return apperrors.NewInternalError(err)
	}
	if !suspension.Active {
		return apperrors.NewConflict("suspension is no longer active", nil)
	}

	suspenderID, err := s.originalSuspender(ctx, suspension.ID)
	if err != nil {
		return err
	}
	if suspenderID != actor.ID {
		return apperrors.NewForbidden("only the suspending administrator may resolve appeals")
	}

	entry, err := s.repos.Suspensions.GetHistoryEntry(ctx, appealEntryID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("appeal entry", nil)
		}
		return apperrors.NewInternalError(err)
	}
	if entry.SuspensionID != suspension.ID {
		return apperrors.NewValidationError("entry does not belong to this suspension", nil)
	}
	if entry.Action != domain.ActionAppeal {
		return apperrors.NewConflict("history entry is not an appeal", nil)
	}
	if entry.AppealProcessed() {
		return apperrors.NewConflict("appeal already processed", nil)
	}

	target, err := s.repos.Accounts.GetByID(ctx, suspension.AccountID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("account", nil)
		}
		return apperrors.NewInternalError(err)
	}

	marker := map[string]any{"processed": true, "decision": decision}
	if notes != "" {
		marker["notes"] = notes
	}

	err = s.atomic.WithinTx(ctx, func(r *repository.Repos) error {
		if decision == "approve" {
			if err := s.applyLift(ctx, r, suspension, target, actor.ID, domain.ActionAppealApproved, notes,
				map[string]any{"appeal_entry_id": entry.ID}); err != nil {
				return err
			}
		} else {
			if err := r.Suspensions.AppendHistory(ctx, &domain.SuspensionHistoryEntry{
				SuspensionID: suspension.ID,
				Action:       domain.ActionAppealRejected,
				Description:  "appeal rejected",
				ActorID:      actor.ID,
				Reason:       notes,
				Data:         map[string]any{"appeal_entry_id": entry.ID},
			}); err != nil {
				return err
			}
		}
		return r.Suspensions.MarkAppealProcessed(ctx, entry.ID, marker)
	})
	if err != nil {
		return apperrors.MapError(err)
	}

	if decision == "approve" {
		s.record(string(domain.ActionAppealApproved))
	} else {
		s.record(string(domain.ActionAppealRejected))
	}
	s.publish(ctx, events.Event{
		Type:      events.EventAppealResolved,
		AccountID: target.ID,
		ActorID:   actor.ID,
		Payload: events.AppealResolvedPayload{
			RecipientEmail: target.Email,
			SuspensionID:   suspension.ID,
			Decision:       decision,
			Notes:          notes,
		},
	})
	return nil
}

// SweepOutcome reports one suspension processed by SweepExpired.
type SweepOutcome struct {
	SuspensionID string `json:"suspension_id"`
	AccountID    string `json:"account_id"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
}

// SweepExpired lifts every active suspension whose end time has elapsed,
// attributed to the reserved system identity. A failure on one record never
// aborts the rest of the sweep.
func (s *SuspensionService) SweepExpired(ctx context.Context) ([]SweepOutcome, error) {
	now := s.now()
	expired, err := s.repos.Suspensions.ListExpiredActive(ctx, now)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	outcomes := make([]SweepOutcome, 0, len(expired))
	for i := range expired {
		suspension := expired[i]
		outcome := SweepOutcome{SuspensionID: suspension.ID, AccountID: suspension.AccountID, Status: "lifted"}

		target, err := s.repos.Accounts.GetByID(ctx, suspension.AccountID)
		if err == nil {
			err = s.atomic.WithinTx(ctx, func(r *repository.Repos) error {
				return s.applyLift(ctx, r, &suspension, target, domain.SystemActorID, domain.ActionAutoLift,
					"suspension period elapsed", nil)
			})
		}
		if err != nil {
			outcome.Status = "failed"
			outcome.Error = err.Error()
			s.logger.Warn("auto-lift failed",
				zap.String("suspension_id", suspension.ID),
				zap.Error(err))
			s.recordSweep("failed")
			outcomes = append(outcomes, outcome)
			continue
		}

		s.recordSweep("lifted")
		s.publish(ctx, events.Event{
			Type:      events.EventSuspensionLifted,
			AccountID: target.ID,
			ActorID:   domain.SystemActorID,
			Payload: events.LiftedPayload{
				RecipientEmail: target.Email,
				SuspensionID:   suspension.ID,
				Reason:         "suspension period elapsed",
				Auto:           true,
			},
		})
		outcomes = append(outcomes, outcome)
	}
	return outcomes, nil
}

// applyLift performs the shared lift effects: deactivate the record, append
// the audit entry, clear the account fields, un-hide agent listings and clear
// the grant's suspension mirror.
func (s *SuspensionService) applyLift(ctx context.Context, r *repository.Repos, suspension *domain.Suspension, target *domain.Account, actorID string, action domain.SuspensionAction, reason string, data map[string]any) error {
	suspension.Active = false
	suspension.SuspendedUntil = nil
	if err := r.Suspensions.Update(ctx, suspension); err != nil {
		return err
	}
	if err := r.Suspensions.AppendHistory(ctx, &domain.SuspensionHistoryEntry{
		SuspensionID: suspension.ID,
		Action:       action,
		Description:  "suspension lifted",
		ActorID:      actorID,
		Reason:       reason,
		Data:         data,
	}); err != nil {
		return err
	}

	target.Suspended = false
	target.SuspensionReason = nil
	target.SuspendedAt = nil
	target.SuspendedBy = nil
	if err := r.Accounts.Update(ctx, target); err != nil {
		return err
	}

	if target.Role == domain.RoleAgent {
		if err := r.Listings.SetHiddenByOwner(ctx, target.ID, false); err != nil {
			return err
		}
	}
	if target.Role.IsAdminTier() {
		if err := s.mirrorGrantSuspension(ctx, r, target.ID, false, s.now()); err != nil {
			return err
		}
	}
	return nil
}

// mirrorGrantSuspension keeps the AdminGrant suspension fields in step with
// the account for admin-tier subjects. A missing grant is tolerated.
func (s *SuspensionService) mirrorGrantSuspension(ctx context.Context, r *repository.Repos, accountID string, suspended bool, now time.Time) error {
	grant, err := r.Grants.GetByAccountID(ctx, accountID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil
		}
		return err
	}
	grant.Suspended = suspended
	if suspended {
		grant.SuspendedAt = &now
	} else {
		grant.SuspendedAt = nil
	}
	return r.Grants.Update(ctx, grant)
}

// originalSuspender resolves the actor of the first suspension-typed audit
// entry. Extenders never gain ownership; only this actor (plus the super-admin
// override on lift) may act on the record.
func (s *SuspensionService) originalSuspender(ctx context.Context, suspensionID string) (string, error) {
	history, err := s.repos.Suspensions.ListHistory(ctx, suspensionID)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	for _, entry := range history {
		if entry.Action == domain.ActionSuspension {
			return entry.ActorID, nil
		}
	}
	return "", apperrors.NewInternalError(fmt.Errorf("suspension %s has no suspension entry", suspensionID))
}

func (s *SuspensionService) record(action string) {
	if s.metrics != nil {
		s.metrics.RecordTransition(action)
	}
}

func (s *SuspensionService) recordSweep(status string) {
	if s.metrics != nil {
		s.metrics.RecordSweepOutcome(status)
	}
}

func (s *SuspensionService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
