package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/listing-admin/internal/auth"
	"github.com/spec-kit/listing-admin/internal/domain"
	"github.com/spec-kit/listing-admin/internal/events"
	"github.com/spec-kit/listing-admin/internal/repository"
	apperrors "github.com/spec-kit/listing-admin/pkg/util"
)

// RoleService promotes and demotes accounts between tiers, keeping the
// AdminGrant companion record and its history consistent with the account.
type RoleService struct {
	repos      *repository.Repos
	atomic     repository.Atomic
	activation *ActivationService
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        func() time.Time
}

// RoleDependencies bundles requirements for the role service.
type RoleDependencies struct {
	Repos      *repository.Repos
	Atomic     repository.Atomic
	Activation *ActivationService
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewRoleService builds the service.
func NewRoleService(deps RoleDependencies) *RoleService {
	return &RoleService{
		repos:      deps.Repos,
		atomic:     deps.Atomic,
		activation: deps.Activation,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// AssignRole transitions the target account to newRole, creating, updating or
// removing the admin grant depending on the transition shape.
func (s *RoleService) AssignRole(ctx context.Context, actor *domain.Account, targetAccountID string, newRole domain.Role, reason string) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if !newRole.IsValid() {
		return apperrors.NewValidationError("unknown role", map[string]any{"role": newRole})
	}
	if actor.ID == targetAccountID {
		return apperrors.NewForbidden("cannot modify your own role")
	}

	target, err := s.repos.Accounts.GetByID(ctx, targetAccountID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("account", nil)
		}
		return apperrors.NewInternalError(err)
	}

	if target.Role.IsAdminTier() {
		if !auth.Allows(actor.Role, auth.CapManageAdmins) {
			return apperrors.NewForbidden("admin management capability required")
		}
	} else if !auth.Allows(actor.Role, auth.CapManageUsers) {
		return apperrors.NewForbidden("user management capability required")
	}
	if newRole.IsAdminTier() && !auth.IsSuperAdmin(actor.Role) {
		return apperrors.NewForbidden("only a super administrator may assign admin roles")
	}
	if !target.Verified {
		return apperrors.NewValidationError("target account must be verified", nil)
	}

	oldRole := target.Role
	now := s.now()

	grant, err := s.repos.Grants.GetByAccountID(ctx, target.ID)
	if err != nil && err != pgx.ErrNoRows {
		return apperrors.NewInternalError(err)
	}
	hasGrant := err == nil

	var (
		post []events.Event
		cred Credential
	)

	switch {
	case newRole.IsAdminTier() && !hasGrant:
		// Promotion into the admin tier: provision the grant with a fresh
		// one-time token. The setup email carries the information, so no
		// generic notification record is created here.
		cred, err = s.activation.NewCredential()
		if err != nil {
			return apperrors.NewInternalError(err)
		}
		err = s.atomic.WithinTx(ctx, func(r *repository.Repos) error {
			newGrant := &domain.AdminGrant{
				AccountID:      target.ID,
				Role:           newRole,
				AccessToken:    &cred.Token,
				TokenExpiresAt: &cred.ExpiresAt,
			}
			if err := r.Grants.Create(ctx, newGrant); err != nil {
				return err
			}
			if err := r.Grants.AppendHistory(ctx, &domain.AdminHistoryEntry{
				GrantID:   newGrant.ID,
				Role:      newRole,
				Reason:    reasonOr(reason, fmt.Sprintf("promoted from %s to %s", oldRole, newRole)),
				ChangedBy: actor.ID,
			}); err != nil {
				return err
			}
			return s.concludeRoleChange(ctx, r, target, oldRole, newRole, actor.ID, now)
		})
		if err != nil {
			return apperrors.MapError(err)
		}
		post = append(post, events.Event{
			Type:      events.EventAdminTokenIssued,
			AccountID: target.ID,
			ActorID:   actor.ID,
			Payload: events.TokenIssuedPayload{
				RecipientEmail: target.Email,
				Role:           newRole,
				Token:          cred.Token,
				ExpiresAt:      cred.ExpiresAt,
			},
		})

	case newRole.IsAdminTier() && hasGrant:
		// Admin-to-admin role change.
		err = s.atomic.WithinTx(ctx, func(r *repository.Repos) error {
			grant.Role = newRole
			if err := r.Grants.Update(ctx, grant); err != nil {
				return err
			}
			if err := r.Grants.AppendHistory(ctx, &domain.AdminHistoryEntry{
				GrantID:   grant.ID,
				Role:      newRole,
				Reason:    reasonOr(reason, fmt.Sprintf("role changed from %s to %s", oldRole, newRole)),
				ChangedBy: actor.ID,
			}); err != nil {
				return err
			}
			if err := r.Notifications.Create(ctx, &domain.Notification{
				AccountID: target.ID,
				Title:     "Your administrative role changed",
				Content:   fmt.Sprintf("Your role changed from %s to %s.", oldRole, newRole),
				Type:      domain.NotificationRoleChanged,
			}); err != nil {
				return err
			}
			return s.concludeRoleChange(ctx, r, target, oldRole, newRole, actor.ID, now)
		})
		if err != nil {
			return apperrors.MapError(err)
		}
		post = append(post, events.Event{
			Type:      events.EventRoleChanged,
			AccountID: target.ID,
			ActorID:   actor.ID,
			Payload: events.RoleChangedPayload{
				RecipientEmail: target.Email,
				OldRole:        oldRole,
				NewRole:        newRole,
				Reason:         reason,
			},
		})

	case hasGrant:
		// Demotion out of the admin tier: record the removal in the grant
		// history before deleting the grant.
		err = s.atomic.WithinTx(ctx, func(r *repository.Repos) error {
			if err := r.Grants.AppendHistory(ctx, &domain.AdminHistoryEntry{
				GrantID:   grant.ID,
				Role:      newRole,
				Reason:    reasonOr(reason, fmt.Sprintf("removed from admin tier, demoted to %s", newRole)),
				ChangedBy: actor.ID,
			}); err != nil {
				return err
			}
			if err := r.Grants.Delete(ctx, grant.ID); err != nil {
				return err
			}
			if err := r.Notifications.Create(ctx, &domain.Notification{
				AccountID: target.ID,
				Title:     "Administrative access removed",
				Content:   fmt.Sprintf("Your administrative access was removed; your role is now %s.", newRole),
				Type:      domain.NotificationAdminRemoved,
			}); err != nil {
				return err
			}
			return s.concludeRoleChange(ctx, r, target, oldRole, newRole, actor.ID, now)
		})
		if err != nil {
			return apperrors.MapError(err)
		}
		post = append(post, events.Event{
			Type:      events.EventAdminRemoved,
			AccountID: target.ID,
			ActorID:   actor.ID,
			Payload: events.AdminRemovedPayload{
				RecipientEmail: target.Email,
				RestoredRole:   newRole,
				Reason:         reason,
			},
		})

	default:
		// Plain user/agent tier change with no grant involvement.
		err = s.atomic.WithinTx(ctx, func(r *repository.Repos) error {
			if err := r.Notifications.Create(ctx, &domain.Notification{
				AccountID: target.ID,
				Title:     "Your role changed",
				Content:   fmt.Sprintf("Your role changed from %s to %s.", oldRole, newRole),
				Type:      domain.NotificationRoleChanged,
			}); err != nil {
				return err
			}
			return s.concludeRoleChange(ctx, r, target, oldRole, newRole, actor.ID, now)
		})
		if err != nil {
			return apperrors.MapError(err)
		}
		post = append(post, events.Event{
			Type:      events.EventRoleChanged,
			AccountID: target.ID,
			ActorID:   actor.ID,
			Payload: events.RoleChangedPayload{
				RecipientEmail: target.Email,
				OldRole:        oldRole,
				NewRole:        newRole,
				Reason:         reason,
			},
		})
	}

	for _, event := range post {
		s.publish(ctx, event)
	}
	return nil
}

// CreateAdminDirectly provisions an email straight into the admin tier: an
// existing verified non-admin account is converted, a missing one is created
// with a generated handle. Both paths issue a setup token.
func (s *RoleService) CreateAdminDirectly(ctx context.Context, actor *domain.Account, email string, role domain.Role) (*domain.Account, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	if !auth.IsSuperAdmin(actor.Role) {
		return nil, apperrors.NewForbidden("only a super administrator may create admins")
	}
	if !role.IsAdminTier() {
		return nil, apperrors.NewValidationError("role is not an admin-tier role", map[string]any{"role": role})
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, apperrors.NewValidationError("email required", nil)
	}

	account, err := s.repos.Accounts.GetByEmail(ctx, email)
	if err != nil && err != pgx.ErrNoRows {
		return nil, apperrors.NewInternalError(err)
	}
	exists := err == nil

	if exists {
		if _, err := s.repos.Grants.GetByAccountID(ctx, account.ID); err == nil {
			return nil, apperrors.NewConflict("email already maps to an admin grant", nil)
		} else if err != pgx.ErrNoRows {
			return nil, apperrors.NewInternalError(err)
		}
		if account.Role.IsAdminTier() {
			// Admin-tier role without a grant is a data inconsistency that
			// needs manual remediation, not silent repair.
			return nil, apperrors.NewConflict("account role is admin-tier without a grant; manual remediation required", map[string]any{"account_id": account.ID})
		}
		if !account.Verified {
			return nil, apperrors.NewValidationError("account must be verified", nil)
		}
	}

	cred, err := s.activation.NewCredential()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	now := s.now()
	err = s.atomic.WithinTx(ctx, func(r *repository.Repos) error {
		if !exists {
			account = &domain.Account{
				Handle: generateHandle(),
				Email:  email,
				Role:   role,
			}
			if err := r.Accounts.Create(ctx, account); err != nil {
				return err
			}
		}
		grant := &domain.AdminGrant{
			AccountID:      account.ID,
			Role:           role,
			AccessToken:    &cred.Token,
			TokenExpiresAt: &cred.ExpiresAt,
		}
		if err := r.Grants.Create(ctx, grant); err != nil {
			return err
		}
		if err := r.Grants.AppendHistory(ctx, &domain.AdminHistoryEntry{
			GrantID:   grant.ID,
			Role:      role,
			Reason:    "provisioned directly into admin tier",
			ChangedBy: actor.ID,
		}); err != nil {
			return err
		}
		if exists {
			return s.concludeRoleChange(ctx, r, account, account.Role, role, actor.ID, now)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:      events.EventAdminTokenIssued,
		AccountID: account.ID,
		ActorID:   actor.ID,
		Payload: events.TokenIssuedPayload{
			RecipientEmail: account.Email,
			Role:           role,
			Token:          cred.Token,
			ExpiresAt:      cred.ExpiresAt,
		},
	})
	return account, nil
}

// DeleteAdminGrant removes an admin grant and either reverts the account to
// its previous role or removes the account permanently. Media cleanup for
// permanent removals happens outside the atomic unit, after commit.
func (s *RoleService) DeleteAdminGrant(ctx context.Context, actor *domain.Account, grantID, reason string) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if !auth.IsSuperAdmin(actor.Role) {
		return apperrors.NewForbidden("only a super administrator may delete admin grants")
	}

	grant, err := s.repos.Grants.GetByID(ctx, grantID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("admin grant", nil)
		}
		return apperrors.NewInternalError(err)
	}
	if grant.AccountID == actor.ID {
		return apperrors.NewForbidden("cannot delete your own grant")
	}

	target, err := s.repos.Accounts.GetByID(ctx, grant.AccountID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("account", nil)
		}
		return apperrors.NewInternalError(err)
	}

	revert := target.PreviousRole != nil
	now := s.now()
	var assetKeys []string

	err = s.atomic.WithinTx(ctx, func(r *repository.Repos) error {
		restored := domain.RoleUser
		if revert {
			restored = *target.PreviousRole
		}
		if err := r.Grants.AppendHistory(ctx, &domain.AdminHistoryEntry{
			GrantID:   grant.ID,
			Role:      restored,
			Reason:    reasonOr(reason, "admin grant deleted"),
			ChangedBy: actor.ID,
		}); err != nil {
			return err
		}
		if err := r.Grants.Delete(ctx, grant.ID); err != nil {
			return err
		}

		if revert {
			target.Role = restored
			target.PreviousRole = nil
			target.RoleChangedAt = &now
			actorID := actor.ID
			target.RoleChangedBy = &actorID
			return r.Accounts.Update(ctx, target)
		}

		keys, err := r.Listings.ListAssetKeysByOwner(ctx, target.ID)
		if err != nil {
			return err
		}
		assetKeys = keys
		if err := r.Listings.DeleteByOwner(ctx, target.ID); err != nil {
			return err
		}
		if err := r.Notifications.DeleteByAccount(ctx, target.ID); err != nil {
			return err
		}
		return r.Accounts.HardDelete(ctx, target.ID)
	})
	if err != nil {
		return apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:      events.EventAccountDeleted,
		AccountID: target.ID,
		ActorID:   actor.ID,
		Payload: events.AccountDeletedPayload{
			RecipientEmail: target.Email,
			Reverted:       revert,
			Reason:         reason,
			AssetKeys:      assetKeys,
		},
	})
	return nil
}

// concludeRoleChange persists the role plus the audit fields every transition
// shape records on the account.
func (s *RoleService) concludeRoleChange(ctx context.Context, r *repository.Repos, target *domain.Account, oldRole, newRole domain.Role, actorID string, now time.Time) error {
	target.Role = newRole
	prev := oldRole
	target.PreviousRole = &prev
	target.RoleChangedAt = &now
	target.RoleChangedBy = &actorID
	return r.Accounts.Update(ctx, target)
}

func (s *RoleService) publish(ctx context.Context, event events.Event) {
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

func reasonOr(reason, fallback string) string {
	if strings.TrimSpace(reason) != "" {
		return reason
	}
	return fallback
}

func generateHandle() string {
	return "admin-" + strings.ToLower(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
