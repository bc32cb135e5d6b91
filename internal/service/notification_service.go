package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/listing-admin/internal/config"
	"github.com/spec-kit/listing-admin/internal/events"
)

// Mailer delivers outbound messages. The boolean result is logged, never
// propagated: delivery failure must not disturb a committed transition.
type Mailer interface {
	Send(ctx context.Context, recipientEmail, subject, body string) bool
}

// MediaCleaner removes externally stored public assets.
type MediaCleaner interface {
	DeletePublicAsset(ctx context.Context, assetKey string) error
}

// ViewInvalidator drops cached administrator-facing views.
type ViewInvalidator interface {
	Invalidate(ctx context.Context, path string) error
}

// NotificationService consumes lifecycle events after commit and performs the
// best-effort side effects: mail, view invalidation and media cleanup.
type NotificationService struct {
	dispatcher events.Dispatcher
	mailer     Mailer
	media      MediaCleaner
	views      ViewInvalidator
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, mailer Mailer, media MediaCleaner, views ViewInvalidator, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		mailer:     mailer,
		media:      media,
		views:      views,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to lifecycle events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventAdminTokenIssued, n.handleTokenIssued)
	n.dispatcher.Subscribe(events.EventAdminTokenReissued, n.handleTokenIssued)
	n.dispatcher.Subscribe(events.EventRoleChanged, n.handleRoleChanged)
	n.dispatcher.Subscribe(events.EventAdminRemoved, n.handleAdminRemoved)
	n.dispatcher.Subscribe(events.EventAccountSuspended, n.handleSuspended)
	n.dispatcher.Subscribe(events.EventSuspensionExtended, n.handleSuspended)
	n.dispatcher.Subscribe(events.EventSuspensionLifted, n.handleLifted)
	n.dispatcher.Subscribe(events.EventAppealFiled, n.handleAppealFiled)
	n.dispatcher.Subscribe(events.EventAppealResolved, n.handleAppealResolved)
	n.dispatcher.Subscribe(events.EventAccountDeleted, n.handleAccountDeleted)
}

func (n *NotificationService) handleTokenIssued(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TokenIssuedPayload)
	if !ok {
		return nil
	}
	subject := "Your administrator access token"
	body := fmt.Sprintf("Use token %s before %s to activate your %s access.",
		payload.Token, payload.ExpiresAt.Format(time.RFC1123), payload.Role)
	n.send(ctx, payload.RecipientEmail, subject, body)
	return nil
}

func (n *NotificationService) handleRoleChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.RoleChangedPayload)
	if !ok {
		return nil
	}
	body := fmt.Sprintf("Your role changed from %s to %s.", payload.OldRole, payload.NewRole)
	n.send(ctx, payload.RecipientEmail, "Your role changed", body)
	n.invalidate(ctx, "admins")
	return nil
}

func (n *NotificationService) handleAdminRemoved(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AdminRemovedPayload)
	if !ok {
		return nil
	}
	body := fmt.Sprintf("Your administrative access was removed. Your role is now %s.", payload.RestoredRole)
	n.send(ctx, payload.RecipientEmail, "Administrative access removed", body)
	n.invalidate(ctx, "admins")
	return nil
}

func (n *NotificationService) handleSuspended(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SuspendedPayload)
	if !ok {
		return nil
	}
	until := "further notice"
	if payload.SuspendedUntil != nil {
		until = payload.SuspendedUntil.Format(time.RFC1123)
	}
	body := fmt.Sprintf("Your account is suspended until %s. Reason: %s", until, payload.Reason)
	n.send(ctx, payload.RecipientEmail, "Account suspended", body)
	n.invalidate(ctx, "suspensions")
	return nil
}

func (n *NotificationService) handleLifted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.LiftedPayload)
	if !ok {
		return nil
	}
	n.send(ctx, payload.RecipientEmail, "Suspension lifted", "Your account has been reinstated.")
	n.invalidate(ctx, "suspensions")
	return nil
}

func (n *NotificationService) handleAppealFiled(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AppealFiledPayload)
	if !ok {
		return nil
	}
	if payload.SuspenderEmail == "" {
		return nil
	}
	body := fmt.Sprintf("Account %s appealed suspension %s: %s",
		payload.SubjectAccount, payload.SuspensionID, payload.Reason)
	n.send(ctx, payload.SuspenderEmail, "Suspension appeal filed", body)
	return nil
}

func (n *NotificationService) handleAppealResolved(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AppealResolvedPayload)
	if !ok {
		return nil
	}
	var subject, body string
	if payload.Decision == "approve" {
		subject = "Appeal approved"
		body = "Your appeal was approved and the suspension has been lifted."
	} else {
		subject = "Appeal rejected"
		body = "Your appeal was reviewed and rejected. The suspension remains in effect."
	}
	if payload.Notes != "" {
		body += " Notes: " + payload.Notes
	}
	n.send(ctx, payload.RecipientEmail, subject, body)
	n.invalidate(ctx, "suspensions")
	return nil
}

func (n *NotificationService) handleAccountDeleted(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AccountDeletedPayload)
	if !ok {
		return nil
	}
	if payload.Reverted {
		n.send(ctx, payload.RecipientEmail, "Administrative access removed",
			"Your administrative access was removed and your previous role restored.")
	} else {
		n.send(ctx, payload.RecipientEmail, "Account removed",
			"Your account and its data have been removed from the platform.")
		for _, key := range payload.AssetKeys {
			if n.media == nil {
				break
			}
			if err := n.media.DeletePublicAsset(ctx, key); err != nil {
				n.logger.Warn("media cleanup failed",
					zap.String("asset_key", key),
					zap.Error(err))
			}
		}
	}
	n.invalidate(ctx, "admins")
	return nil
}

func (n *NotificationService) send(ctx context.Context, to, subject, body string) {
	if n.mailer == nil || strings.TrimSpace(to) == "" {
		return
	}
	if ok := n.mailer.Send(ctx, to, subject, body); !ok {
		n.logger.Warn("mail dispatch failed",
			zap.String("recipient", to),
			zap.String("subject", subject))
	}
}

func (n *NotificationService) invalidate(ctx context.Context, path string) {
	if n.views == nil {
		return
	}
	if err := n.views.Invalidate(ctx, path); err != nil {
		n.logger.Warn("view invalidation failed",
			zap.String("path", path),
			zap.Error(err))
	}
}
