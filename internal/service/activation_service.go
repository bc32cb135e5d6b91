package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/listing-admin/internal/auth"
	"github.com/spec-kit/listing-admin/internal/config"
	"github.com/spec-kit/listing-admin/internal/domain"
	"github.com/spec-kit/listing-admin/internal/events"
	"github.com/spec-kit/listing-admin/internal/repository"
	apperrors "github.com/spec-kit/listing-admin/pkg/util"
)

// tokenAlphabet is the wide alphanumeric-plus-symbol charset for one-time
// activation credentials.
const tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*"

// ActivationService issues, redeems and reissues the one-time access tokens
// that activate an administrative grant, and completes the post-activation
// password step.
type ActivationService struct {
	repos      *repository.Repos
	atomic     repository.Atomic
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.ActivationConfig
	bcryptCost int
	now        func() time.Time
}

// ActivationDependencies bundles requirements for the service.
type ActivationDependencies struct {
	Repos      *repository.Repos
	Atomic     repository.Atomic
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewActivationService builds the service.
func NewActivationService(cfg config.Config, deps ActivationDependencies) *ActivationService {
	return &ActivationService{
		repos:      deps.Repos,
		atomic:     deps.Atomic,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		cfg:        cfg.Activation,
		bcryptCost: cfg.Auth.BcryptCost,
		now:        time.Now,
	}
}

// Credential is a freshly generated one-time token with its expiry.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

// NewCredential generates a token and expiry without persisting anything.
// The role coordinator delegates here when provisioning a grant.
func (s *ActivationService) NewCredential() (Credential, error) {
	length := s.cfg.TokenLength
	if length <= 0 {
		length = 10
	}
	buf := make([]byte, length)
	max := big.NewInt(int64(len(tokenAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return Credential{}, fmt.Errorf("generate token: %w", err)
		}
		buf[i] = tokenAlphabet[n.Int64()]
	}
	return Credential{Token: string(buf), ExpiresAt: s.now().Add(s.cfg.TokenTTL())}, nil
}

// Issue stores a fresh token on the target account's grant, creating the grant
// when none exists. Fails once the grant has been activated.
func (s *ActivationService) Issue(ctx context.Context, accountID string, role domain.Role, issuerID string) (Credential, error) {
	if !role.IsAdminTier() {
		return Credential{}, apperrors.NewValidationError("role is not an admin-tier role", map[string]any{"role": role})
	}

	account, err := s.repos.Accounts.GetByID(ctx, accountID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Credential{}, apperrors.NewNotFound("account", nil)
		}
		return Credential{}, apperrors.NewInternalError(err)
	}

	cred, err := s.NewCredential()
	if err != nil {
		return Credential{}, apperrors.NewInternalError(err)
	}

	err = s.atomic.WithinTx(ctx, func(r *repository.Repos) error {
		grant, err := r.Grants.GetByAccountID(ctx, account.ID)
		switch {
		case err == pgx.ErrNoRows:
			grant = &domain.AdminGrant{
				AccountID:      account.ID,
				Role:           role,
				AccessToken:    &cred.Token,
				TokenExpiresAt: &cred.ExpiresAt,
			}
			return r.Grants.Create(ctx, grant)
		case err != nil:
			return err
		}
		if grant.Activated {
			return apperrors.NewConflict("grant already activated", nil)
		}
		grant.Role = role
		grant.AccessToken = &cred.Token
		grant.TokenExpiresAt = &cred.ExpiresAt
		return r.Grants.Update(ctx, grant)
	})
	if err != nil {
		return Credential{}, apperrors.MapError(err)
	}

	s.publish(ctx, events.Event{
		Type:      events.EventAdminTokenIssued,
		AccountID: account.ID,
		ActorID:   issuerID,
		Payload: events.TokenIssuedPayload{
			RecipientEmail: account.Email,
			Role:           role,
			Token:          cred.Token,
			ExpiresAt:      cred.ExpiresAt,
		},
	})
	return cred, nil
}

// ActivationResult reports a successful redeem.
type ActivationResult struct {
	Account *domain.Account
	Grant   *domain.AdminGrant
}

// Redeem consumes a one-time token: it verifies the account, clears the token
// fields and marks the grant activated, atomically. A redeemed token can never
// be replayed.
func (s *ActivationService) Redeem(ctx context.Context, email, token string) (*ActivationResult, error) {
	account, err := s.repos.Accounts.GetByEmail(ctx, email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("account", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}

	grant, err := s.repos.Grants.GetByAccountID(ctx, account.ID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("admin grant", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}

	if grant.Activated {
		return nil, apperrors.NewConflict("grant already activated", nil)
	}
	now := s.now()
	if grant.AccessToken == nil {
		return nil, apperrors.NewGone("token already consumed")
	}
	if grant.TokenExpiresAt == nil || now.After(*grant.TokenExpiresAt) {
		return nil, apperrors.NewGone("token expired")
	}
	if subtle.ConstantTimeCompare([]byte(*grant.AccessToken), []byte(token)) != 1 {
		return nil, apperrors.NewForbidden("token mismatch")
	}

	err = s.atomic.WithinTx(ctx, func(r *repository.Repos) error {
		account.Verified = true
		if err := r.Accounts.Update(ctx, account); err != nil {
			return err
		}
		grant.AccessToken = nil
		grant.TokenExpiresAt = nil
		grant.Activated = true
		grant.ActivatedAt = &now
		actor := account.ID
		grant.ActivatedBy = &actor
		return r.Grants.Update(ctx, grant)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &ActivationResult{Account: account, Grant: grant}, nil
}

// Reissue replaces an expired or missing token on a pending grant. A live
// token blocks reissuance so that a pending setup email cannot be silently
// invalidated.
func (s *ActivationService) Reissue(ctx context.Context, email string) (Credential, error) {
	account, err := s.repos.Accounts.GetByEmail(ctx, email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Credential{}, apperrors.NewNotFound("account", nil)
		}
		return Credential{}, apperrors.NewInternalError(err)
	}
	if !account.Role.IsAdminTier() {
		return Credential{}, apperrors.NewForbidden("account is not in the admin tier")
	}

	grant, err := s.repos.Grants.GetByAccountID(ctx, account.ID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Credential{}, apperrors.NewNotFound("admin grant", nil)
		}
		return Credential{}, apperrors.NewInternalError(err)
	}
	if grant.Activated {
		return Credential{}, apperrors.NewConflict("grant already activated", nil)
	}
	if grant.TokenLive(s.now()) {
		return Credential{}, apperrors.NewConflict("a valid token already exists; wait for it to expire", nil)
	}

	cred, err := s.NewCredential()
	if err != nil {
		return Credential{}, apperrors.NewInternalError(err)
	}

	err = s.atomic.WithinTx(ctx, func(r *repository.Repos) error {
		grant.AccessToken = &cred.Token
		grant.TokenExpiresAt = &cred.ExpiresAt
		return r.Grants.Update(ctx, grant)
	})
	if err != nil {
		return Credential{}, apperrors.MapError(err)
	}

	// The token is already persisted; delivery failure is logged, not surfaced.
	s.publish(ctx, events.Event{
		Type:      events.EventAdminTokenReissued,
		AccountID: account.ID,
		ActorID:   account.ID,
		Payload: events.TokenIssuedPayload{
			RecipientEmail: account.Email,
			Role:           grant.Role,
			Token:          cred.Token,
			ExpiresAt:      cred.ExpiresAt,
			Reissued:       true,
		},
	})
	return cred, nil
}

// SetPassword completes onboarding for an activated grant by storing the
// account password and flipping the password-set flag.
func (s *ActivationService) SetPassword(ctx context.Context, accountID, password string) error {
	if err := auth.ValidatePassword(password); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}

	account, err := s.repos.Accounts.GetByID(ctx, accountID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("account", nil)
		}
		return apperrors.NewInternalError(err)
	}
	grant, err := s.repos.Grants.GetByAccountID(ctx, account.ID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("admin grant", nil)
		}
		return apperrors.NewInternalError(err)
	}
	if !grant.Activated {
		return apperrors.NewConflict("grant not activated", nil)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	err = s.atomic.WithinTx(ctx, func(r *repository.Repos) error {
		account.PasswordHash = hash
		if err := r.Accounts.Update(ctx, account); err != nil {
			return err
		}
		grant.PasswordSet = true
		return r.Grants.Update(ctx, grant)
	})
	if err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func (s *ActivationService) publish(ctx context.Context, event events.Event) {
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
