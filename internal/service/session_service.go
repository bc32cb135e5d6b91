package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/listing-admin/internal/auth"
	"github.com/spec-kit/listing-admin/internal/config"
	"github.com/spec-kit/listing-admin/internal/domain"
	"github.com/spec-kit/listing-admin/internal/repository"
	apperrors "github.com/spec-kit/listing-admin/pkg/util"
)

// SessionService authenticates accounts and issues session tokens. The HTTP
// boundary uses it to resolve the acting account exactly once per request.
type SessionService struct {
	accounts repository.AccountRepository
	tokenMgr *auth.TokenManager
}

// NewSessionService builds the service.
func NewSessionService(cfg config.Config, accounts repository.AccountRepository) *SessionService {
	return &SessionService{
		accounts: accounts,
		tokenMgr: auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
	}
}

// Login authenticates by email and password and returns a signed session token.
// Suspended and deleted accounts are denied.
func (s *SessionService) Login(ctx context.Context, email, password string) (*domain.Account, string, time.Time, error) {
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	if account.Deleted {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if account.Suspended {
		return nil, "", time.Time{}, apperrors.NewForbidden("account suspended")
	}

	token, exp, err := s.tokenMgr.GenerateToken(account.ID, account.Role)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return account, token, exp, nil
}

// IssueSession signs a token for an already-authenticated account, used right
// after a successful activation redeem so the new admin can set a password.
func (s *SessionService) IssueSession(account *domain.Account) (string, time.Time, error) {
	return s.tokenMgr.GenerateToken(account.ID, account.Role)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *SessionService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
