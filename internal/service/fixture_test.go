package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/listing-admin/internal/config"
	"github.com/spec-kit/listing-admin/internal/domain"
	"github.com/spec-kit/listing-admin/internal/observability"
	apperrors "github.com/spec-kit/listing-admin/pkg/util"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testClock() time.Time { return testNow }

type fixture struct {
	st         *memStore
	dispatcher *captureDispatcher
	metrics    *observability.Metrics
	activation *ActivationService
	roles      *RoleService
	suspension *SuspensionService
}

func newFixture() *fixture {
	st := newMemStore(testClock)
	dispatcher := &captureDispatcher{}
	metrics := observability.NewMetrics()
	cfg := config.Config{
		Auth:       config.AuthConfig{JWTSecret: "secret", AccessTokenTTLMinutes: 30, BcryptCost: 4},
		Activation: config.ActivationConfig{TokenLength: 10, TokenTTLHours: 24},
	}

	repos := st.repos()
	atomic := &memAtomic{st: st}

	activation := NewActivationService(cfg, ActivationDependencies{
		Repos:      repos,
		Atomic:     atomic,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
	})
	activation.now = testClock

	roles := NewRoleService(RoleDependencies{
		Repos:      repos,
		Atomic:     atomic,
		Activation: activation,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
	})
	roles.now = testClock

	suspension := NewSuspensionService(SuspensionDependencies{
		Repos:      repos,
		Atomic:     atomic,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
		Metrics:    metrics,
	})
	suspension.now = testClock

	return &fixture{
		st:         st,
		dispatcher: dispatcher,
		metrics:    metrics,
		activation: activation,
		roles:      roles,
		suspension: suspension,
	}
}

func (f *fixture) seedAccount(handle, email string, role domain.Role, verified bool) *domain.Account {
	account := domain.Account{
		ID:        f.st.nextID("acc"),
		Handle:    handle,
		Email:     email,
		Role:      role,
		Verified:  verified,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	f.st.accounts[account.ID] = account
	return &account
}

func (f *fixture) seedGrant(accountID string, role domain.Role, token string, expiresAt time.Time) *domain.AdminGrant {
	grant := domain.AdminGrant{
		ID:        f.st.nextID("grant"),
		AccountID: accountID,
		Role:      role,
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	if token != "" {
		grant.AccessToken = &token
		grant.TokenExpiresAt = &expiresAt
	}
	f.st.grants[grant.ID] = grant
	return &grant
}

func (f *fixture) account(id string) domain.Account {
	return f.st.accounts[id]
}

func (f *fixture) grantByAccount(accountID string) (domain.AdminGrant, bool) {
	for _, g := range f.st.grants {
		if g.AccountID == accountID {
			return g, true
		}
	}
	return domain.AdminGrant{}, false
}

func statusOf(err error) int {
	if err == nil {
		return 0
	}
	return apperrors.ToDomainError(err).HTTPStatus
}
