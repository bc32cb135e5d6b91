package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/listing-admin/internal/domain"
	"github.com/spec-kit/listing-admin/internal/events"
	"github.com/spec-kit/listing-admin/internal/repository"
)

// memStore is an in-memory stand-in for the Postgres repositories. Reads hand
// out copies; only Create/Update calls change stored state, mirroring how the
// SQL layer behaves.
type memStore struct {
	mu            sync.Mutex
	accounts      map[string]domain.Account
	grants        map[string]domain.AdminGrant
	suspensions   map[string]domain.Suspension
	grantHistory  []domain.AdminHistoryEntry
	suspHistory   []domain.SuspensionHistoryEntry
	notifications []domain.Notification
	listings      []memListing
	failures      map[string]error
	idSeq         int
	clock         func() time.Time
}

type memListing struct {
	OwnerID  string
	Hidden   bool
	AssetKey *string
}

func newMemStore(clock func() time.Time) *memStore {
	return &memStore{
		accounts:    map[string]domain.Account{},
		grants:      map[string]domain.AdminGrant{},
		suspensions: map[string]domain.Suspension{},
		failures:    map[string]error{},
		clock:       clock,
	}
}

func (st *memStore) nextID(prefix string) string {
	st.idSeq++
	return fmt.Sprintf("%s-%d", prefix, st.idSeq)
}

// failOn makes the named operation return err until cleared.
func (st *memStore) failOn(op string, err error) {
	st.failures[op] = err
}

func (st *memStore) check(op string) error {
	return st.failures[op]
}

func (st *memStore) repos() *repository.Repos {
	return &repository.Repos{
		Accounts:      &memAccounts{st},
		Grants:        &memGrants{st},
		Suspensions:   &memSuspensions{st},
		Notifications: &memNotifications{st},
		Listings:      &memListings{st},
	}
}

func (st *memStore) snapshot() *memStore {
	st.mu.Lock()
	defer st.mu.Unlock()
	snap := &memStore{
		accounts:      make(map[string]domain.Account, len(st.accounts)),
		grants:        make(map[string]domain.AdminGrant, len(st.grants)),
		suspensions:   make(map[string]domain.Suspension, len(st.suspensions)),
		grantHistory:  append([]domain.AdminHistoryEntry(nil), st.grantHistory...),
		suspHistory:   append([]domain.SuspensionHistoryEntry(nil), st.suspHistory...),
		notifications: append([]domain.Notification(nil), st.notifications...),
		listings:      append([]memListing(nil), st.listings...),
		idSeq:         st.idSeq,
	}
	for k, v := range st.accounts {
		snap.accounts[k] = v
	}
	for k, v := range st.grants {
		snap.grants[k] = v
	}
	for k, v := range st.suspensions {
		snap.suspensions[k] = v
	}
	return snap
}

func (st *memStore) restore(snap *memStore) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.accounts = snap.accounts
	st.grants = snap.grants
	st.suspensions = snap.suspensions
	st.grantHistory = snap.grantHistory
	st.suspHistory = snap.suspHistory
	st.notifications = snap.notifications
	st.listings = snap.listings
	st.idSeq = snap.idSeq
}

// memAtomic mimics transactional semantics over the store: a closure error
// restores the pre-closure state.
type memAtomic struct {
	st *memStore
}

func (a *memAtomic) WithinTx(_ context.Context, fn func(r *repository.Repos) error) error {
	snap := a.st.snapshot()
	if err := fn(a.st.repos()); err != nil {
		a.st.restore(snap)
		return err
	}
	return nil
}

type memAccounts struct{ st *memStore }

func (r *memAccounts) Create(_ context.Context, account *domain.Account) error {
	if err := r.st.check("accounts.create"); err != nil {
		return err
	}
	account.ID = r.st.nextID("acc")
	account.CreatedAt = r.st.clock()
	account.UpdatedAt = account.CreatedAt
	r.st.accounts[account.ID] = *account
	return nil
}

func (r *memAccounts) Update(_ context.Context, account *domain.Account) error {
	if err := r.st.check("accounts.update"); err != nil {
		return err
	}
	if _, ok := r.st.accounts[account.ID]; !ok {
		return pgx.ErrNoRows
	}
	account.UpdatedAt = r.st.clock()
	r.st.accounts[account.ID] = *account
	return nil
}

func (r *memAccounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	if err := r.st.check("accounts.get"); err != nil {
		return nil, err
	}
	account, ok := r.st.accounts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &account, nil
}

func (r *memAccounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	for _, account := range r.st.accounts {
		if strings.EqualFold(account.Email, email) {
			a := account
			return &a, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memAccounts) HardDelete(_ context.Context, id string) error {
	if err := r.st.check("accounts.delete"); err != nil {
		return err
	}
	if _, ok := r.st.accounts[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.st.accounts, id)
	return nil
}

type memGrants struct{ st *memStore }

func (r *memGrants) Create(_ context.Context, grant *domain.AdminGrant) error {
	if err := r.st.check("grants.create"); err != nil {
		return err
	}
	for _, existing := range r.st.grants {
		if existing.AccountID == grant.AccountID {
			return &pgconn.PgError{Code: "23505", ConstraintName: "admin_grants_account_id_key"}
		}
	}
	grant.ID = r.st.nextID("grant")
	grant.CreatedAt = r.st.clock()
	grant.UpdatedAt = grant.CreatedAt
	r.st.grants[grant.ID] = *grant
	return nil
}

func (r *memGrants) Update(_ context.Context, grant *domain.AdminGrant) error {
	if err := r.st.check("grants.update"); err != nil {
		return err
	}
	if _, ok := r.st.grants[grant.ID]; !ok {
		return pgx.ErrNoRows
	}
	grant.UpdatedAt = r.st.clock()
	r.st.grants[grant.ID] = *grant
	return nil
}

func (r *memGrants) GetByID(_ context.Context, id string) (*domain.AdminGrant, error) {
	grant, ok := r.st.grants[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &grant, nil
}

func (r *memGrants) GetByAccountID(_ context.Context, accountID string) (*domain.AdminGrant, error) {
	for _, grant := range r.st.grants {
		if grant.AccountID == accountID {
			g := grant
			return &g, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memGrants) Delete(_ context.Context, id string) error {
	if err := r.st.check("grants.delete"); err != nil {
		return err
	}
	if _, ok := r.st.grants[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.st.grants, id)
	return nil
}

func (r *memGrants) AppendHistory(_ context.Context, entry *domain.AdminHistoryEntry) error {
	if err := r.st.check("grants.history"); err != nil {
		return err
	}
	seq := 0
	for _, e := range r.st.grantHistory {
		if e.GrantID == entry.GrantID && e.Seq > seq {
			seq = e.Seq
		}
	}
	entry.ID = r.st.nextID("ghist")
	entry.Seq = seq + 1
	entry.ChangedAt = r.st.clock()
	r.st.grantHistory = append(r.st.grantHistory, *entry)
	return nil
}

func (r *memGrants) ListHistory(_ context.Context, grantID string) ([]domain.AdminHistoryEntry, error) {
	var out []domain.AdminHistoryEntry
	for _, e := range r.st.grantHistory {
		if e.GrantID == grantID {
			out = append(out, e)
		}
	}
	return out, nil
}

type memSuspensions struct{ st *memStore }

func (r *memSuspensions) Create(_ context.Context, suspension *domain.Suspension) error {
	if err := r.st.check("suspensions.create"); err != nil {
		return err
	}
	if suspension.Active {
		for _, existing := range r.st.suspensions {
			if existing.AccountID == suspension.AccountID && existing.Active {
				return &pgconn.PgError{Code: "23505", ConstraintName: "suspensions_one_active_per_account"}
			}
		}
	}
	suspension.ID = r.st.nextID("susp")
	suspension.CreatedAt = r.st.clock()
	suspension.UpdatedAt = suspension.CreatedAt
	r.st.suspensions[suspension.ID] = *suspension
	return nil
}

func (r *memSuspensions) Update(_ context.Context, suspension *domain.Suspension) error {
	if err := r.st.check("suspensions.update"); err != nil {
		return err
	}
	if _, ok := r.st.suspensions[suspension.ID]; !ok {
		return pgx.ErrNoRows
	}
	suspension.UpdatedAt = r.st.clock()
	r.st.suspensions[suspension.ID] = *suspension
	return nil
}

func (r *memSuspensions) GetByID(_ context.Context, id string) (*domain.Suspension, error) {
	suspension, ok := r.st.suspensions[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &suspension, nil
}

func (r *memSuspensions) GetActiveByAccount(_ context.Context, accountID string) (*domain.Suspension, error) {
	for _, suspension := range r.st.suspensions {
		if suspension.AccountID == accountID && suspension.Active {
			s := suspension
			return &s, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memSuspensions) ListExpiredActive(_ context.Context, now time.Time) ([]domain.Suspension, error) {
	var out []domain.Suspension
	for _, suspension := range r.st.suspensions {
		if suspension.Active && suspension.SuspendedUntil != nil && !suspension.SuspendedUntil.After(now) {
			out = append(out, suspension)
		}
	}
	return out, nil
}

func (r *memSuspensions) AppendHistory(_ context.Context, entry *domain.SuspensionHistoryEntry) error {
	if err := r.st.check("suspensions.history"); err != nil {
		return err
	}
	if entry.Action == domain.ActionAppeal {
		for _, e := range r.st.suspHistory {
			if e.SuspensionID == entry.SuspensionID && e.Action == domain.ActionAppeal {
				return &pgconn.PgError{Code: "23505", ConstraintName: "suspension_history_one_appeal"}
			}
		}
	}
	seq := 0
	for _, e := range r.st.suspHistory {
		if e.SuspensionID == entry.SuspensionID && e.Seq > seq {
			seq = e.Seq
		}
	}
	entry.ID = r.st.nextID("shist")
	entry.Seq = seq + 1
	entry.CreatedAt = r.st.clock()
	r.st.suspHistory = append(r.st.suspHistory, *entry)
	return nil
}

func (r *memSuspensions) ListHistory(_ context.Context, suspensionID string) ([]domain.SuspensionHistoryEntry, error) {
	var out []domain.SuspensionHistoryEntry
	for _, e := range r.st.suspHistory {
		if e.SuspensionID == suspensionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memSuspensions) GetHistoryEntry(_ context.Context, entryID string) (*domain.SuspensionHistoryEntry, error) {
	for _, e := range r.st.suspHistory {
		if e.ID == entryID {
			entry := e
			return &entry, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *memSuspensions) CountAppealsByAccountSince(_ context.Context, accountID string, since time.Time) (int, error) {
	count := 0
	for _, e := range r.st.suspHistory {
		if e.Action != domain.ActionAppeal || e.CreatedAt.Before(since) {
			continue
		}
		if s, ok := r.st.suspensions[e.SuspensionID]; ok && s.AccountID == accountID {
			count++
		}
	}
	return count, nil
}

func (r *memSuspensions) MarkAppealProcessed(_ context.Context, entryID string, data map[string]any) error {
	if err := r.st.check("suspensions.mark"); err != nil {
		return err
	}
	for i, e := range r.st.suspHistory {
		if e.ID == entryID && e.Action == domain.ActionAppeal {
			merged := map[string]any{}
			for k, v := range e.Data {
				merged[k] = v
			}
			for k, v := range data {
				merged[k] = v
			}
			r.st.suspHistory[i].Data = merged
			return nil
		}
	}
	return pgx.ErrNoRows
}

type memNotifications struct{ st *memStore }

func (r *memNotifications) Create(_ context.Context, notification *domain.Notification) error {
	if err := r.st.check("notifications.create"); err != nil {
		return err
	}
	notification.ID = r.st.nextID("notif")
	notification.CreatedAt = r.st.clock()
	r.st.notifications = append(r.st.notifications, *notification)
	return nil
}

func (r *memNotifications) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]domain.Notification, error) {
	var out []domain.Notification
	for _, n := range r.st.notifications {
		if n.AccountID == accountID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *memNotifications) DeleteByAccount(_ context.Context, accountID string) error {
	if err := r.st.check("notifications.delete"); err != nil {
		return err
	}
	kept := r.st.notifications[:0]
	for _, n := range r.st.notifications {
		if n.AccountID != accountID {
			kept = append(kept, n)
		}
	}
	r.st.notifications = kept
	return nil
}

type memListings struct{ st *memStore }

func (r *memListings) SetHiddenByOwner(_ context.Context, ownerAccountID string, hidden bool) error {
	if err := r.st.check("listings.hide"); err != nil {
		return err
	}
	for i := range r.st.listings {
		if r.st.listings[i].OwnerID == ownerAccountID {
			r.st.listings[i].Hidden = hidden
		}
	}
	return nil
}

func (r *memListings) ListAssetKeysByOwner(_ context.Context, ownerAccountID string) ([]string, error) {
	var keys []string
	for _, l := range r.st.listings {
		if l.OwnerID == ownerAccountID && l.AssetKey != nil {
			keys = append(keys, *l.AssetKey)
		}
	}
	return keys, nil
}

func (r *memListings) DeleteByOwner(_ context.Context, ownerAccountID string) error {
	if err := r.st.check("listings.delete"); err != nil {
		return err
	}
	kept := r.st.listings[:0]
	for _, l := range r.st.listings {
		if l.OwnerID != ownerAccountID {
			kept = append(kept, l)
		}
	}
	r.st.listings = kept
	return nil
}

// captureDispatcher records published events in order.
type captureDispatcher struct {
	events []events.Event
}

func (d *captureDispatcher) Publish(_ context.Context, event events.Event) error {
	d.events = append(d.events, event)
	return nil
}

func (d *captureDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *captureDispatcher) byType(t events.EventType) []events.Event {
	var out []events.Event
	for _, e := range d.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
