package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/listing-admin/internal/domain"
	"github.com/spec-kit/listing-admin/internal/events"
)

func TestSuspendRestrictsAccount(t *testing.T) {
	f := newFixture()
	actor := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)
	target := f.seedAccount("u", "u@example.com", domain.RoleUser, true)

	suspension, err := f.suspension.Suspend(context.Background(), actor, target.ID, "spam", "abuse", domain.Duration7Days)
	if err != nil {
		t.Fatalf("Suspend: %v", err)
	}

	if want := testNow.Add(7 * 24 * time.Hour); suspension.SuspendedUntil == nil || !suspension.SuspendedUntil.Equal(want) {
		t.Fatalf("until = %v, want %v", suspension.SuspendedUntil, want)
	}

	stored := f.account(target.ID)
	if !stored.Suspended || stored.SuspensionReason == nil || *stored.SuspensionReason != "spam" {
		t.Fatalf("account after suspend = %+v, want suspended with reason", stored)
	}
	if stored.SuspendedBy == nil || *stored.SuspendedBy != actor.ID {
		t.Fatal("suspension must be attributed to the actor")
	}

	history, _ := f.st.repos().Suspensions.ListHistory(context.Background(), suspension.ID)
	if len(history) != 1 || history[0].Action != domain.ActionSuspension || history[0].Seq != 1 {
		t.Fatalf("history = %+v, want one suspension entry with seq 1", history)
	}
	if history[0].Data["category"] != "abuse" {
		t.Fatal("category must be recorded in the entry data")
	}
	if got := f.metrics.TransitionCount(string(domain.ActionSuspension)); got != 1 {
		t.Fatalf("transition count = %d, want 1", got)
	}
	if got := f.dispatcher.byType(events.EventAccountSuspended); len(got) != 1 {
		t.Fatalf("suspended events = %d, want 1", len(got))
	}
}

func TestSuspendIndefiniteHasNoEndTime(t *testing.T) {
	f := newFixture()
	actor := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)
	target := f.seedAccount("u", "u@example.com", domain.RoleUser, true)

	suspension, err := f.suspension.Suspend(context.Background(), actor, target.ID, "ban", "", domain.DurationIndefinite)
	if err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if suspension.SuspendedUntil != nil {
		t.Fatal("indefinite suspension must have no end time")
	}
}

func TestSuspendAgentHidesListings(t *testing.T) {
	f := newFixture()
	actor := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)
	target := f.seedAccount("agent", "agent@example.com", domain.RoleAgent, true)
	f.st.listings = append(f.st.listings, memListing{OwnerID: target.ID}, memListing{OwnerID: "someone-else"})

	if _, err := f.suspension.Suspend(context.Background(), actor, target.ID, "fraud", "", domain.Duration24Hours); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if !f.st.listings[0].Hidden {
		t.Fatal("the agent's listings must be hidden")
	}
	if f.st.listings[1].Hidden {
		t.Fatal("other owners' listings must stay visible")
	}
}

func TestSuspendAdminMirrorsGrant(t *testing.T) {
	f := newFixture()
	actor := f.seedAccount("root", "root@example.com", domain.RoleSuperAdmin, true)
	target := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)
	f.seedGrant(target.ID, domain.RoleAdmin, "", testNow)

	if _, err := f.suspension.Suspend(context.Background(), actor, target.ID, "abuse", "", domain.Duration3Days); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	grant, _ := f.grantByAccount(target.ID)
	if !grant.Suspended || grant.SuspendedAt == nil {
		t.Fatal("grant suspension mirror must be set")
	}
}

func TestSuspendAdminRequiresSuperAdmin(t *testing.T) {
	f := newFixture()
	actor := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)
	target := f.seedAccount("mod2", "mod2@example.com", domain.RoleAdmin, true)

	if _, err := f.suspension.Suspend(context.Background(), actor, target.ID, "x", "", domain.Duration24Hours); statusOf(err) != 403 {
		t.Fatalf("status = %d, want 403", statusOf(err))
	}
}

func TestSuspendRejectsSelf(t *testing.T) {
	f := newFixture()
	actor := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)

	if _, err := f.suspension.Suspend(context.Background(), actor, actor.ID, "x", "", domain.Duration24Hours); statusOf(err) != 403 {
		t.Fatalf("status = %d, want 403", statusOf(err))
	}
}

func TestSuspendConflictsWithActiveSuspension(t *testing.T) {
	f := newFixture()
	actor := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)
	target := f.seedAccount("u", "u@example.com", domain.RoleUser, true)

	if _, err := f.suspension.Suspend(context.Background(), actor, target.ID, "first", "", domain.Duration24Hours); err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if _, err := f.suspension.Suspend(context.Background(), actor, target.ID, "second", "", domain.Duration24Hours); statusOf(err) != 409 {
		t.Fatalf("status = %d, want 409", statusOf(err))
	}
}

func TestSuspendLostInsertRaceIsConflict(t *testing.T) {
	f := newFixture()
	actor := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)
	target := f.seedAccount("u", "u@example.com", domain.RoleUser, true)

	// A concurrent suspend commits between the active-suspension read and
	// the insert, so the insert hits the one-active-per-account index.
	f.st.failOn("suspensions.create", &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "suspensions_one_active_per_account",
	})

	_, err := f.suspension.Suspend(context.Background(), actor, target.ID, "x", "", domain.Duration24Hours)
	if statusOf(err) != 409 {
		t.Fatalf("status = %d, want 409", statusOf(err))
	}
	if f.account(target.ID).Suspended {
		t.Fatal("losing suspend must leave the account untouched")
	}
	if len(f.st.suspHistory) != 0 {
		t.Fatal("losing suspend must append no history")
	}
	if len(f.dispatcher.events) != 0 {
		t.Fatal("no events may be published for a losing suspend")
	}
}

func TestSuspendRollsBackOnListingFailure(t *testing.T) {
	f := newFixture()
	actor := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)
	target := f.seedAccount("agent", "agent@example.com", domain.RoleAgent, true)
	f.st.failOn("listings.hide", errors.New("storage offline"))

	if _, err := f.suspension.Suspend(context.Background(), actor, target.ID, "x", "", domain.Duration24Hours); err == nil {
		t.Fatal("expected failure")
	}
	if f.account(target.ID).Suspended {
		t.Fatal("failed suspend must leave the account unsuspended")
	}
	if len(f.st.suspensions) != 0 || len(f.st.suspHistory) != 0 {
		t.Fatal("failed suspend must persist nothing")
	}
	if len(f.dispatcher.events) != 0 {
		t.Fatal("no events may be published for a rolled-back suspend")
	}
}

func TestExtendOnlyByOriginalSuspender(t *testing.T) {
	f := newFixture()
	suspender := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)
	other := f.seedAccount("mod2", "mod2@example.com", domain.RoleAdmin, true)
	target := f.seedAccount("u", "u@example.com", domain.RoleUser, true)

	suspension, err := f.suspension.Suspend(context.Background(), suspender, target.ID, "spam", "", domain.Duration24Hours)
	if err != nil {
		t.Fatalf("Suspend: %v", err)
	}

	if _, err := f.suspension.Extend(context.Background(), other, suspension.ID, domain.Duration7Days, ""); statusOf(err) != 403 {
		t.Fatalf("status = %d, want 403", statusOf(err))
	}

	previousUntil := *suspension.SuspendedUntil
	extended, err := f.suspension.Extend(context.Background(), suspender, suspension.ID, domain.Duration7Days, "repeat offense")
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if want := testNow.Add(7 * 24 * time.Hour); !extended.SuspendedUntil.Equal(want) {
		t.Fatalf("until = %v, want %v", extended.SuspendedUntil, want)
	}

	history, _ := f.st.repos().Suspensions.ListHistory(context.Background(), suspension.ID)
	if len(history) != 2 || history[1].Action != domain.ActionExtension {
		t.Fatalf("history = %+v, want a second extension entry", history)
	}
	if history[1].Data["previous_until"] != previousUntil.UTC().Format(time.RFC3339) {
		t.Fatal("extension entry must preserve the prior end time")
	}
}

func TestLiftRestoresAccount(t *testing.T) {
	f := newFixture()
	suspender := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)
	target := f.seedAccount("agent", "agent@example.com", domain.RoleAgent, true)
	f.st.listings = append(f.st.listings, memListing{OwnerID: target.ID})

	suspension, err := f.suspension.Suspend(context.Background(), suspender, target.ID, "spam", "", domain.Duration24Hours)
	if err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if err := f.suspension.Lift(context.Background(), suspender, suspension.ID, "resolved"); err != nil {
		t.Fatalf("Lift: %v", err)
	}

	stored := f.account(target.ID)
	if stored.Suspended || stored.SuspensionReason != nil || stored.SuspendedBy != nil {
		t.Fatalf("account after lift = %+v, want cleared suspension fields", stored)
	}
	if f.st.listings[0].Hidden {
		t.Fatal("lift must un-hide the agent's listings")
	}
	if f.st.suspensions[suspension.ID].Active {
		t.Fatal("suspension record must be deactivated")
	}
	history, _ := f.st.repos().Suspensions.ListHistory(context.Background(), suspension.ID)
	if len(history) != 2 || history[1].Action != domain.ActionLift {
		t.Fatalf("history = %+v, want a lift entry", history)
	}
}

func TestLiftSuperAdminOverrideForAdminSubject(t *testing.T) {
	f := newFixture()
	suspender := f.seedAccount("root", "root@example.com", domain.RoleSuperAdmin, true)
	override := f.seedAccount("root2", "root2@example.com", domain.RoleSuperAdmin, true)
	target := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)

	suspension, err := f.suspension.Suspend(context.Background(), suspender, target.ID, "abuse", "", domain.Duration24Hours)
	if err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if err := f.suspension.Lift(context.Background(), override, suspension.ID, "overturned"); err != nil {
		t.Fatalf("Lift via override: %v", err)
	}
}

func TestLiftDeniedToOtherAdminsForUserSubject(t *testing.T) {
	f := newFixture()
	suspender := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)
	other := f.seedAccount("root", "root@example.com", domain.RoleSuperAdmin, true)
	target := f.seedAccount("u", "u@example.com", domain.RoleUser, true)

	suspension, err := f.suspension.Suspend(context.Background(), suspender, target.ID, "spam", "", domain.Duration24Hours)
	if err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	if err := f.suspension.Lift(context.Background(), other, suspension.ID, ""); statusOf(err) != 403 {
		t.Fatalf("status = %d, want 403", statusOf(err))
	}
}

func TestFileAppealOncePerSuspension(t *testing.T) {
	f := newFixture()
	suspender := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)
	target := f.seedAccount("u", "u@example.com", domain.RoleUser, true)

	suspension, err := f.suspension.Suspend(context.Background(), suspender, target.ID, "spam", "", domain.Duration7Days)
	if err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	subject := f.account(target.ID)

	entry, err := f.suspension.FileAppeal(context.Background(), &subject, "I was hacked")
	if err != nil {
		t.Fatalf("FileAppeal: %v", err)
	}
	if entry.SuspensionID != suspension.ID || entry.Action != domain.ActionAppeal {
		t.Fatalf("entry = %+v, want an appeal on the active suspension", entry)
	}
	if entry.Data["processed"] != false {
		t.Fatal("new appeal must start unprocessed")
	}
	if got := f.dispatcher.byType(events.EventAppealFiled); len(got) != 1 {
		t.Fatalf("appeal filed events = %d, want 1", len(got))
	}

	if _, err := f.suspension.FileAppeal(context.Background(), &subject, "again"); statusOf(err) != 409 {
		t.Fatalf("second appeal status = %d, want 409", statusOf(err))
	}
}

func TestFileAppealLostInsertRaceIsConflict(t *testing.T) {
	f := newFixture()
	suspender := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)
	target := f.seedAccount("u", "u@example.com", domain.RoleUser, true)

	suspension, err := f.suspension.Suspend(context.Background(), suspender, target.ID, "spam", "", domain.Duration7Days)
	if err != nil {
		t.Fatalf("Suspend: %v", err)
	}

	// A concurrent appeal commits between the duplicate check and the
	// append, so the append hits the one-appeal-per-suspension index.
	f.st.failOn("suspensions.history", &pgconn.PgError{
		Code:           "23505",
		ConstraintName: "suspension_history_one_appeal",
	})

	subject := f.account(target.ID)
	if _, err := f.suspension.FileAppeal(context.Background(), &subject, "please"); statusOf(err) != 409 {
		t.Fatalf("status = %d, want 409", statusOf(err))
	}
	history, _ := f.st.repos().Suspensions.ListHistory(context.Background(), suspension.ID)
	if len(history) != 1 {
		t.Fatal("losing appeal must not append an entry")
	}
	if got := f.dispatcher.byType(events.EventAppealFiled); len(got) != 0 {
		t.Fatalf("appeal filed events = %d, want 0", len(got))
	}
}

func TestFileAppealRateLimited(t *testing.T) {
	f := newFixture()
	suspender := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)
	target := f.seedAccount("u", "u@example.com", domain.RoleUser, true)

	suspension, err := f.suspension.Suspend(context.Background(), suspender, target.ID, "spam", "", domain.Duration7Days)
	if err != nil {
		t.Fatalf("Suspend: %v", err)
	}

	// Two recent appeal entries on earlier suspensions of the same account.
	for i := 0; i < 2; i++ {
		old := domain.Suspension{ID: f.st.nextID("susp"), AccountID: target.ID}
		f.st.suspensions[old.ID] = old
		f.st.suspHistory = append(f.st.suspHistory, domain.SuspensionHistoryEntry{
			ID:           f.st.nextID("shist"),
			SuspensionID: old.ID,
			Seq:          1,
			Action:       domain.ActionAppeal,
			ActorID:      target.ID,
			CreatedAt:    testNow.Add(-time.Hour),
		})
	}

	subject := f.account(target.ID)
	if _, err := f.suspension.FileAppeal(context.Background(), &subject, "please"); statusOf(err) != 429 {
		t.Fatalf("status = %d, want 429", statusOf(err))
	}
	history, _ := f.st.repos().Suspensions.ListHistory(context.Background(), suspension.ID)
	if len(history) != 1 {
		t.Fatal("rate-limited appeal must not append an entry")
	}
}

func TestResolveAppealApproveLiftsSuspension(t *testing.T) {
	f := newFixture()
	suspender := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)
	target := f.seedAccount("u", "u@example.com", domain.RoleUser, true)

	suspension, err := f.suspension.Suspend(context.Background(), suspender, target.ID, "spam", "", domain.Duration7Days)
	if err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	subject := f.account(target.ID)
	entry, err := f.suspension.FileAppeal(context.Background(), &subject, "mistake")
	if err != nil {
		t.Fatalf("FileAppeal: %v", err)
	}

	if err := f.suspension.ResolveAppeal(context.Background(), suspender, suspension.ID, entry.ID, "approve", "verified claim"); err != nil {
		t.Fatalf("ResolveAppeal: %v", err)
	}

	if f.st.suspensions[suspension.ID].Active {
		t.Fatal("approval must lift the suspension")
	}
	if f.account(target.ID).Suspended {
		t.Fatal("approval must restore the account")
	}
	processed, _ := f.st.repos().Suspensions.GetHistoryEntry(context.Background(), entry.ID)
	if processed.Data["processed"] != true || processed.Data["decision"] != "approve" {
		t.Fatalf("entry data = %+v, want processed approval marker", processed.Data)
	}

	// A decided appeal cannot be decided again.
	if err := f.suspension.ResolveAppeal(context.Background(), suspender, suspension.ID, entry.ID, "reject", ""); statusOf(err) != 409 {
		t.Fatalf("re-decide status = %d, want 409", statusOf(err))
	}
}

func TestResolveAppealRejectKeepsSuspension(t *testing.T) {
	f := newFixture()
	suspender := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)
	target := f.seedAccount("u", "u@example.com", domain.RoleUser, true)

	suspension, err := f.suspension.Suspend(context.Background(), suspender, target.ID, "spam", "", domain.Duration7Days)
	if err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	subject := f.account(target.ID)
	entry, err := f.suspension.FileAppeal(context.Background(), &subject, "mistake")
	if err != nil {
		t.Fatalf("FileAppeal: %v", err)
	}

	if err := f.suspension.ResolveAppeal(context.Background(), suspender, suspension.ID, entry.ID, "reject", "claim unsupported"); err != nil {
		t.Fatalf("ResolveAppeal: %v", err)
	}

	if !f.st.suspensions[suspension.ID].Active {
		t.Fatal("rejection must keep the suspension active")
	}
	history, _ := f.st.repos().Suspensions.ListHistory(context.Background(), suspension.ID)
	last := history[len(history)-1]
	if last.Action != domain.ActionAppealRejected {
		t.Fatalf("last entry = %s, want appeal_rejected", last.Action)
	}
	processed, _ := f.st.repos().Suspensions.GetHistoryEntry(context.Background(), entry.ID)
	if processed.Data["processed"] != true || processed.Data["decision"] != "reject" {
		t.Fatalf("entry data = %+v, want processed rejection marker", processed.Data)
	}
}

func TestResolveAppealOnlyByOriginalSuspender(t *testing.T) {
	f := newFixture()
	suspender := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)
	other := f.seedAccount("mod2", "mod2@example.com", domain.RoleAdmin, true)
	target := f.seedAccount("u", "u@example.com", domain.RoleUser, true)

	suspension, err := f.suspension.Suspend(context.Background(), suspender, target.ID, "spam", "", domain.Duration7Days)
	if err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	subject := f.account(target.ID)
	entry, err := f.suspension.FileAppeal(context.Background(), &subject, "mistake")
	if err != nil {
		t.Fatalf("FileAppeal: %v", err)
	}

	if err := f.suspension.ResolveAppeal(context.Background(), other, suspension.ID, entry.ID, "approve", ""); statusOf(err) != 403 {
		t.Fatalf("status = %d, want 403", statusOf(err))
	}
}

func TestResolveAppealConflictsAfterLift(t *testing.T) {
	f := newFixture()
	suspender := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)
	target := f.seedAccount("u", "u@example.com", domain.RoleUser, true)

	suspension, err := f.suspension.Suspend(context.Background(), suspender, target.ID, "spam", "", domain.Duration7Days)
	if err != nil {
		t.Fatalf("Suspend: %v", err)
	}
	subject := f.account(target.ID)
	entry, err := f.suspension.FileAppeal(context.Background(), &subject, "mistake")
	if err != nil {
		t.Fatalf("FileAppeal: %v", err)
	}
	if err := f.suspension.Lift(context.Background(), suspender, suspension.ID, "resolved offline"); err != nil {
		t.Fatalf("Lift: %v", err)
	}

	if err := f.suspension.ResolveAppeal(context.Background(), suspender, suspension.ID, entry.ID, "approve", ""); statusOf(err) != 409 {
		t.Fatalf("status = %d, want 409", statusOf(err))
	}

	processed, _ := f.st.repos().Suspensions.GetHistoryEntry(context.Background(), entry.ID)
	if processed.AppealProcessed() {
		t.Fatal("appeal on a lifted suspension must stay unprocessed")
	}
	history, _ := f.st.repos().Suspensions.ListHistory(context.Background(), suspension.ID)
	if len(history) != 3 {
		t.Fatalf("history entries = %d, want 3 (suspension, appeal, lift)", len(history))
	}
}

func TestSweepExpiredLiftsElapsedSuspensions(t *testing.T) {
	f := newFixture()
	suspender := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)
	target := f.seedAccount("u", "u@example.com", domain.RoleUser, true)

	suspension, err := f.suspension.Suspend(context.Background(), suspender, target.ID, "spam", "", domain.Duration24Hours)
	if err != nil {
		t.Fatalf("Suspend: %v", err)
	}

	// Move the clock past the end time.
	f.suspension.now = func() time.Time { return testNow.Add(25 * time.Hour) }

	outcomes, err := f.suspension.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Status != "lifted" {
		t.Fatalf("outcomes = %+v, want one lifted", outcomes)
	}
	if f.st.suspensions[suspension.ID].Active {
		t.Fatal("expired suspension must be deactivated")
	}

	history, _ := f.st.repos().Suspensions.ListHistory(context.Background(), suspension.ID)
	last := history[len(history)-1]
	if last.Action != domain.ActionAutoLift || last.ActorID != domain.SystemActorID {
		t.Fatalf("last entry = %+v, want auto_lift by the system identity", last)
	}
	got := f.dispatcher.byType(events.EventSuspensionLifted)
	if len(got) != 1 || !got[0].Payload.(events.LiftedPayload).Auto {
		t.Fatal("auto-lift must publish a lifted event flagged auto")
	}
}

func TestSweepIsolatesPerRecordFailures(t *testing.T) {
	f := newFixture()
	suspender := f.seedAccount("mod", "mod@example.com", domain.RoleAdmin, true)
	target := f.seedAccount("u", "u@example.com", domain.RoleUser, true)

	healthy, err := f.suspension.Suspend(context.Background(), suspender, target.ID, "spam", "", domain.Duration24Hours)
	if err != nil {
		t.Fatalf("Suspend: %v", err)
	}

	// An expired record pointing at a vanished account fails its lift.
	until := testNow.Add(time.Hour)
	orphan := domain.Suspension{ID: f.st.nextID("susp"), AccountID: "gone", Active: true, SuspendedUntil: &until}
	f.st.suspensions[orphan.ID] = orphan

	f.suspension.now = func() time.Time { return testNow.Add(25 * time.Hour) }

	outcomes, err := f.suspension.SweepExpired(context.Background())
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d, want 2", len(outcomes))
	}
	byID := map[string]SweepOutcome{}
	for _, o := range outcomes {
		byID[o.SuspensionID] = o
	}
	if byID[healthy.ID].Status != "lifted" {
		t.Fatalf("healthy outcome = %+v, want lifted", byID[healthy.ID])
	}
	if byID[orphan.ID].Status != "failed" || byID[orphan.ID].Error == "" {
		t.Fatalf("orphan outcome = %+v, want failed with error", byID[orphan.ID])
	}
	if f.st.suspensions[healthy.ID].Active {
		t.Fatal("the failing record must not block the healthy lift")
	}
}
