package domain

import (
	"testing"
	"time"
)

func TestDurationUntil(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		duration SuspensionDuration
		want     time.Duration
	}{
		{Duration24Hours, 24 * time.Hour},
		{Duration3Days, 3 * 24 * time.Hour},
		{Duration7Days, 7 * 24 * time.Hour},
		{Duration30Days, 30 * 24 * time.Hour},
	}
	for _, tc := range cases {
		until, err := tc.duration.Until(now)
		if err != nil {
			t.Fatalf("Until(%s): %v", tc.duration, err)
		}
		if until == nil || !until.Equal(now.Add(tc.want)) {
			t.Errorf("Until(%s) = %v, want %v", tc.duration, until, now.Add(tc.want))
		}
	}
}

func TestDurationUntilIndefinite(t *testing.T) {
	until, err := DurationIndefinite.Until(time.Now())
	if err != nil {
		t.Fatalf("Until: %v", err)
	}
	if until != nil {
		t.Fatal("indefinite duration must have no end time")
	}
}

func TestDurationUntilUnknown(t *testing.T) {
	if _, err := SuspensionDuration("2_weeks").Until(time.Now()); err != ErrUnknownDuration {
		t.Fatalf("err = %v, want ErrUnknownDuration", err)
	}
}

func TestAppealProcessed(t *testing.T) {
	entry := SuspensionHistoryEntry{Action: ActionAppeal, Data: map[string]any{"processed": false}}
	if entry.AppealProcessed() {
		t.Fatal("unprocessed appeal reported as processed")
	}
	entry.Data["processed"] = true
	if !entry.AppealProcessed() {
		t.Fatal("processed appeal reported as unprocessed")
	}
	bare := SuspensionHistoryEntry{Action: ActionAppeal}
	if bare.AppealProcessed() {
		t.Fatal("appeal without data must count as unprocessed")
	}
}

func TestTokenLive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	token := "SETUP12345"
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	live := AdminGrant{AccessToken: &token, TokenExpiresAt: &future}
	if !live.TokenLive(now) {
		t.Fatal("unexpired token must be live")
	}
	expired := AdminGrant{AccessToken: &token, TokenExpiresAt: &past}
	if expired.TokenLive(now) {
		t.Fatal("expired token must not be live")
	}
	var bare AdminGrant
	if bare.TokenLive(now) {
		t.Fatal("missing token must not be live")
	}
}
