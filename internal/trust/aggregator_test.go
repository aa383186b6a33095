package trust

import (
	"testing"

	"github.com/sentinel-labs/sentinelx/internal/events"
)

func loginEvents(level events.Level, n int) []*events.ScoredEvent {
	list := make([]*events.ScoredEvent, n)
	for i := range list {
		list[i] = &events.ScoredEvent{Kind: events.KindLogin, Level: level}
	}
	return list
}

func contentEvents(risky, override bool, n int) []*events.ScoredEvent {
	list := make([]*events.ScoredEvent, n)
	for i := range list {
		list[i] = &events.ScoredEvent{Kind: events.KindContent, Risky: risky, Override: override}
	}
	return list
}

func transferEvents(blocked, cooldown bool, n int) []*events.ScoredEvent {
	list := make([]*events.ScoredEvent, n)
	for i := range list {
		list[i] = &events.ScoredEvent{Kind: events.KindTransfer, Blocked: blocked, CooldownSet: cooldown}
	}
	return list
}

func TestNoEventsFullTrust(t *testing.T) {
	score, breakdown := Compute(nil, nil, nil)
	if score != 100 {
		t.Errorf("expected 100, got %f", score)
	}
	if breakdown.LoginPenalty != 0 || breakdown.ContentPenalty != 0 || breakdown.TransferPenalty != 0 {
		t.Errorf("unexpected penalties: %+v", breakdown)
	}
}

func TestLoginPenalties(t *testing.T) {
	logins := append(loginEvents(events.LevelHigh, 2), loginEvents(events.LevelMedium, 1)...)
	score, breakdown := Compute(logins, nil, nil)

	if breakdown.LoginPenalty != 2*penaltyHighLogin+penaltyMediumLogin {
		t.Errorf("expected penalty 19, got %f", breakdown.LoginPenalty)
	}
	if score != 100-19 {
		t.Errorf("expected 81, got %f", score)
	}
}

func TestLowLevelLoginsAreFree(t *testing.T) {
	score, _ := Compute(loginEvents(events.LevelLow, 50), nil, nil)
	if score != 100 {
		t.Errorf("low-level logins penalized: %f", score)
	}
}

func TestLoginCap(t *testing.T) {
	_, breakdown := Compute(loginEvents(events.LevelHigh, 10), nil, nil)
	if breakdown.LoginPenalty != loginCap {
		t.Errorf("expected cap %f, got %f", loginCap, breakdown.LoginPenalty)
	}
}

func TestContentPenalties(t *testing.T) {
	content := append(contentEvents(true, false, 3), contentEvents(true, true, 1)...)
	_, breakdown := Compute(nil, content, nil)

	// 4 risky + 1 override.
	want := 4*penaltyRiskyContent + penaltyContentOverride
	if breakdown.ContentPenalty != want {
		t.Errorf("expected %f, got %f", want, breakdown.ContentPenalty)
	}
}

func TestContentCap(t *testing.T) {
	_, breakdown := Compute(nil, contentEvents(true, true, 20), nil)
	if breakdown.ContentPenalty != contentCap {
		t.Errorf("expected cap %f, got %f", contentCap, breakdown.ContentPenalty)
	}
}

func TestTransferPenalties(t *testing.T) {
	transfers := append(transferEvents(true, true, 1), transferEvents(false, false, 5)...)
	_, breakdown := Compute(nil, nil, transfers)

	want := penaltyBlockedTransfer + penaltyTransferCooldown
	if breakdown.TransferPenalty != want {
		t.Errorf("expected %f, got %f", want, breakdown.TransferPenalty)
	}
}

func TestTransferCap(t *testing.T) {
	_, breakdown := Compute(nil, nil, transferEvents(true, true, 10))
	if breakdown.TransferPenalty != transferCap {
		t.Errorf("expected cap %f, got %f", transferCap, breakdown.TransferPenalty)
	}
}

func TestAllFamiliesMaxedReachZero(t *testing.T) {
	score, _ := Compute(
		loginEvents(events.LevelHigh, 10),
		contentEvents(true, true, 20),
		transferEvents(true, true, 10),
	)
	if score != 0 {
		t.Errorf("expected 0, got %f", score)
	}
}

func TestSingleFamilyCannotZeroTrust(t *testing.T) {
	score, _ := Compute(loginEvents(events.LevelHigh, 100), nil, nil)
	if score != 100-loginCap {
		t.Errorf("one family zeroed trust: %f", score)
	}
}
