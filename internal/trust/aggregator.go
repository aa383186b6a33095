package trust

import (
	"github.com/sentinel-labs/sentinelx/internal/events"
)

// Per-signal penalties and per-family caps. Caps sum to 100, so only an
// identity misbehaving across all three engines can reach zero.
const (
	baseScore = 100.0

	penaltyHighLogin   = 8.0
	penaltyMediumLogin = 3.0
	loginCap           = 40.0

	penaltyRiskyContent    = 5.0
	penaltyContentOverride = 2.0
	contentCap             = 30.0

	penaltyBlockedTransfer  = 10.0
	penaltyTransferCooldown = 5.0
	transferCap             = 30.0
)

// Breakdown itemizes where trust was lost.
type Breakdown struct {
	LoginPenalty    float64 `json:"loginPenalty"`
	ContentPenalty  float64 `json:"contentPenalty"`
	TransferPenalty float64 `json:"transferPenalty"`
}

// Compute derives a trust score from an identity's recent events. Pure
// function of its inputs; adding events can only lower the result, never
// raise it.
func Compute(logins, content, transfers []*events.ScoredEvent) (float64, Breakdown) {
	var b Breakdown

	for _, e := range logins {
		switch e.Level {
		case events.LevelHigh:
			b.LoginPenalty += penaltyHighLogin
		case events.LevelMedium:
			b.LoginPenalty += penaltyMediumLogin
		}
	}
	if b.LoginPenalty > loginCap {
		b.LoginPenalty = loginCap
	}

	for _, e := range content {
		if e.Risky {
			b.ContentPenalty += penaltyRiskyContent
		}
		if e.Override {
			b.ContentPenalty += penaltyContentOverride
		}
	}
	if b.ContentPenalty > contentCap {
		b.ContentPenalty = contentCap
	}

	for _, e := range transfers {
		if e.Blocked {
			b.TransferPenalty += penaltyBlockedTransfer
		}
		if e.CooldownSet {
			b.TransferPenalty += penaltyTransferCooldown
		}
	}
	if b.TransferPenalty > transferCap {
		b.TransferPenalty = transferCap
	}

	score := baseScore - b.LoginPenalty - b.ContentPenalty - b.TransferPenalty
	if score < 0 {
		score = 0
	}
	return score, b
}
