// Package loginrisk scores login attempts from behavioral history.
//
// Each attempt is compared against the identity's known devices, known
// countries, recent login rate, and habitual hours. Factors are graduated
// rather than binary, so an identity's third new device scores lower than
// its first. The scorer is deterministic: the same attempt against the
// same history always yields the same score.
package loginrisk

import (
	"context"
	"time"

	"github.com/sentinel-labs/sentinelx/internal/events"
)

// Recommended actions by risk level.
const (
	ActionAllow          = "allow"
	ActionStepUp         = "step_up_verification"
	ActionBlockAndReauth = "block_and_reauth"
)

// historyLimit bounds how many prior attempts feed a score.
const historyLimit = 100

// Attempt is one login attempt to be scored.
type Attempt struct {
	Identity    string    `json:"identity"`
	Fingerprint string    `json:"deviceFingerprint"`
	Country     string    `json:"country,omitempty"`
	At          time.Time `json:"timestamp"`
}

// Result is a scored attempt with its factor breakdown.
type Result struct {
	EventID     string          `json:"eventId"`
	Identity    string          `json:"identity"`
	Score       float64         `json:"score"`
	Level       events.Level    `json:"level"`
	Action      string          `json:"recommendedAction"`
	Factors     []events.Factor `json:"factors"`
	Explanation []string        `json:"explanation"`
	At          time.Time       `json:"timestamp"`
}

// IdentityStats summarizes an identity's recent scored logins.
type IdentityStats struct {
	Identity     string         `json:"identity"`
	Total        int            `json:"total"`
	ByLevel      map[string]int `json:"byLevel"`
	AverageScore float64        `json:"averageScore"`
	LastScoredAt time.Time      `json:"lastScoredAt,omitempty"`
}

// AttemptStore persists raw login attempts. The scorer reads history
// through it and records every scored attempt back.
type AttemptStore interface {
	// FetchRecent returns up to limit attempts for an identity, most
	// recent first. Unknown identities yield an empty slice.
	FetchRecent(ctx context.Context, identity string, limit int) ([]*Attempt, error)
	Append(ctx context.Context, attempt *Attempt) error
}
