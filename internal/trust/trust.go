// Package trust maintains the per-identity trust score and enforcement
// state machine.
//
// Trust starts at 100 and decays as the engines report risky logins,
// risky content, and blocked transfers; each signal family has a capped
// share of the total penalty so no single engine can zero an identity on
// its own. The score maps to an enforcement status that gates what the
// identity may do, with a sticky lock that holds until its cooldown
// expires regardless of score recovery.
package trust

import (
	"context"
	"time"

	"github.com/sentinel-labs/sentinelx/internal/pagination"
)

// Enforcement status values, ordered from least to most restrictive.
const (
	StatusActive         = "active"
	StatusStepUpRequired = "step_up_required"
	StatusRestricted     = "restricted"
	StatusLocked         = "locked"
)

// Action names accepted by CheckAction.
const (
	ActionLogin       = "login"
	ActionContentSend = "content_send"
	ActionTransfer    = "transfer"
	ActionRead        = "read"
)

// Score thresholds on the 0..100 trust scale.
const (
	ThresholdActive = 80
	ThresholdStepUp = 50
)

// LockCooldown is how long a lock holds once set.
const LockCooldown = 30 * time.Minute

// TrustState is the current standing of one identity.
type TrustState struct {
	Identity      string    `json:"identity"`
	TrustScore    float64   `json:"trustScore"`
	Status        string    `json:"status"`
	LockedUntil   time.Time `json:"lockedUntil,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	LastEvaluated time.Time `json:"lastEvaluated"`
}

// Decision is the outcome of an action gate check.
type Decision struct {
	Identity     string `json:"identity"`
	Action       string `json:"action"`
	Allowed      bool   `json:"allowed"`
	StepUp       bool   `json:"stepUpRequired,omitempty"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	RetryAfterMs int64  `json:"retryAfterMs,omitempty"`
}

// Store persists trust states.
type Store interface {
	// Get returns the state for an identity, or nil if never evaluated.
	Get(ctx context.Context, identity string) (*TrustState, error)
	Save(ctx context.Context, state *TrustState) error
	// List returns known states, most recently evaluated first. A non-nil
	// cursor resumes after the (last_evaluated, identity) position it encodes.
	List(ctx context.Context, before *pagination.Cursor, limit int) ([]*TrustState, error)
}
