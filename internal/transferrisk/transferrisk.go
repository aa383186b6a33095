// Package transferrisk scores proposed ETH transfers before execution.
//
// A transfer is judged against the sender's behavioral history: how far
// the amount deviates from their average, how fast they are transferring,
// whether the recipient is new, and whether surrounding chat context
// carries urgency or pressure language. High scores block the transfer
// and place the sender under a short cooldown during which every further
// attempt scores high.
package transferrisk

import (
	"context"
	"time"

	"github.com/sentinel-labs/sentinelx/internal/events"
)

// Verdicts by risk level.
const (
	VerdictAllow = "allow"
	VerdictWarn  = "warn"
	VerdictBlock = "block"
)

// historyLimit bounds how many prior transfers feed a score.
const historyLimit = 50

// CooldownDuration is how long a block keeps the sender throttled.
const CooldownDuration = 10 * time.Minute

// Request is a proposed transfer to be evaluated.
type Request struct {
	Sender      string  `json:"sender"`
	Recipient   string  `json:"recipient"`
	AmountETH   float64 `json:"amountEth"`
	ChatContext string  `json:"chatContext,omitempty"`
}

// Transfer is one recorded transfer evaluation.
type Transfer struct {
	Sender        string    `json:"sender"`
	Recipient     string    `json:"recipient"`
	AmountETH     float64   `json:"amountEth"`
	RiskScore     float64   `json:"riskScore"`
	Level         string    `json:"level"`
	Blocked       bool      `json:"blocked"`
	CooldownUntil time.Time `json:"cooldownUntil,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Result is a scored transfer with verdict and factor breakdown.
// DisplayScore is the user-facing safety score: 100 means no risk.
type Result struct {
	EventID      string          `json:"eventId"`
	Sender       string          `json:"sender"`
	Recipient    string          `json:"recipient"`
	AmountETH    float64         `json:"amountEth"`
	Score        float64         `json:"riskScore"`
	Level        events.Level    `json:"level"`
	Verdict      string          `json:"verdict"`
	DisplayScore int             `json:"displayScore"`
	InCooldown   bool            `json:"inCooldown"`
	Factors      []events.Factor `json:"factors"`
	Explanation  []string        `json:"explanation"`
	At           time.Time       `json:"timestamp"`
}

// TransferStore persists transfer evaluations and cooldowns.
type TransferStore interface {
	// FetchRecent returns up to limit transfers for a sender, most
	// recent first. Unknown senders yield an empty slice.
	FetchRecent(ctx context.Context, sender string, limit int) ([]*Transfer, error)
	Append(ctx context.Context, transfer *Transfer) error
	// ActiveCooldown returns the sender's cooldown expiry, zero if none
	// is active.
	ActiveCooldown(ctx context.Context, sender string) (time.Time, error)
}
