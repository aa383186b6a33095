// Package events defines the scored-event model shared by all risk engines.
//
// Every scan or score produces an immutable ScoredEvent: a content-addressed
// record of what was evaluated, how it scored, and which factors drove the
// result. Events feed the trust aggregator and their hashes feed the Merkle
// audit batcher.
package events

import (
	"context"
	"time"
)

// Kind identifies which engine produced an event.
type Kind string

const (
	KindLogin    Kind = "login"
	KindContent  Kind = "content"
	KindTransfer Kind = "transfer"
)

// Level is the graduated risk band for a score.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Factor is one explainable component of a score. Contribution is the
// weight-normalized share of the final score attributable to this factor.
type Factor struct {
	Feature      string  `json:"feature"`
	Label        string  `json:"label"`
	Weight       float64 `json:"weight"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
	Triggered    bool    `json:"triggered"`
}

// ScoredEvent is an immutable record of one scored occurrence.
// ContentHash addresses the evaluated payload (raw content is never kept);
// EventHash is the deterministic digest used as a Merkle leaf.
type ScoredEvent struct {
	ID          string    `json:"id"`
	Identity    string    `json:"identity"`
	Kind        Kind      `json:"kind"`
	ContentHash string    `json:"contentHash,omitempty"`
	EventHash   string    `json:"eventHash"`
	Score       float64   `json:"score"`
	Level       Level     `json:"level"`
	Factors     []Factor  `json:"factors,omitempty"`

	// Engine-specific outcome flags consumed by the trust aggregator.
	Risky       bool `json:"risky,omitempty"`       // content: threat detected
	Override    bool `json:"override,omitempty"`    // content: user sent anyway
	Blocked     bool `json:"blocked,omitempty"`     // transfer: verdict was block
	CooldownSet bool `json:"cooldownSet,omitempty"` // transfer: a cooldown was applied

	CreatedAt time.Time `json:"createdAt"`
}

// HistoryProvider is the narrow contract scorers and the trust aggregator
// use to read an identity's recent events. Implementations own persistence;
// the engines only read and append.
type HistoryProvider interface {
	// FetchRecent returns up to limit events of the given kind for an
	// identity, most recent first. An unknown identity yields an empty
	// slice, not an error.
	FetchRecent(ctx context.Context, identity string, kind Kind, limit int) ([]*ScoredEvent, error)

	// Append records a new event. The event is copied; the caller's value
	// is never mutated.
	Append(ctx context.Context, event *ScoredEvent) error
}
