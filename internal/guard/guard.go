// Package guard implements layered content-leak scanning.
//
// Every outgoing payload is scanned against three severity-tiered pattern
// categories plus combinatorial escalation rules, producing a cumulative
// risk score. An optional advisory classifier can raise — but never lower —
// the reported severity. Raw content is never retained: results carry a
// SHA-256 content hash and a deterministic event hash for the audit trail.
package guard

import (
	"time"
)

// Per-match score contributions and decision thresholds.
const (
	ScoreHighCritical = 80
	ScoreSensitive    = 50
	ScoreContextual   = 25
	EscalationBonus   = 30

	ThresholdBlock = 70
	ThresholdWarn  = 40

	// Advisory classification is skipped for trivially short payloads.
	minAdvisoryLength = 50
)

// Severity bands for a scan result.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// severityOrder ranks severities so advisory results can only raise.
var severityOrder = map[string]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Finding is a single pattern (or rule) hit inside a scanned payload.
type Finding struct {
	Type              string `json:"type"`
	Label             string `json:"label"`
	Severity          string `json:"severity"`
	Category          string `json:"category"` // high_critical, sensitive, contextual, escalation, mitigation
	Matches           int    `json:"matches"`
	Sample            string `json:"sample,omitempty"` // truncated first match
	ScoreContribution int    `json:"scoreContribution"`
}

// ScanResult is the outcome of a full scan.
type ScanResult struct {
	IsRisky        bool            `json:"isRisky"`
	Severity       string          `json:"severity"`
	RiskScore      int             `json:"riskScore"`
	ThresholdBlock int             `json:"thresholdBlock"`
	ThresholdWarn  int             `json:"thresholdWarn"`
	Categories     []string        `json:"categories"`
	Findings       []Finding       `json:"findings"`
	Advisory       *Classification `json:"advisory,omitempty"`
	ContentHash    string          `json:"contentHash"`
	EventHash      string          `json:"eventHash"`
	ScannedAt      time.Time       `json:"scannedAt"`
	ScanType       string          `json:"scanType"` // "regex" or "regex+advisory"
}

// RedactResult is the outcome of a redaction pass.
type RedactResult struct {
	OriginalHash string `json:"originalHash"`
	RedactedText string `json:"redactedText"`
	Method       string `json:"method"`
}
