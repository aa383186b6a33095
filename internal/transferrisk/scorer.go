package transferrisk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/sentinel-labs/sentinelx/internal/events"
	"github.com/sentinel-labs/sentinelx/internal/idgen"
	"github.com/sentinel-labs/sentinelx/internal/traces"
	"github.com/sentinel-labs/sentinelx/internal/validation"
)

// Factor weights, summing to 1.
const (
	weightAmount    = 0.35
	weightFrequency = 0.25
	weightRecipient = 0.20
	weightLanguage  = 0.20
)

// Risk level boundaries on the weighted score.
const (
	levelMediumMin = 0.3
	levelHighMin   = 0.6
)

// cooldownFloor is the minimum score reported while a cooldown is active.
const cooldownFloor = 0.9

// Amount deviation curve: a ratio of 1.5x the sender's average is the
// onset, 50x saturates. Senders with no history are compared against a
// 0.1 ETH baseline.
const (
	deviationOnset    = 1.5
	deviationSaturate = 50.0
	coldStartBaseline = 0.1
)

// frequencyWindow is the lookback for transfer-rate counting.
const frequencyWindow = 30 * time.Minute

// Chat phrases that indicate urgency or social pressure.
var urgencyPhrases = []string{
	"urgent", "immediately", "right now", "asap", "hurry",
	"send now", "quick", "emergency", "don't wait", "act fast",
	"limited time", "last chance", "before it's too late",
	"trust me", "don't tell anyone", "keep this between us",
	"once in a lifetime", "guaranteed", "wire immediately",
}

// Scorer evaluates proposed transfers against sender history.
type Scorer struct {
	store   TransferStore
	history events.HistoryProvider
	logger  *slog.Logger

	cooldown time.Duration
}

// NewScorer creates a transfer scorer. history may be nil when scored
// events are recorded elsewhere.
func NewScorer(store TransferStore, history events.HistoryProvider, logger *slog.Logger) *Scorer {
	return &Scorer{
		store:    store,
		history:  history,
		logger:   logger,
		cooldown: CooldownDuration,
	}
}

// SetCooldown overrides the block cooldown duration.
func (s *Scorer) SetCooldown(d time.Duration) {
	if d > 0 {
		s.cooldown = d
	}
}

// Evaluate scores one proposed transfer. The evaluation is recorded so it
// feeds future frequency and recipient checks whether or not the transfer
// proceeds; a block starts the sender's cooldown.
func (s *Scorer) Evaluate(ctx context.Context, req *Request) (*Result, *events.ScoredEvent, error) {
	sender := validation.SanitizeAddress(req.Sender)
	recipient := validation.SanitizeAddress(req.Recipient)
	if !validation.IsValidEthAddress(sender) {
		return nil, nil, fmt.Errorf("invalid sender address")
	}
	if !validation.IsValidEthAddress(recipient) {
		return nil, nil, fmt.Errorf("invalid recipient address")
	}
	if req.AmountETH <= 0 {
		return nil, nil, fmt.Errorf("amount must be positive")
	}

	ctx, span := traces.StartSpan(ctx, "transferrisk.Evaluate", traces.Identity(sender))
	defer span.End()

	now := time.Now().UTC()

	history, err := s.store.FetchRecent(ctx, sender, historyLimit)
	if err != nil {
		s.logger.Warn("transfer history unavailable, scoring cold",
			"sender", sender, "error", err)
		history = nil
	}
	// Only completed transfers form the behavioral baseline; a blocked
	// attempt must not drag the average toward the amount it tried.
	history = completedOnly(history)

	factors := []events.Factor{
		amountDeviation(req.AmountETH, history),
		frequencyAnomaly(now, history),
		recipientNovelty(recipient, history),
		urgencyLanguage(req.ChatContext),
	}

	var score float64
	for i := range factors {
		factors[i].Contribution = factors[i].Weight * factors[i].Value
		score += factors[i].Contribution
	}
	score = math.Round(clamp(score)*10000) / 10000

	inCooldown := false
	if until, err := s.store.ActiveCooldown(ctx, sender); err != nil {
		s.logger.Warn("cooldown lookup failed", "sender", sender, "error", err)
	} else if until.After(now) {
		inCooldown = true
	}

	// An active cooldown forces high regardless of factor outcomes.
	if inCooldown && score < cooldownFloor {
		score = cooldownFloor
	}

	level := events.LevelLow
	verdict := VerdictAllow
	switch {
	case score >= levelHighMin:
		level = events.LevelHigh
		verdict = VerdictBlock
	case score >= levelMediumMin:
		level = events.LevelMedium
		verdict = VerdictWarn
	}

	record := &Transfer{
		Sender:    sender,
		Recipient: recipient,
		AmountETH: req.AmountETH,
		RiskScore: score,
		Level:     string(level),
		Blocked:   verdict == VerdictBlock,
		CreatedAt: now,
	}
	cooldownSet := false
	if verdict == VerdictBlock && !inCooldown {
		record.CooldownUntil = now.Add(s.cooldown)
		cooldownSet = true
	}
	if err := s.store.Append(ctx, record); err != nil {
		s.logger.Warn("failed to record transfer", "sender", sender, "error", err)
	}

	event := &events.ScoredEvent{
		ID:          idgen.WithPrefix("xfer_"),
		Identity:    sender,
		Kind:        events.KindTransfer,
		Score:       score,
		Level:       level,
		Factors:     factors,
		Blocked:     record.Blocked,
		CooldownSet: cooldownSet,
		CreatedAt:   now,
	}
	event.EventHash = eventHash(sender, recipient, req.AmountETH, score, now)

	if s.history != nil {
		if err := s.history.Append(ctx, event); err != nil {
			s.logger.Warn("failed to record transfer event",
				"sender", sender, "error", err)
		}
	}

	result := &Result{
		EventID:      event.ID,
		Sender:       sender,
		Recipient:    recipient,
		AmountETH:    req.AmountETH,
		Score:        score,
		Level:        level,
		Verdict:      verdict,
		DisplayScore: displayScore(score),
		InCooldown:   inCooldown,
		Factors:      factors,
		Explanation:  explain(factors, inCooldown),
		At:           now,
	}

	s.logger.Info("transfer evaluated",
		"sender", sender,
		"amount_eth", req.AmountETH,
		"score", score,
		"verdict", verdict,
	)
	return result, event, nil
}

// amountDeviation grades how far the amount sits above the sender's
// average on a log curve from the onset ratio to saturation. A sender
// whose transfers average 1 ETH scores nothing for 1.5 ETH and
// saturates near 50 ETH.
func amountDeviation(amount float64, history []*Transfer) events.Factor {
	f := events.Factor{
		Feature: "amount_deviation",
		Label:   "Amount far above usual",
		Weight:  weightAmount,
	}

	baseline := coldStartBaseline
	if len(history) > 0 {
		var sum float64
		for _, t := range history {
			sum += t.AmountETH
		}
		if avg := sum / float64(len(history)); avg > 0 {
			baseline = avg
		}
	}

	ratio := amount / baseline
	if ratio <= deviationOnset {
		return f
	}

	f.Value = clamp(math.Log(ratio/deviationOnset) / math.Log(deviationSaturate/deviationOnset))
	f.Triggered = f.Value > 0
	return f
}

// frequencyAnomaly counts transfers in the last thirty minutes, including
// this one, and ramps up in steps.
func frequencyAnomaly(now time.Time, history []*Transfer) events.Factor {
	f := events.Factor{
		Feature: "frequency_anomaly",
		Label:   "Rapid repeated transfers",
		Weight:  weightFrequency,
	}

	count := 1
	cutoff := now.Add(-frequencyWindow)
	for _, t := range history {
		if t.CreatedAt.After(cutoff) {
			count++
		}
	}

	switch {
	case count >= 5:
		f.Value = 1.0
	case count == 4:
		f.Value = 0.8
	case count == 3:
		f.Value = 0.6
	case count == 2:
		f.Value = 0.3
	default:
		return f
	}
	f.Triggered = true
	return f
}

// recipientNovelty grades an unseen recipient by how many distinct
// recipients the sender already pays.
func recipientNovelty(recipient string, history []*Transfer) events.Factor {
	f := events.Factor{
		Feature: "recipient_novelty",
		Label:   "First transfer to this recipient",
		Weight:  weightRecipient,
	}

	known := make(map[string]bool)
	for _, t := range history {
		known[t.Recipient] = true
	}
	if known[recipient] {
		return f
	}

	switch {
	case len(known) >= 10:
		f.Value = 0.4
	case len(known) >= 5:
		f.Value = 0.6
	default:
		f.Value = 1.0
	}
	f.Triggered = true
	return f
}

// urgencyLanguage counts pressure phrases in the surrounding chat
// context. One phrase is suspicious; four or more saturate.
func urgencyLanguage(chatContext string) events.Factor {
	f := events.Factor{
		Feature: "urgency_language",
		Label:   "Urgency or pressure language in chat",
		Weight:  weightLanguage,
	}
	if chatContext == "" {
		return f
	}

	lower := strings.ToLower(chatContext)
	matches := 0
	for _, phrase := range urgencyPhrases {
		if strings.Contains(lower, phrase) {
			matches++
		}
	}

	switch {
	case matches >= 4:
		f.Value = 1.0
	case matches == 3:
		f.Value = 0.8
	case matches == 2:
		f.Value = 0.6
	case matches == 1:
		f.Value = 0.3
	default:
		return f
	}
	f.Triggered = true
	return f
}

func completedOnly(history []*Transfer) []*Transfer {
	completed := make([]*Transfer, 0, len(history))
	for _, t := range history {
		if !t.Blocked {
			completed = append(completed, t)
		}
	}
	return completed
}

// displayScore is the inverted 0..100 safety score shown to users.
func displayScore(score float64) int {
	d := int(math.Round((1 - score) * 100))
	if d < 0 {
		d = 0
	}
	return d
}

func explain(factors []events.Factor, inCooldown bool) []string {
	triggered := make([]events.Factor, 0, len(factors))
	for _, f := range factors {
		if f.Triggered {
			triggered = append(triggered, f)
		}
	}
	sort.SliceStable(triggered, func(i, j int) bool {
		return triggered[i].Contribution > triggered[j].Contribution
	})

	lines := make([]string, 0, len(triggered)+1)
	if inCooldown {
		lines = append(lines, "Sender is in a transfer cooldown")
	}
	for _, f := range triggered {
		lines = append(lines, fmt.Sprintf("%s (+%.2f)", f.Label, f.Contribution))
	}
	if len(lines) == 0 {
		lines = append(lines, "No anomalies detected")
	}
	return lines
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// eventHash is the deterministic digest used as a Merkle leaf. Keys are
// serialized in alphabetical order so the digest is stable.
func eventHash(sender, recipient string, amount, score float64, at time.Time) string {
	canonical := struct {
		Amount    float64 `json:"amount"`
		Recipient string  `json:"recipient"`
		RiskScore float64 `json:"riskScore"`
		Sender    string  `json:"sender"`
		Timestamp string  `json:"timestamp"`
	}{
		Amount:    amount,
		Recipient: recipient,
		RiskScore: score,
		Sender:    sender,
		Timestamp: at.UTC().Format(time.RFC3339Nano),
	}
	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
