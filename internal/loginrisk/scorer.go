package loginrisk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/sentinel-labs/sentinelx/internal/events"
	"github.com/sentinel-labs/sentinelx/internal/idgen"
	"github.com/sentinel-labs/sentinelx/internal/traces"
)

// Factor weights. Device and country dominate; burst amplifies; odd hours
// alone are never enough to escalate past low.
const (
	weightDevice   = 0.4
	weightCountry  = 0.4
	weightBurst    = 0.6
	weightOffHours = 0.2

	weightTotal = weightDevice + weightCountry + weightBurst + weightOffHours
)

// Risk level boundaries on the normalized score.
const (
	levelMediumMin = 0.4
	levelHighMin   = 0.7
)

// burstWindow is the lookback for rapid-attempt counting.
const burstWindow = 10 * time.Minute

// Default habitual-hours band (inclusive, UTC).
const (
	defaultDayStart = 6
	defaultDayEnd   = 22
)

// Scorer evaluates login attempts against an identity's history.
type Scorer struct {
	store   AttemptStore
	history events.HistoryProvider
	logger  *slog.Logger

	// Inclusive hour band considered normal activity.
	dayStart int
	dayEnd   int
}

// NewScorer creates a login scorer. history may be nil when scored events
// are recorded elsewhere.
func NewScorer(store AttemptStore, history events.HistoryProvider, logger *slog.Logger) *Scorer {
	return &Scorer{
		store:    store,
		history:  history,
		logger:   logger,
		dayStart: defaultDayStart,
		dayEnd:   defaultDayEnd,
	}
}

// SetNormalHours overrides the habitual-hours band. Both bounds inclusive.
func (s *Scorer) SetNormalHours(start, end int) {
	if start >= 0 && start < 24 && end >= 0 && end < 24 {
		s.dayStart, s.dayEnd = start, end
	}
}

// Score evaluates one login attempt. The attempt is recorded after scoring,
// so it never counts against itself; a failed history read degrades to a
// cold-start score rather than failing the login path.
func (s *Scorer) Score(ctx context.Context, attempt *Attempt) (*Result, *events.ScoredEvent, error) {
	if attempt.Identity == "" {
		return nil, nil, fmt.Errorf("identity is required")
	}
	if attempt.At.IsZero() {
		attempt.At = time.Now().UTC()
	}

	ctx, span := traces.StartSpan(ctx, "loginrisk.Score", traces.Identity(attempt.Identity))
	defer span.End()

	history, err := s.store.FetchRecent(ctx, attempt.Identity, historyLimit)
	if err != nil {
		s.logger.Warn("login history unavailable, scoring cold",
			"identity", attempt.Identity, "error", err)
		history = nil
	}

	factors := []events.Factor{
		s.deviceNovelty(attempt, history),
		s.countryNovelty(attempt, history),
		s.burstActivity(attempt, history),
		s.offHours(attempt),
	}

	var raw float64
	for i := range factors {
		factors[i].Contribution = factors[i].Weight * factors[i].Value / weightTotal
		raw += factors[i].Contribution
	}
	score := clamp(raw)

	level := events.LevelLow
	action := ActionAllow
	switch {
	case score >= levelHighMin:
		level = events.LevelHigh
		action = ActionBlockAndReauth
	case score >= levelMediumMin:
		level = events.LevelMedium
		action = ActionStepUp
	}

	if err := s.store.Append(ctx, attempt); err != nil {
		s.logger.Warn("failed to record login attempt",
			"identity", attempt.Identity, "error", err)
	}

	event := &events.ScoredEvent{
		ID:        idgen.WithPrefix("login_"),
		Identity:  attempt.Identity,
		Kind:      events.KindLogin,
		Score:     score,
		Level:     level,
		Factors:   factors,
		CreatedAt: attempt.At,
	}
	event.EventHash = eventHash(event)

	if s.history != nil {
		if err := s.history.Append(ctx, event); err != nil {
			s.logger.Warn("failed to record login event",
				"identity", attempt.Identity, "error", err)
		}
	}

	result := &Result{
		EventID:     event.ID,
		Identity:    attempt.Identity,
		Score:       score,
		Level:       level,
		Action:      action,
		Factors:     factors,
		Explanation: explain(factors),
		At:          attempt.At,
	}

	s.logger.Info("login scored",
		"identity", attempt.Identity,
		"score", score,
		"level", string(level),
	)
	return result, event, nil
}

// StatsFor summarizes recent scored logins for an identity: counts by
// level and average score over the bounded history window.
func (s *Scorer) StatsFor(ctx context.Context, identity string) (*IdentityStats, error) {
	stats := &IdentityStats{
		Identity: identity,
		ByLevel:  map[string]int{},
	}
	if s.history == nil {
		return stats, nil
	}

	scored, err := s.history.FetchRecent(ctx, identity, events.KindLogin, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch login history: %w", err)
	}

	var sum float64
	for i, e := range scored {
		stats.ByLevel[string(e.Level)]++
		sum += e.Score
		if i == 0 {
			stats.LastScoredAt = e.CreatedAt
		}
	}
	stats.Total = len(scored)
	if stats.Total > 0 {
		stats.AverageScore = sum / float64(stats.Total)
	}
	return stats, nil
}

// deviceNovelty grades an unseen fingerprint by how many devices the
// identity already uses. A fifth device is routine; a second is not.
func (s *Scorer) deviceNovelty(attempt *Attempt, history []*Attempt) events.Factor {
	f := events.Factor{
		Feature: "device_novelty",
		Label:   "New device fingerprint",
		Weight:  weightDevice,
	}

	known := make(map[string]bool)
	for _, a := range history {
		if a.Fingerprint != "" {
			known[a.Fingerprint] = true
		}
	}
	if attempt.Fingerprint != "" && known[attempt.Fingerprint] {
		return f
	}

	switch {
	case len(known) >= 5:
		f.Value = 0.4
	case len(known) >= 3:
		f.Value = 0.6
	default:
		f.Value = 1.0
	}
	f.Triggered = true
	return f
}

// countryNovelty is zero when no country is supplied. Geo data is
// best-effort upstream and its absence must not look like risk.
func (s *Scorer) countryNovelty(attempt *Attempt, history []*Attempt) events.Factor {
	f := events.Factor{
		Feature: "country_novelty",
		Label:   "Login from new country",
		Weight:  weightCountry,
	}
	if attempt.Country == "" {
		return f
	}

	known := make(map[string]bool)
	for _, a := range history {
		if a.Country != "" {
			known[a.Country] = true
		}
	}
	if known[attempt.Country] {
		return f
	}

	if len(known) >= 5 {
		f.Value = 0.5
	} else {
		f.Value = 1.0
	}
	f.Triggered = true
	return f
}

// burstActivity counts attempts in the last ten minutes, including this
// one, and ramps up in steps.
func (s *Scorer) burstActivity(attempt *Attempt, history []*Attempt) events.Factor {
	f := events.Factor{
		Feature: "burst_activity",
		Label:   "Rapid repeated logins",
		Weight:  weightBurst,
	}

	count := 1
	cutoff := attempt.At.Add(-burstWindow)
	for _, a := range history {
		if a.At.After(cutoff) && !a.At.After(attempt.At) {
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

// offHours grades how far outside the habitual band the attempt falls,
// measured as circular hour distance to the nearest band edge. Midnight is
// two hours outside a band ending at 22:00, not twenty-two.
func (s *Scorer) offHours(attempt *Attempt) events.Factor {
	f := events.Factor{
		Feature: "off_hours",
		Label:   "Login outside habitual hours",
		Weight:  weightOffHours,
	}

	hour := attempt.At.UTC().Hour()
	if hour >= s.dayStart && hour <= s.dayEnd {
		return f
	}

	distAfter := (hour - s.dayEnd + 24) % 24
	distBefore := (s.dayStart - hour + 24) % 24
	dist := distAfter
	if distBefore < dist {
		dist = distBefore
	}

	switch {
	case dist <= 2:
		f.Value = 0.4
	case dist <= 4:
		f.Value = 0.7
	default:
		f.Value = 1.0
	}
	f.Triggered = true
	return f
}

// explain renders triggered factors as human-readable lines, largest
// contribution first.
func explain(factors []events.Factor) []string {
	triggered := make([]events.Factor, 0, len(factors))
	for _, f := range factors {
		if f.Triggered {
			triggered = append(triggered, f)
		}
	}
	sort.SliceStable(triggered, func(i, j int) bool {
		return triggered[i].Contribution > triggered[j].Contribution
	})

	lines := make([]string, 0, len(triggered))
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
func eventHash(e *events.ScoredEvent) string {
	canonical := struct {
		Identity  string  `json:"identity"`
		Kind      string  `json:"kind"`
		Level     string  `json:"level"`
		Score     float64 `json:"score"`
		Timestamp string  `json:"timestamp"`
	}{
		Identity:  e.Identity,
		Kind:      string(e.Kind),
		Level:     string(e.Level),
		Score:     e.Score,
		Timestamp: e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	data, _ := json.Marshal(canonical)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
