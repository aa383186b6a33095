package guard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sentinel-labs/sentinelx/internal/traces"
)

// Scanner scans text payloads for leaked sensitive data. It is stateless;
// one instance can serve concurrent scans.
type Scanner struct {
	classifier Classifier // nil = regex-only mode
	logger     *slog.Logger
}

// NewScanner creates a scanner. classifier may be nil to disable the
// advisory layer entirely.
func NewScanner(classifier Classifier, logger *slog.Logger) *Scanner {
	return &Scanner{classifier: classifier, logger: logger}
}

// Scan runs the full layered scan: pattern tiers, escalation rules,
// false-positive mitigation, then the optional advisory classifier.
// Advisory failure degrades to regex-only; Scan never returns an error.
func (s *Scanner) Scan(ctx context.Context, text string, allowAdvisory bool) *ScanResult {
	ctx, span := traces.StartSpan(ctx, "guard.Scan", traces.EventKind("content"))
	defer span.End()

	findings, riskScore := s.scanRegex(text)

	severity := SeverityLow
	switch {
	case riskScore >= ThresholdBlock:
		severity = SeverityCritical
	case riskScore >= ThresholdWarn:
		severity = SeverityHigh
	case riskScore > 0:
		severity = SeverityMedium
	}
	isRisky := riskScore >= ThresholdWarn

	categorySet := make(map[string]bool)
	for _, f := range findings {
		if f.Category != "mitigation" {
			categorySet[f.Type] = true
		}
	}

	scanType := "regex"
	var advisory *Classification
	if allowAdvisory && s.classifier != nil && len(text) > minAdvisoryLength {
		result, err := s.classifier.Classify(ctx, text)
		switch {
		case err != nil:
			s.logger.Warn("advisory classifier unavailable, regex-only scan", "error", err)
		case result != nil:
			advisory = result
			scanType = "regex+advisory"
			if result.IsSensitive {
				isRisky = true
				for _, c := range result.Categories {
					categorySet[c] = true
				}
				// Advisory can raise severity, never lower it.
				if severityOrder[result.Severity] > severityOrder[severity] {
					severity = result.Severity
				}
			}
		}
	}

	categories := make([]string, 0, len(categorySet))
	for c := range categorySet {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	now := time.Now().UTC()
	contentHash := hashText(text)

	return &ScanResult{
		IsRisky:        isRisky,
		Severity:       severity,
		RiskScore:      riskScore,
		ThresholdBlock: ThresholdBlock,
		ThresholdWarn:  ThresholdWarn,
		Categories:     categories,
		Findings:       findings,
		Advisory:       advisory,
		ContentHash:    contentHash,
		EventHash:      eventHash(contentHash, isRisky, categories, now),
		ScannedAt:      now,
		ScanType:       scanType,
	}
}

// scanRegex runs the three pattern tiers, the escalation rules, and the
// false-positive mitigation, returning findings and the cumulative score.
func (s *Scanner) scanRegex(text string) ([]Finding, int) {
	var findings []Finding
	riskScore := 0

	hasFalsePositive := falsePositivePattern.MatchString(text)

	scanTier := func(tier []pattern, severity, category string, contribution int) {
		for _, p := range tier {
			matches := p.re.FindAllString(text, -1)
			if len(matches) == 0 {
				continue
			}
			findings = append(findings, Finding{
				Type:              p.key,
				Label:             p.label,
				Severity:          severity,
				Category:          category,
				Matches:           len(matches),
				Sample:            truncateSample(matches[0]),
				ScoreContribution: contribution,
			})
			riskScore += contribution
		}
	}

	scanTier(highCriticalPatterns, SeverityCritical, "high_critical", ScoreHighCritical)
	scanTier(sensitivePatterns, SeverityHigh, "sensitive", ScoreSensitive)
	scanTier(contextualPatterns, SeverityMedium, "contextual", ScoreContextual)

	for _, rule := range escalationRules {
		allMatched := true
		for _, re := range rule.patterns {
			if !re.MatchString(text) {
				allMatched = false
				break
			}
		}
		if !allMatched {
			continue
		}
		findings = append(findings, Finding{
			Type:              rule.name,
			Label:             rule.label,
			Severity:          SeverityCritical,
			Category:          "escalation",
			Matches:           1,
			Sample:            "Combined pattern match",
			ScoreContribution: EscalationBonus,
		})
		riskScore += EscalationBonus
	}

	// Test/sample vocabulary halves the score (capped at 40); the reduction
	// is recorded as a negative contribution so audits show why it dropped.
	if hasFalsePositive && riskScore > 0 {
		reduction := riskScore / 2
		if reduction > 40 {
			reduction = 40
		}
		if reduction > 0 {
			riskScore -= reduction
			findings = append(findings, Finding{
				Type:              "false_positive_reduction",
				Label:             "Test/example context detected, risk reduced",
				Severity:          "info",
				Category:          "mitigation",
				ScoreContribution: -reduction,
			})
		}
	}

	return findings, riskScore
}

// Redact replaces critical- and sensitive-tier matches with tier-labeled
// placeholders. Idempotent: placeholder spans, including ones inserted
// earlier in the same pass, are protected from re-matching. Without that
// the SWIFT pattern would chew on the word REDACTED itself.
func (s *Scanner) Redact(text string) *RedactResult {
	originalHash := hashText(text)
	for _, p := range highCriticalPatterns {
		text = replaceOutsidePlaceholders(text, p)
	}
	for _, p := range sensitivePatterns {
		text = replaceOutsidePlaceholders(text, p)
	}
	return &RedactResult{
		OriginalHash: originalHash,
		RedactedText: text,
		Method:       "regex",
	}
}

// replaceOutsidePlaceholders applies one pattern's replacement to every
// stretch of text between existing placeholder spans.
func replaceOutsidePlaceholders(text string, p pattern) string {
	placeholder := "[REDACTED-" + strings.ToUpper(p.key) + "]"

	spans := redactedPlaceholder.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return p.re.ReplaceAllString(text, placeholder)
	}

	var b strings.Builder
	prev := 0
	for _, span := range spans {
		b.WriteString(p.re.ReplaceAllString(text[prev:span[0]], placeholder))
		b.WriteString(text[span[0]:span[1]])
		prev = span[1]
	}
	b.WriteString(p.re.ReplaceAllString(text[prev:], placeholder))
	return b.String()
}

func truncateSample(match string) string {
	if len(match) > 20 {
		return match[:20] + "..."
	}
	return match
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// eventHash derives the deterministic audit digest from the scan outcome.
// Fields are serialized in sorted key order so the hash is reproducible.
func eventHash(contentHash string, isRisky bool, categories []string, at time.Time) string {
	payload := struct {
		Categories  []string `json:"categories"`
		ContentHash string   `json:"content_hash"`
		IsRisky     bool     `json:"is_risky"`
		Timestamp   string   `json:"timestamp"`
	}{
		Categories:  categories,
		ContentHash: contentHash,
		IsRisky:     isRisky,
		Timestamp:   at.Format(time.RFC3339Nano),
	}
	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
