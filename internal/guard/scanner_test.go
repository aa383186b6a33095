package guard

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScanner() *Scanner {
	return NewScanner(nil, testLogger())
}

func TestCleanTextScoresZero(t *testing.T) {
	s := newTestScanner()

	result := s.Scan(context.Background(), "hello there, nothing sensitive here", false)
	if result.IsRisky {
		t.Errorf("clean text flagged risky: %+v", result.Findings)
	}
	if result.RiskScore != 0 {
		t.Errorf("expected score 0, got %d", result.RiskScore)
	}
	if result.Severity != SeverityLow {
		t.Errorf("expected low severity, got %s", result.Severity)
	}
	if result.ScanType != "regex" {
		t.Errorf("expected regex scan type, got %s", result.ScanType)
	}
}

func TestCreditCardBlocks(t *testing.T) {
	s := newTestScanner()

	result := s.Scan(context.Background(), "card 4532015112830366", false)
	if !result.IsRisky {
		t.Fatal("credit card not flagged risky")
	}
	if result.RiskScore < ThresholdBlock {
		t.Errorf("expected score >= %d, got %d", ThresholdBlock, result.RiskScore)
	}
	if result.Severity != SeverityCritical {
		t.Errorf("expected critical severity, got %s", result.Severity)
	}
	if !hasFinding(result.Findings, "credit_card") {
		t.Errorf("missing credit_card finding: %+v", result.Findings)
	}
}

func TestSeedPhraseDetected(t *testing.T) {
	s := newTestScanner()

	phrase := "abandon ability able about above absent absorb abstract absurd abuse access accident"
	result := s.Scan(context.Background(), phrase, false)
	if !hasFinding(result.Findings, "bip39_seed_phrase") {
		t.Fatalf("seed phrase not detected: %+v", result.Findings)
	}
	if result.Severity != SeverityCritical {
		t.Errorf("expected critical severity, got %s", result.Severity)
	}
}

func TestAPIKeyDetected(t *testing.T) {
	s := newTestScanner()

	result := s.Scan(context.Background(), "use sk-abcdefghij1234567890ABCD for access", false)
	if !hasFinding(result.Findings, "openai_api_key") {
		t.Fatalf("API key not detected: %+v", result.Findings)
	}
}

func TestContextualOnlyIsNotRisky(t *testing.T) {
	s := newTestScanner()

	result := s.Scan(context.Background(), "this is urgent", false)
	if result.IsRisky {
		t.Errorf("contextual-only hit flagged risky (score %d)", result.RiskScore)
	}
	if result.RiskScore != ScoreContextual {
		t.Errorf("expected score %d, got %d", ScoreContextual, result.RiskScore)
	}
	if result.Severity != SeverityMedium {
		t.Errorf("expected medium severity, got %s", result.Severity)
	}
}

func TestEscalationCombo(t *testing.T) {
	s := newTestScanner()

	result := s.Scan(context.Background(), "login admin@corp.io password: hunter2", false)
	if !hasFinding(result.Findings, "email_password_combo") {
		t.Fatalf("escalation rule did not fire: %+v", result.Findings)
	}

	expected := ScoreHighCritical + ScoreSensitive + EscalationBonus
	if result.RiskScore != expected {
		t.Errorf("expected score %d, got %d", expected, result.RiskScore)
	}
	if result.Severity != SeverityCritical {
		t.Errorf("expected critical severity, got %s", result.Severity)
	}
}

func TestFalsePositiveMitigation(t *testing.T) {
	s := newTestScanner()

	result := s.Scan(context.Background(), "sample card 4532015112830366", false)

	// One critical hit halved: 80 -> 40.
	if result.RiskScore != ScoreHighCritical/2 {
		t.Errorf("expected score %d after mitigation, got %d", ScoreHighCritical/2, result.RiskScore)
	}
	var reduction *Finding
	for i := range result.Findings {
		if result.Findings[i].Type == "false_positive_reduction" {
			reduction = &result.Findings[i]
		}
	}
	if reduction == nil {
		t.Fatalf("mitigation finding missing: %+v", result.Findings)
	}
	if reduction.ScoreContribution != -40 {
		t.Errorf("expected -40 contribution, got %d", reduction.ScoreContribution)
	}
	// Mitigation findings never appear as categories.
	for _, c := range result.Categories {
		if c == "false_positive_reduction" {
			t.Error("mitigation leaked into categories")
		}
	}
}

func TestFalsePositiveReductionCapped(t *testing.T) {
	s := newTestScanner()

	// Two critical hits plus sample vocabulary: 160/2 = 80 exceeds the cap.
	text := "sample card 4532015112830366 ssn 078-05-1120"
	result := s.Scan(context.Background(), text, false)
	if result.RiskScore != 2*ScoreHighCritical-40 {
		t.Errorf("expected reduction capped at 40, got score %d", result.RiskScore)
	}
}

type stubClassifier struct {
	result *Classification
	err    error
	called bool
}

func (c *stubClassifier) Classify(_ context.Context, _ string) (*Classification, error) {
	c.called = true
	return c.result, c.err
}

func TestAdvisoryRaisesSeverity(t *testing.T) {
	stub := &stubClassifier{result: &Classification{
		IsSensitive: true,
		Confidence:  0.9,
		Severity:    SeverityCritical,
		Categories:  []string{"pii"},
	}}
	s := NewScanner(stub, testLogger())

	text := "the quick brown fox, jumped over the lazy dog, near a riverbank today"
	result := s.Scan(context.Background(), text, true)
	if !stub.called {
		t.Fatal("classifier not invoked")
	}
	if !result.IsRisky {
		t.Error("advisory-sensitive payload not flagged risky")
	}
	if result.Severity != SeverityCritical {
		t.Errorf("expected critical severity, got %s", result.Severity)
	}
	if result.ScanType != "regex+advisory" {
		t.Errorf("expected regex+advisory, got %s", result.ScanType)
	}
	if !containsString(result.Categories, "pii") {
		t.Errorf("advisory category missing: %v", result.Categories)
	}
}

func TestAdvisoryNeverLowersSeverity(t *testing.T) {
	stub := &stubClassifier{result: &Classification{
		IsSensitive: true,
		Severity:    SeverityLow,
	}}
	s := NewScanner(stub, testLogger())

	text := "card 4532015112830366 attached, padding padding padding padding padding"
	result := s.Scan(context.Background(), text, true)
	if result.Severity != SeverityCritical {
		t.Errorf("advisory lowered severity to %s", result.Severity)
	}
}

func TestAdvisoryFailureDegradesToRegex(t *testing.T) {
	stub := &stubClassifier{err: ErrAdvisoryUnavailable}
	s := NewScanner(stub, testLogger())

	text := "the quick brown fox, jumped over the lazy dog, near a riverbank today"
	result := s.Scan(context.Background(), text, true)
	if !stub.called {
		t.Fatal("classifier not invoked")
	}
	if result.ScanType != "regex" {
		t.Errorf("expected degraded regex scan, got %s", result.ScanType)
	}
	if result.IsRisky {
		t.Error("degraded scan flagged clean text risky")
	}
}

func TestAdvisorySkippedForShortText(t *testing.T) {
	stub := &stubClassifier{result: &Classification{IsSensitive: true, Severity: SeverityHigh}}
	s := NewScanner(stub, testLogger())

	result := s.Scan(context.Background(), "short note", true)
	if stub.called {
		t.Error("classifier invoked for trivially short payload")
	}
	if result.ScanType != "regex" {
		t.Errorf("expected regex scan type, got %s", result.ScanType)
	}
}

func TestRedactReplacesSensitiveSpans(t *testing.T) {
	s := newTestScanner()

	key := "0x" + strings.Repeat("ab", 32)
	result := s.Redact("private key " + key + " contact admin@corp.io")
	if strings.Contains(result.RedactedText, key) {
		t.Error("private key survived redaction")
	}
	if strings.Contains(result.RedactedText, "admin@corp.io") {
		t.Error("email survived redaction")
	}
	if !strings.Contains(result.RedactedText, "[REDACTED-ETH_PRIVATE_KEY_0X]") {
		t.Errorf("missing key placeholder: %s", result.RedactedText)
	}
	if !strings.Contains(result.RedactedText, "[REDACTED-EMAIL]") {
		t.Errorf("missing email placeholder: %s", result.RedactedText)
	}
	if result.Method != "regex" {
		t.Errorf("expected regex method, got %s", result.Method)
	}
}

func TestRedactIsIdempotent(t *testing.T) {
	s := newTestScanner()

	first := s.Redact("card 4532015112830366 and mail admin@corp.io")
	second := s.Redact(first.RedactedText)
	if second.RedactedText != first.RedactedText {
		t.Errorf("second pass changed output:\n first: %s\nsecond: %s",
			first.RedactedText, second.RedactedText)
	}
}

func TestEventHashDeterministic(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h1 := eventHash("abc", true, []string{"high_critical"}, at)
	h2 := eventHash("abc", true, []string{"high_critical"}, at)
	if h1 != h2 {
		t.Error("identical inputs produced different hashes")
	}
	if h3 := eventHash("abc", true, []string{"sensitive"}, at); h3 == h1 {
		t.Error("different categories produced identical hashes")
	}
}

func hasFinding(findings []Finding, typ string) bool {
	for _, f := range findings {
		if f.Type == typ {
			return true
		}
	}
	return false
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
