package guard

import "regexp"

// pattern is one detection rule within a tier. Tiers are ordered slices so
// findings come out in a stable order for audit comparison.
type pattern struct {
	key   string
	label string
	re    *regexp.Regexp
}

// Tier 1: high-critical material — each hit contributes +80.
// Note: the raw private key rule uses \b boundaries; RE2 has no lookaround,
// and hex runs adjacent to word characters are already covered by the
// 0x-prefixed rule.
var highCriticalPatterns = []pattern{
	{"eth_private_key_0x", "Ethereum Private Key (0x format)",
		regexp.MustCompile(`\b0x[a-fA-F0-9]{64}\b`)},
	{"raw_hex_private_key", "Private Key (Raw 64 hex)",
		regexp.MustCompile(`\b[a-fA-F0-9]{64}\b`)},
	{"bip39_seed_phrase", "BIP39 Seed Phrase (12-24 words)",
		regexp.MustCompile(`\b(\w+\s+){11,23}\w+\b`)},
	{"openai_api_key", "OpenAI API Key",
		regexp.MustCompile(`\bsk-[A-Za-z0-9]{20,}\b`)},
	{"aws_access_key", "AWS Access Key",
		regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`)},
	{"google_api_key", "Google API Key",
		regexp.MustCompile(`\bAIza[0-9A-Za-z\-_]{35}\b`)},
	{"github_token", "GitHub Token",
		regexp.MustCompile(`\bghp_[A-Za-z0-9]{36}\b`)},
	{"credit_card", "Credit Card Number",
		regexp.MustCompile(`\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13}|3(?:0[0-5]|[68][0-9])[0-9]{11}|6(?:011|5[0-9]{2})[0-9]{12})\b`)},
	{"ssn", "Social Security Number",
		regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{"password_plaintext", "Password in Plaintext",
		regexp.MustCompile(`(?i)(?:password|passwd|pwd)\s*[:=]\s*["']?.+["']?`)},
}

// Tier 2: sensitive data — each hit contributes +50.
var sensitivePatterns = []pattern{
	{"aadhaar_number", "Aadhaar Number (India)",
		regexp.MustCompile(`\b[2-9]\d{3}\s?\d{4}\s?\d{4}\b`)},
	{"indian_mobile", "Indian Mobile Number",
		regexp.MustCompile(`\b[6-9]\d{9}\b`)},
	{"email", "Email Address",
		regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"generic_secret", "Secret / API Key Assignment",
		regexp.MustCompile(`(?i)(?:api[_\-]?key|secret|token)\s*[:=]\s*["']?.+["']?`)},
	{"iban", "IBAN Number",
		regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{11,30}\b`)},
	{"swift_bic", "SWIFT / BIC Code",
		regexp.MustCompile(`\b[A-Z]{6}[A-Z0-9]{2}(?:[A-Z0-9]{3})?\b`)},
	{"phone", "Phone Number",
		regexp.MustCompile(`\b(?:\+?1[-.\s]?)?(?:\(?\d{3}\)?[-.\s]?)?\d{3}[-.\s]?\d{4}\b`)},
	{"confidential_keywords", "Confidential Keyword",
		regexp.MustCompile(`(?i)\b(?:confidential|top\s*secret|classified|internal\s*only|do\s*not\s*share|restricted)\b`)},
}

// Tier 3: contextual risk — each hit contributes +25.
var contextualPatterns = []pattern{
	{"urgency_keywords", "Urgency Keywords",
		regexp.MustCompile(`(?i)\b(?:urgent|immediately|right now|act fast|limited time|verify now)\b`)},
	{"manipulation_phrases", "Manipulation Phrases",
		regexp.MustCompile(`(?i)\b(?:trust me|don'?t tell anyone|do not tell anyone|account will be suspended)\b`)},
	{"crypto_transfer_mention", "Crypto Transfer Mention",
		regexp.MustCompile(`(?i)\b(?:send|transfer)\s+\d+(?:\.\d+)?\s*(?:eth|usdt|btc)\b`)},
	{"eth_address", "Ethereum Address",
		regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`)},
	{"ip_address", "IP Address",
		regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)},
}

// escalationRule fires only when every sub-pattern matches the same text,
// adding a fixed bonus on top of the individual pattern scores. Dangerous
// combinations score higher than the sum of their parts.
type escalationRule struct {
	name     string
	label    string
	patterns []*regexp.Regexp
}

var escalationRules = []escalationRule{
	{
		name:  "email_password_combo",
		label: "Email + Password in same message",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
			regexp.MustCompile(`(?i)\b(?:password|passwd|pwd)\s*[:=]\s*\S+`),
		},
	},
	{
		name:  "urgency_eth_transfer",
		label: "Urgency language + ETH transfer mention",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b(?:urgent|immediately|right now|act fast|limited time|verify now|hurry|asap)\b`),
			regexp.MustCompile(`(?i)\b(?:send|transfer)\s+\d+(?:\.\d+)?\s*(?:eth|usdt|btc)\b`),
		},
	},
	{
		name:  "wallet_large_amount",
		label: "New wallet address + large number",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`),
			regexp.MustCompile(`\b\d{3,}\b`),
		},
	},
	{
		name:  "aadhaar_mobile_combo",
		label: "Aadhaar + Mobile in same message",
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`\b[2-9]\d{3}\s?\d{4}\s?\d{4}\b`),
			regexp.MustCompile(`\b[6-9]\d{9}\b`),
		},
	},
}

// falsePositivePattern flags explicit test/sample vocabulary; a hit halves
// the cumulative score (capped at 40) so fixture data doesn't hard-block.
var falsePositivePattern = regexp.MustCompile(`(?i)\b(example|dummy|test data|sample|placeholder|mock|fake|lorem)\b`)

// redactedPlaceholder matches spans produced by Redact, so a second pass
// leaves already-redacted text untouched.
var redactedPlaceholder = regexp.MustCompile(`\[REDACTED-[A-Z0-9_]+\]`)
