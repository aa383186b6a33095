package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *SentinelClient
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *SentinelClient) *Handlers {
	return &Handlers{client: client}
}

// HandleScanText scans content for leaks and manipulation markers.
func (h *Handlers) HandleScanText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}
	identity := req.GetString("identity", h.client.cfg.Identity)
	useAdvisory := req.GetBool("use_advisory", false)

	raw, err := h.client.ScanText(ctx, identity, text, useAdvisory)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Scan failed: %v", err)), nil
	}

	out, err := formatScanResult(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse scan result: %v", err)), nil
	}
	return mcp.NewToolResultText(out), nil
}

// HandleRedactText sanitizes content.
func (h *Handlers) HandleRedactText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	if text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}

	raw, err := h.client.RedactText(ctx, text)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Redaction failed: %v", err)), nil
	}

	var resp struct {
		RedactedText string `json:"redactedText"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse redaction result: %v", err)), nil
	}
	if resp.RedactedText == text {
		return mcp.NewToolResultText("Nothing sensitive found. Text unchanged:\n\n" + resp.RedactedText), nil
	}
	return mcp.NewToolResultText("Redacted:\n\n" + resp.RedactedText), nil
}

// HandleScoreLogin scores a login attempt.
func (h *Handlers) HandleScoreLogin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	identity := req.GetString("identity", "")
	if identity == "" {
		return mcp.NewToolResultError("identity is required"), nil
	}
	fingerprint := req.GetString("device_fingerprint", "")
	country := req.GetString("country", "")

	raw, err := h.client.ScoreLogin(ctx, identity, fingerprint, country)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Login scoring failed: %v", err)), nil
	}

	out, err := formatScore(raw, "Login")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse score: %v", err)), nil
	}
	return mcp.NewToolResultText(out), nil
}

// HandleEvaluateTransfer scores a proposed transfer.
func (h *Handlers) HandleEvaluateTransfer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sender := req.GetString("sender", "")
	if sender == "" {
		return mcp.NewToolResultError("sender is required"), nil
	}
	recipient := req.GetString("recipient", "")
	if recipient == "" {
		return mcp.NewToolResultError("recipient is required"), nil
	}
	amount := req.GetFloat("amount_eth", 0)
	if amount <= 0 {
		return mcp.NewToolResultError("amount_eth must be positive"), nil
	}
	chatContext := req.GetString("chat_context", "")

	raw, err := h.client.EvaluateTransfer(ctx, sender, recipient, amount, chatContext)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Transfer evaluation failed: %v", err)), nil
	}

	out, err := formatScore(raw, "Transfer")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse evaluation: %v", err)), nil
	}
	return mcp.NewToolResultText(out), nil
}

// HandleGetTrustState returns the trust state for an identity.
func (h *Handlers) HandleGetTrustState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	identity := req.GetString("identity", "")
	if identity == "" {
		return mcp.NewToolResultError("identity is required"), nil
	}

	raw, err := h.client.GetTrustState(ctx, identity)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get trust state: %v", err)), nil
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse trust state: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Identity: %s\n", getString(m, "identity"))
	if v, ok := getFloat(m, "trustScore"); ok {
		fmt.Fprintf(&sb, "Trust score: %.0f/100\n", v)
	}
	fmt.Fprintf(&sb, "Status: %s\n", getString(m, "status"))
	if v := getString(m, "reason"); v != "" {
		fmt.Fprintf(&sb, "Reason: %s\n", v)
	}
	if v := getString(m, "lockedUntil"); v != "" {
		fmt.Fprintf(&sb, "Locked until: %s\n", v)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleCheckAction checks whether an action is allowed right now.
func (h *Handlers) HandleCheckAction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	identity := req.GetString("identity", "")
	if identity == "" {
		return mcp.NewToolResultError("identity is required"), nil
	}
	action := req.GetString("action", "")
	if action == "" {
		return mcp.NewToolResultError("action is required"), nil
	}

	raw, err := h.client.CheckAction(ctx, identity, action)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Check failed: %v", err)), nil
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse decision: %v", err)), nil
	}

	allowed, _ := m["allowed"].(bool)
	var sb strings.Builder
	if allowed {
		fmt.Fprintf(&sb, "Allowed: %s may %s\n", identity, action)
	} else {
		fmt.Fprintf(&sb, "Blocked: %s may not %s\n", identity, action)
	}
	if stepUp, _ := m["stepUpRequired"].(bool); stepUp {
		sb.WriteString("Step-up verification required before proceeding.\n")
	}
	if v := getString(m, "reason"); v != "" {
		fmt.Fprintf(&sb, "Reason: %s\n", v)
	}
	if v, ok := getFloat(m, "retryAfterMs"); ok && v > 0 {
		fmt.Fprintf(&sb, "Retry after: %.0f ms\n", v)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleGetAuditStats returns Merkle batcher statistics.
func (h *Handlers) HandleGetAuditStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetAuditStats(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get audit stats: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleVerifyAuditProof verifies a Merkle inclusion proof.
func (h *Handlers) HandleVerifyAuditProof(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	eventHash := req.GetString("event_hash", "")
	if eventHash == "" {
		return mcp.NewToolResultError("event_hash is required"), nil
	}
	root := req.GetString("merkle_root", "")
	if root == "" {
		return mcp.NewToolResultError("merkle_root is required"), nil
	}
	proof := req.GetStringSlice("proof", nil)

	raw, err := h.client.VerifyProof(ctx, eventHash, proof, root)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Verification failed: %v", err)), nil
	}

	var resp struct {
		Valid bool `json:"isValid"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse verification: %v", err)), nil
	}
	if resp.Valid {
		return mcp.NewToolResultText(fmt.Sprintf(
			"Proof VALID: event %s is included in batch %s", eventHash, root)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Proof INVALID: event %s is NOT proven against root %s", eventHash, root)), nil
}

// --- Formatting helpers ---

// formatScanResult renders a scan verdict with its findings.
func formatScanResult(raw json.RawMessage) (string, error) {
	var resp struct {
		Result struct {
			IsRisky    bool     `json:"isRisky"`
			Severity   string   `json:"severity"`
			RiskScore  int      `json:"riskScore"`
			Categories []string `json:"categories"`
			Findings   []struct {
				Label    string `json:"label"`
				Severity string `json:"severity"`
				Matches  int    `json:"matches"`
			} `json:"findings"`
			EventHash string `json:"eventHash"`
		} `json:"result"`
		Trust map[string]any `json:"trust"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	r := resp.Result
	var sb strings.Builder
	if r.IsRisky {
		fmt.Fprintf(&sb, "RISKY (severity %s, score %d/100)\n", r.Severity, r.RiskScore)
	} else {
		fmt.Fprintf(&sb, "Clean (severity %s, score %d/100)\n", r.Severity, r.RiskScore)
	}
	if len(r.Categories) > 0 {
		fmt.Fprintf(&sb, "Categories: %s\n", strings.Join(r.Categories, ", "))
	}
	for _, f := range r.Findings {
		fmt.Fprintf(&sb, "- %s (%s, %d match(es))\n", f.Label, f.Severity, f.Matches)
	}
	if r.EventHash != "" {
		fmt.Fprintf(&sb, "Event hash: %s\n", r.EventHash)
	}
	if status := getString(resp.Trust, "status"); status != "" && status != "active" {
		fmt.Fprintf(&sb, "Trust status is now: %s\n", status)
	}
	return sb.String(), nil
}

// formatScore renders a login or transfer score with its explanation.
func formatScore(raw json.RawMessage, label string) (string, error) {
	var resp struct {
		Result struct {
			Score        float64  `json:"riskScore"`
			LoginScore   float64  `json:"score"`
			Level        string   `json:"level"`
			Action       string   `json:"action"`
			Verdict      string   `json:"verdict"`
			DisplayScore *int     `json:"displayScore"`
			InCooldown   bool     `json:"inCooldown"`
			Explanation  []string `json:"explanation"`
		} `json:"result"`
		Trust map[string]any `json:"trust"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}

	r := resp.Result
	score := r.Score
	if score == 0 && r.LoginScore != 0 {
		score = r.LoginScore
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s risk: %s (%.2f)\n", label, r.Level, score)
	if r.Verdict != "" {
		fmt.Fprintf(&sb, "Verdict: %s\n", r.Verdict)
	}
	if r.Action != "" {
		fmt.Fprintf(&sb, "Recommended action: %s\n", r.Action)
	}
	if r.DisplayScore != nil {
		fmt.Fprintf(&sb, "Safety score: %d/100\n", *r.DisplayScore)
	}
	if r.InCooldown {
		sb.WriteString("Sender is in a transfer cooldown.\n")
	}
	for _, line := range r.Explanation {
		fmt.Fprintf(&sb, "- %s\n", line)
	}
	if status := getString(resp.Trust, "status"); status != "" && status != "active" {
		fmt.Fprintf(&sb, "Trust status is now: %s\n", status)
	}
	return sb.String(), nil
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}

// getString extracts a string value from a map, trying multiple key names.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}

// getFloat extracts a float64 value from a map, trying multiple key names.
func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}
