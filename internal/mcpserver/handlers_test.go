package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test helpers ---

func newTestSetup(handler http.Handler) (*Handlers, func()) {
	ts := httptest.NewServer(handler)
	cfg := Config{
		APIURL:   ts.URL,
		Identity: "agent-default",
	}
	client := NewSentinelClient(cfg)
	h := NewHandlers(client)
	return h, ts.Close
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

// ============================================================
// Client tests
// ============================================================

func TestClient_DoRequest_HTTPError_WithAPIMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "action_blocked",
			"message": "identity is locked",
		})
	}))
	defer ts.Close()

	client := NewSentinelClient(Config{APIURL: ts.URL})
	_, err := client.ScoreLogin(context.Background(), "agent-1", "fp-1", "US")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "identity is locked")
}

func TestClient_DoRequest_HTTPError_NonJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream timeout"))
	}))
	defer ts.Close()

	client := NewSentinelClient(Config{APIURL: ts.URL})
	_, err := client.GetAuditStats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream timeout")
}

func TestClient_DoRequest_ConnectionRefused(t *testing.T) {
	client := NewSentinelClient(Config{APIURL: "http://127.0.0.1:1"})
	_, err := client.GetAuditStats(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}

func TestClient_DoRequest_CancelledContext(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(5 * time.Second)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := NewSentinelClient(Config{APIURL: ts.URL})
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately
	_, err := client.GetAuditStats(ctx)
	require.Error(t, err)
}

func TestClient_ScanText_RequestBody(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/guard/scan", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"result":{}}`))
	}))
	defer ts.Close()

	client := NewSentinelClient(Config{APIURL: ts.URL})
	_, err := client.ScanText(context.Background(), "agent-1", "hello", true)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", got["identity"])
	assert.Equal(t, "hello", got["text"])
	assert.Equal(t, true, got["useAdvisory"])
}

func TestClient_GetTrustState_PathEscaping(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/trust/agent%2Fone", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"identity":"agent/one","status":"active","trustScore":100}`))
	}))
	defer ts.Close()

	client := NewSentinelClient(Config{APIURL: ts.URL})
	_, err := client.GetTrustState(context.Background(), "agent/one")
	require.NoError(t, err)
}

// ============================================================
// Tool handler tests
// ============================================================

func TestHandleScanText_Risky(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"result": {
				"isRisky": true,
				"severity": "high",
				"riskScore": 80,
				"categories": ["sensitive"],
				"findings": [{"label": "Credit card number detected", "severity": "high", "matches": 1}],
				"eventHash": "abc123"
			},
			"trust": {"status": "restricted"}
		}`))
	}))
	defer cleanup()

	result, err := h.HandleScanText(context.Background(), makeRequest(map[string]any{
		"text": "my card is 4532015112830366",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "RISKY")
	assert.Contains(t, text, "Credit card number detected")
	assert.Contains(t, text, "abc123")
	assert.Contains(t, text, "restricted")
}

func TestHandleScanText_MissingText(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("API should not be called")
	}))
	defer cleanup()

	result, err := h.HandleScanText(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleScanText_DefaultIdentity(t *testing.T) {
	var got map[string]any
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"result":{"isRisky":false,"severity":"none","riskScore":0}}`))
	}))
	defer cleanup()

	_, err := h.HandleScanText(context.Background(), makeRequest(map[string]any{
		"text": "hello",
	}))
	require.NoError(t, err)
	assert.Equal(t, "agent-default", got["identity"], "should fall back to configured identity")
}

func TestHandleRedactText(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/guard/redact", r.URL.Path)
		_, _ = w.Write([]byte(`{"originalHash":"h","redactedText":"card [REDACTED_CREDIT_CARD]","method":"regex"}`))
	}))
	defer cleanup()

	result, err := h.HandleRedactText(context.Background(), makeRequest(map[string]any{
		"text": "card 4532015112830366",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "[REDACTED_CREDIT_CARD]")
}

func TestHandleScoreLogin(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"result": {
				"score": 0.85,
				"level": "high",
				"action": "block_and_reauth",
				"explanation": ["New device fingerprint (+0.25)", "Login outside normal hours (+0.10)"]
			},
			"trust": {"status": "active"}
		}`))
	}))
	defer cleanup()

	result, err := h.HandleScoreLogin(context.Background(), makeRequest(map[string]any{
		"identity":           "agent-1",
		"device_fingerprint": "fp-9",
		"country":            "RU",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "high")
	assert.Contains(t, text, "block_and_reauth")
	assert.Contains(t, text, "New device fingerprint")
}

func TestHandleScoreLogin_MissingIdentity(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("API should not be called")
	}))
	defer cleanup()

	result, err := h.HandleScoreLogin(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleEvaluateTransfer_Blocked(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"result": {
				"riskScore": 0.9,
				"level": "high",
				"verdict": "block",
				"displayScore": 10,
				"inCooldown": true,
				"explanation": ["Sender is in a transfer cooldown"]
			}
		}`))
	}))
	defer cleanup()

	result, err := h.HandleEvaluateTransfer(context.Background(), makeRequest(map[string]any{
		"sender":     "0xaaaa000000000000000000000000000000000001",
		"recipient":  "0xbbbb000000000000000000000000000000000002",
		"amount_eth": 5.0,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "block")
	assert.Contains(t, text, "10/100")
	assert.Contains(t, text, "cooldown")
}

func TestHandleEvaluateTransfer_InvalidAmount(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("API should not be called")
	}))
	defer cleanup()

	result, err := h.HandleEvaluateTransfer(context.Background(), makeRequest(map[string]any{
		"sender":     "0xaaaa000000000000000000000000000000000001",
		"recipient":  "0xbbbb000000000000000000000000000000000002",
		"amount_eth": -1.0,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleGetTrustState_Locked(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"identity": "agent-2",
			"trustScore": 35,
			"status": "locked",
			"reason": "repeated severe risk signals",
			"lockedUntil": "2026-01-01T00:00:00Z"
		}`))
	}))
	defer cleanup()

	result, err := h.HandleGetTrustState(context.Background(), makeRequest(map[string]any{
		"identity": "agent-2",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "agent-2")
	assert.Contains(t, text, "35/100")
	assert.Contains(t, text, "locked")
	assert.Contains(t, text, "repeated severe risk signals")
}

func TestHandleCheckAction_Blocked(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"identity": "agent-3",
			"action": "transfer",
			"allowed": false,
			"status": "locked",
			"reason": "identity is locked",
			"retryAfterMs": 120000
		}`))
	}))
	defer cleanup()

	result, err := h.HandleCheckAction(context.Background(), makeRequest(map[string]any{
		"identity": "agent-3",
		"action":   "transfer",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Blocked")
	assert.Contains(t, text, "120000 ms")
}

func TestHandleCheckAction_StepUp(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"identity": "agent-4",
			"action": "transfer",
			"allowed": true,
			"stepUpRequired": true,
			"status": "step_up_required"
		}`))
	}))
	defer cleanup()

	result, err := h.HandleCheckAction(context.Background(), makeRequest(map[string]any{
		"identity": "agent-4",
		"action":   "transfer",
	}))
	require.NoError(t, err)

	text := resultText(t, result)
	assert.Contains(t, text, "Allowed")
	assert.Contains(t, text, "Step-up verification required")
}

func TestHandleVerifyAuditProof_Valid(t *testing.T) {
	var got map[string]any
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audit/verify", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = w.Write([]byte(`{"isValid": true}`))
	}))
	defer cleanup()

	result, err := h.HandleVerifyAuditProof(context.Background(), makeRequest(map[string]any{
		"event_hash":  "leaf1",
		"merkle_root": "root1",
		"proof":       []any{"sib1", "sib2"},
	}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "VALID")

	proof, ok := got["proof"].([]any)
	require.True(t, ok)
	assert.Len(t, proof, 2)
}

func TestHandleVerifyAuditProof_Invalid(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"isValid": false}`))
	}))
	defer cleanup()

	result, err := h.HandleVerifyAuditProof(context.Background(), makeRequest(map[string]any{
		"event_hash":  "leaf1",
		"merkle_root": "wrong",
	}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, result), "INVALID")
}

func TestHandleGetAuditStats(t *testing.T) {
	h, cleanup := newTestSetup(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audit/stats", r.URL.Path)
		_, _ = w.Write([]byte(`{"pendingEvents":3,"totalBatches":2,"totalEventsBatched":100,"batches":[]}`))
	}))
	defer cleanup()

	result, err := h.HandleGetAuditStats(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), `"pendingEvents": 3`)
}
