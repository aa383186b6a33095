package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Config holds the configuration for connecting to the SentinelX platform.
type Config struct {
	APIURL   string // Base URL, e.g. "http://localhost:8080"
	Identity string // Default identity for scoring calls, e.g. an agent ID
}

// SentinelClient is a pure HTTP client for the SentinelX platform API.
type SentinelClient struct {
	cfg        Config
	httpClient *http.Client
}

// NewSentinelClient creates a new client for the SentinelX platform.
func NewSentinelClient(cfg Config) *SentinelClient {
	return &SentinelClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiError represents an error response from the platform.
type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest makes an HTTP request to the platform and returns the response body.
func (c *SentinelClient) doRequest(ctx context.Context, method, path string, query url.Values, body any) (json.RawMessage, error) {
	u, err := url.Parse(c.cfg.APIURL + path)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	return json.RawMessage(respBody), nil
}

// ScanText scans content for leaks and manipulation markers.
func (c *SentinelClient) ScanText(ctx context.Context, identity, text string, useAdvisory bool) (json.RawMessage, error) {
	body := map[string]any{
		"identity":    identity,
		"text":        text,
		"useAdvisory": useAdvisory,
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/guard/scan", nil, body)
}

// RedactText replaces sensitive spans with typed placeholders.
func (c *SentinelClient) RedactText(ctx context.Context, text string) (json.RawMessage, error) {
	body := map[string]string{"text": text}
	return c.doRequest(ctx, http.MethodPost, "/v1/guard/redact", nil, body)
}

// ScoreLogin scores a login attempt against the identity's history.
func (c *SentinelClient) ScoreLogin(ctx context.Context, identity, fingerprint, country string) (json.RawMessage, error) {
	body := map[string]string{
		"identity":          identity,
		"deviceFingerprint": fingerprint,
		"country":           country,
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/logins/score", nil, body)
}

// EvaluateTransfer scores a proposed transfer.
func (c *SentinelClient) EvaluateTransfer(ctx context.Context, sender, recipient string, amountETH float64, chatContext string) (json.RawMessage, error) {
	body := map[string]any{
		"sender":    sender,
		"recipient": recipient,
		"amountEth": amountETH,
	}
	if chatContext != "" {
		body["chatContext"] = chatContext
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/transfers/evaluate", nil, body)
}

// GetTrustState returns the current trust state for an identity.
func (c *SentinelClient) GetTrustState(ctx context.Context, identity string) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/trust/"+url.PathEscape(identity), nil, nil)
}

// CheckAction asks whether an identity may perform an action right now.
func (c *SentinelClient) CheckAction(ctx context.Context, identity, action string) (json.RawMessage, error) {
	body := map[string]string{
		"identity": identity,
		"action":   action,
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/trust/check", nil, body)
}

// GetAuditStats returns batcher state and recent Merkle batches.
func (c *SentinelClient) GetAuditStats(ctx context.Context) (json.RawMessage, error) {
	return c.doRequest(ctx, http.MethodGet, "/v1/audit/stats", nil, nil)
}

// GetProof fetches an inclusion proof for an event hash in a known batch.
func (c *SentinelClient) GetProof(ctx context.Context, root, eventHash string) (json.RawMessage, error) {
	path := "/v1/audit/proof/" + url.PathEscape(root) + "/" + url.PathEscape(eventHash)
	return c.doRequest(ctx, http.MethodGet, path, nil, nil)
}

// VerifyProof checks a caller-supplied inclusion proof.
func (c *SentinelClient) VerifyProof(ctx context.Context, eventHash string, proof []string, root string) (json.RawMessage, error) {
	body := map[string]any{
		"eventHash":  eventHash,
		"proof":      proof,
		"merkleRoot": root,
	}
	return c.doRequest(ctx, http.MethodPost, "/v1/audit/verify", nil, body)
}

// ListTrustStates lists tracked identities with their trust status.
func (c *SentinelClient) ListTrustStates(ctx context.Context, limit int) (json.RawMessage, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/trust", q, nil)
}
