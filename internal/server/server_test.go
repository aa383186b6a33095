package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sentinel-labs/sentinelx/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Port:             "0",
		Env:              "development",
		LogLevel:         "error",
		BatchSize:        50,
		BatchInterval:    300 * time.Second,
		LockCooldown:     30 * time.Minute,
		TransferCooldown: 10 * time.Minute,
		NormalHoursStart: 6,
		NormalHoursEnd:   22,
		RateLimitRPS:     1000,
		AdvisoryTimeout:  time.Second,
	}
}

// newTestServer creates an in-memory server
func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

func doJSON(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	s.router.ServeHTTP(w, req)

	var resp map[string]interface{}
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("Failed to parse response %q: %v", w.Body.String(), err)
		}
	}
	return w, resp
}

// result unwraps the {"result": {...}} response envelope
func result(t *testing.T, resp map[string]interface{}) map[string]interface{} {
	t.Helper()
	inner, ok := resp["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected result object in response, got %v", resp)
	}
	return inner
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w, resp := doJSON(t, s, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w, _ := doJSON(t, s, "GET", "/health/live", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w, _ := doJSON(t, s, "GET", "/health/ready", "")

	// Server hasn't called Run() so ready is false
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	expected := []string{
		"GET:/health",
		"GET:/health/live",
		"GET:/health/ready",
		"GET:/metrics",
		"GET:/ws",
		"POST:/v1/guard/scan",
		"POST:/v1/guard/redact",
		"POST:/v1/logins/score",
		"GET:/v1/logins/stats/:identity",
		"POST:/v1/transfers/evaluate",
		"GET:/v1/trust",
		"GET:/v1/trust/:identity",
		"POST:/v1/trust/:identity/evaluate",
		"POST:/v1/trust/check",
		"GET:/v1/audit/stats",
		"POST:/v1/audit/batch",
		"GET:/v1/audit/proof/:root/:eventHash",
		"POST:/v1/audit/verify",
	}

	routeSet := make(map[string]bool)
	for _, route := range routes {
		routeSet[route.Method+":"+route.Path] = true
	}

	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("Core route %s not registered", e)
		}
	}
}

// ---------------------------------------------------------------------------
// Pipeline flow tests
// ---------------------------------------------------------------------------

func TestScanEndpoint(t *testing.T) {
	s := newTestServer(t)

	w, resp := doJSON(t, s, "POST", "/v1/guard/scan",
		`{"identity":"agent-1","text":"hello, nothing risky here"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	res := result(t, resp)
	if res["isRisky"] != false {
		t.Errorf("Expected clean verdict, got %v", res["isRisky"])
	}
	if res["eventHash"] == nil || res["eventHash"] == "" {
		t.Error("Expected eventHash in scan response")
	}
}

func TestScanRiskyContentFeedsAudit(t *testing.T) {
	s := newTestServer(t)

	w, resp := doJSON(t, s, "POST", "/v1/guard/scan",
		`{"identity":"agent-2","text":"my card is 4532015112830366"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if res := result(t, resp); res["isRisky"] != true {
		t.Fatalf("Expected risky verdict, got %v", res["isRisky"])
	}

	if s.batcher.PendingCount() == 0 {
		t.Error("Expected scan event queued for audit batching")
	}
}

func TestLoginScoreEndpoint(t *testing.T) {
	s := newTestServer(t)

	w, resp := doJSON(t, s, "POST", "/v1/logins/score",
		`{"identity":"agent-3","deviceFingerprint":"fp-1","country":"US"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if res := result(t, resp); res["level"] == nil {
		t.Error("Expected level in login score response")
	}
	if resp["trust"] == nil {
		t.Error("Expected trust state in login score response")
	}
}

func TestTransferEvaluateEndpoint(t *testing.T) {
	s := newTestServer(t)

	w, resp := doJSON(t, s, "POST", "/v1/transfers/evaluate",
		`{"sender":"0xaaaa000000000000000000000000000000000001","recipient":"0xbbbb000000000000000000000000000000000002","amountEth":0.05}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	res := result(t, resp)
	if res["verdict"] == nil {
		t.Error("Expected verdict in transfer response")
	}
	if res["displayScore"] == nil {
		t.Error("Expected displayScore in transfer response")
	}
}

func TestTrustStateForUnknownIdentity(t *testing.T) {
	s := newTestServer(t)

	w, resp := doJSON(t, s, "GET", "/v1/trust/never-seen", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp["status"] != "active" {
		t.Errorf("Expected active status for unknown identity, got %v", resp["status"])
	}
	if resp["trustScore"] != float64(100) {
		t.Errorf("Expected full trust for unknown identity, got %v", resp["trustScore"])
	}
}

func TestAuditBatchAndProofFlow(t *testing.T) {
	s := newTestServer(t)

	// Queue one event via a scan, then force-cut a batch.
	w, scanResp := doJSON(t, s, "POST", "/v1/guard/scan",
		`{"identity":"agent-4","text":"seed phrase: abandon ability able about above absent absorb abstract absurd abuse access accident"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("scan failed: %d %s", w.Code, w.Body.String())
	}
	eventHash, _ := result(t, scanResp)["eventHash"].(string)
	if eventHash == "" {
		t.Fatal("Expected eventHash from scan")
	}

	w, batchResp := doJSON(t, s, "POST", "/v1/audit/batch", "")
	if w.Code != http.StatusOK {
		t.Fatalf("batch cut failed: %d %s", w.Code, w.Body.String())
	}
	batch, ok := batchResp["batch"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected batch in response, got %v", batchResp)
	}
	root, _ := batch["merkleRoot"].(string)
	if root == "" {
		t.Fatal("Expected merkleRoot from batch cut")
	}

	w, proofResp := doJSON(t, s, "GET", "/v1/audit/proof/"+root+"/"+eventHash, "")
	if w.Code != http.StatusOK {
		t.Fatalf("proof failed: %d %s", w.Code, w.Body.String())
	}
	if proofResp["isValid"] != true {
		t.Errorf("Expected valid proof, got %v", proofResp["isValid"])
	}
}

// ---------------------------------------------------------------------------
// Dashboard page test
// ---------------------------------------------------------------------------

func TestDashboardEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 for dashboard, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "SentinelX") {
		t.Error("Expected dashboard HTML")
	}
}

// ---------------------------------------------------------------------------
// 404 test
// ---------------------------------------------------------------------------

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/nonexistent", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
