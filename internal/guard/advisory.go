package guard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sentinel-labs/sentinelx/internal/circuitbreaker"
	"github.com/sentinel-labs/sentinelx/internal/metrics"
	"github.com/sentinel-labs/sentinelx/internal/retry"
)

// ErrAdvisoryUnavailable signals a degraded (regex-only) scan. The scanner
// logs it and continues; it is never surfaced to callers.
var ErrAdvisoryUnavailable = errors.New("advisory classifier unavailable")

// Classification is the advisory classifier's verdict on a payload.
type Classification struct {
	IsSensitive bool     `json:"is_sensitive"`
	Confidence  float64  `json:"confidence"`
	Severity    string   `json:"severity"`
	Categories  []string `json:"categories"`
	Reasons     []string `json:"reasons,omitempty"`
}

// Classifier is the advisory-layer contract. Implementations may return
// (nil, error) when the upstream is down or slow; the scan degrades to
// regex-only in that case.
type Classifier interface {
	Classify(ctx context.Context, text string) (*Classification, error)
}

// maxClassifyChars caps how much text is sent upstream per request.
const maxClassifyChars = 2000

// Transient upstream failures get a couple of quick retries before the
// scan degrades.
const (
	classifyAttempts   = 2
	classifyRetryDelay = 200 * time.Millisecond
)

// HTTPClassifier calls an external classification endpoint. Requests are
// bounded by a timeout and guarded by a circuit breaker so a slow or dead
// upstream resolves to "unavailable" instead of hanging scans.
type HTTPClassifier struct {
	endpoint   string
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
}

// NewHTTPClassifier creates a classifier for the given endpoint.
// timeout bounds each classify call end to end.
func NewHTTPClassifier(endpoint string, timeout time.Duration) *HTTPClassifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPClassifier{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    circuitbreaker.New("advisory", 3, 30*time.Second),
	}
}

func (c *HTTPClassifier) Classify(ctx context.Context, text string) (*Classification, error) {
	if !c.breaker.Allow() {
		metrics.AdvisoryRequestsTotal.WithLabelValues("breaker_open").Inc()
		return nil, ErrAdvisoryUnavailable
	}

	if len(text) > maxClassifyChars {
		text = text[:maxClassifyChars]
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("marshal classify request: %w", err)
	}

	var result Classification
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return retry.Permanent(fmt.Errorf("create classify request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.breaker.RecordFailure()
			metrics.AdvisoryRequestsTotal.WithLabelValues("error").Inc()
			return fmt.Errorf("%w: %v", ErrAdvisoryUnavailable, err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			c.breaker.RecordFailure()
			metrics.AdvisoryRequestsTotal.WithLabelValues("error").Inc()
			err := fmt.Errorf("%w: status %d", ErrAdvisoryUnavailable, resp.StatusCode)
			// 4xx means the request itself is malformed; retrying won't help.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return retry.Permanent(err)
			}
			return err
		}

		result = Classification{}
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			c.breaker.RecordFailure()
			metrics.AdvisoryRequestsTotal.WithLabelValues("error").Inc()
			return retry.Permanent(fmt.Errorf("%w: %v", ErrAdvisoryUnavailable, err))
		}
		return nil
	}

	if err := retry.Do(ctx, classifyAttempts, classifyRetryDelay, attempt); err != nil {
		return nil, err
	}

	c.breaker.RecordSuccess()
	metrics.AdvisoryRequestsTotal.WithLabelValues("success").Inc()

	// Unknown severities are treated as low so a misbehaving upstream can
	// never force a block on its own.
	if _, ok := severityOrder[result.Severity]; !ok {
		result.Severity = SeverityLow
	}
	return &result, nil
}
