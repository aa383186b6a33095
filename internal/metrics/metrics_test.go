package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func scrape(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("scrape returned %d", w.Code)
	}
	return w.Body.String()
}

func TestStatusBucket(t *testing.T) {
	cases := map[int]string{
		100: "1xx",
		200: "2xx",
		201: "2xx",
		301: "3xx",
		400: "4xx",
		404: "4xx",
		500: "5xx",
		503: "5xx",
	}
	for code, want := range cases {
		if got := statusBucket(code); got != want {
			t.Errorf("statusBucket(%d) = %s, want %s", code, got, want)
		}
	}
}

func TestHandlerExportsRegisteredMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/metrics", Handler())

	body := scrape(t, r)

	// Gauges export immediately at their default value. Counters and
	// histograms only show up once observed.
	for _, name := range []string{
		"sentinelx_audit_pending_events",
		"sentinelx_active_websocket_clients",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("missing gauge %s in scrape", name)
		}
	}

	ScansTotal.WithLabelValues("high").Inc()
	if body = scrape(t, r); !strings.Contains(body, "sentinelx_scans_total") {
		t.Error("sentinelx_scans_total absent after increment")
	}
}

func TestGatheredGaugeValue(t *testing.T) {
	AuditPendingEvents.Set(7)
	defer AuditPendingEvents.Set(0)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	var family *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "sentinelx_audit_pending_events" {
			family = mf
			break
		}
	}
	if family == nil {
		t.Fatal("sentinelx_audit_pending_events not gathered")
	}
	if got := family.GetMetric()[0].GetGauge().GetValue(); got != 7 {
		t.Errorf("gauge value = %f, want 7", got)
	}
}

func TestMiddlewarePassesRequestsThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/ping", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
