package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// newMetricsTestServer builds a Server backed by a fresh isolated registry so
// tests do not pollute prometheus.DefaultRegisterer.
func newMetricsTestServer(t *testing.T) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s := newTestServer()
	s.cfg = &Config{MetricsRegistry: reg, MetricsGatherer: reg}
	s.metrics = newServerMetrics(reg)
	return s, reg
}

func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()
	_, reg := newMetricsTestServer(t)

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/metrics", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("want 200, got %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
}

func Test_Metrics_ChatTurnCounted(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t)

	// One full handler pass increments the turn counter with outcome "ok".
	req := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"collectionName":"eng-pool","message":"who knows go?"}`))
	s.handleChat(httptest.NewRecorder(), req)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() == "cvchat_chat_turns_total" {
			for _, m := range mf.GetMetric() {
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "outcome" && lp.GetValue() == "ok" {
						if m.GetCounter().GetValue() != 1 {
							t.Errorf("want counter=1, got %v", m.GetCounter().GetValue())
						}
						found = true
					}
				}
			}
		}
	}
	if !found {
		t.Error("cvchat_chat_turns_total{outcome=\"ok\"} not found in gathered metrics")
	}
}

func Test_Metrics_CollectionCreateCounted(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/collections",
		strings.NewReader(`{"name":"eng-pool","documents":[{"content":"x"}]}`))
	s.handleCollectionsCreate(httptest.NewRecorder(), req)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, mf := range mfs {
		if mf.GetName() == "cvchat_collections_creates_total" {
			for _, m := range mf.GetMetric() {
				for _, lp := range m.GetLabel() {
					if lp.GetName() == "outcome" && lp.GetValue() == "ok" {
						if m.GetCounter().GetValue() != 1 {
							t.Errorf("want counter=1, got %v", m.GetCounter().GetValue())
						}
						return
					}
				}
			}
		}
	}
	t.Error("cvchat_collections_creates_total{outcome=\"ok\"} not found in gathered metrics")
}

func Test_Metrics_InstrumentRecordsStatus(t *testing.T) {
	t.Parallel()
	s, reg := newMetricsTestServer(t)

	h := s.instrument("health", http.HandlerFunc(s.handleHealth))
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, mf := range mfs {
		if mf.GetName() == "cvchat_http_requests_total" {
			m := mf.GetMetric()[0]
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["handler"] != "health" || labels["code"] != "200" || labels["method"] != http.MethodGet {
				t.Errorf("unexpected labels %v", labels)
			}
			return
		}
	}
	t.Error("cvchat_http_requests_total not found in gathered metrics")
}
