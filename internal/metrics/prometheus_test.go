package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestPrometheusHandler_ExposesSortedCounters(t *testing.T) {
	m := New()
	m.Inc(RoomJoins)
	m.Inc(RoomJoins)
	m.Inc(ConnectionsOpened)

	rec := httptest.NewRecorder()
	PrometheusHandler(m).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q", ct)
	}

	body := rec.Body.String()
	opened := `signalmaster_events_total{event="connections_opened"} 1`
	joins := `signalmaster_events_total{event="room_joins"} 2`
	if !strings.Contains(body, opened) || !strings.Contains(body, joins) {
		t.Fatalf("missing counters in body:\n%s", body)
	}
	if strings.Index(body, opened) > strings.Index(body, joins) {
		t.Fatalf("counters not sorted:\n%s", body)
	}
}

func TestPrometheusHandler_NilMetrics(t *testing.T) {
	rec := httptest.NewRecorder()
	PrometheusHandler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics
	m.Inc(RoomJoins)
	if got := m.Get(RoomJoins); got != 0 {
		t.Fatalf("Get=%d, want 0", got)
	}
}
