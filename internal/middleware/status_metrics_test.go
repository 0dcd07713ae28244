package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockStatusMetrics はHTTPStatusMetricsのモック実装。
type mockStatusMetrics struct {
	statuses []int
}

var _ HTTPStatusMetrics = (*mockStatusMetrics)(nil)

func (m *mockStatusMetrics) RecordHTTPStatus(statusCode int) {
	m.statuses = append(m.statuses, statusCode)
}

func TestStatusMetricsMiddleware_RecordsResponseStatus(t *testing.T) {
	metrics := &mockStatusMetrics{}
	mw := NewStatusMetricsMiddleware(metrics)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/missing", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if len(metrics.statuses) != 1 || metrics.statuses[0] != http.StatusNotFound {
		t.Errorf("recorded statuses = %v, want [404]", metrics.statuses)
	}
}

func TestStatusMetricsMiddleware_DefaultsTo200(t *testing.T) {
	metrics := &mockStatusMetrics{}
	mw := NewStatusMetricsMiddleware(metrics)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if len(metrics.statuses) != 1 || metrics.statuses[0] != http.StatusOK {
		t.Errorf("recorded statuses = %v, want [200]", metrics.statuses)
	}
}

func TestStatusMetricsMiddleware_NilMetrics_PassesThrough(t *testing.T) {
	mw := NewStatusMetricsMiddleware(nil)

	handlerCalled := false
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !handlerCalled {
		t.Fatal("handler should be called with nil metrics")
	}
}
