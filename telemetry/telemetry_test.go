package telemetry

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestCounters(t *testing.T) {
	m, err := New("detai", "1.2.3")
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown(t.Context()) })

	ctx := t.Context()
	m.RecordRequest(ctx, "/health", http.StatusOK)
	m.RecordRequest(ctx, "/health", http.StatusOK)
	m.RecordCapture(ctx, "permission_denied")
	m.RecordSpeech(ctx, "speak", "ok")

	body := scrape(t, m)
	assert.Contains(t, body, "companion_http_requests")
	assert.Contains(t, body, `route="/health"`)
	assert.Contains(t, body, `status="200"`)
	assert.Contains(t, body, "companion_capture_results")
	assert.Contains(t, body, `result="permission_denied"`)
	assert.Contains(t, body, "companion_speech_ops")
	assert.Contains(t, body, `op="speak"`)
}

func TestSeparateRegistries(t *testing.T) {
	a, err := New("detai", "dev")
	require.NoError(t, err)
	b, err := New("bakable", "dev")
	require.NoError(t, err)

	a.RecordCapture(t.Context(), "ok")
	assert.Contains(t, scrape(t, a), `result="ok"`)
	assert.NotContains(t, scrape(t, b), `result="ok"`)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.RecordRequest(t.Context(), "/health", http.StatusOK)
	m.RecordCapture(t.Context(), "ok")
	m.RecordSpeech(t.Context(), "listen", "ok")
	assert.NoError(t, m.Shutdown(t.Context()))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
