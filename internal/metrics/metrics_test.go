package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	assert.NotNil(t, m.Registry)
	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.HTTPRequestDuration)
	assert.NotNil(t, m.RecordsTotal)
	assert.NotNil(t, m.RecordsSkipped)
	assert.NotNil(t, m.IssuesCreated)
	assert.NotNil(t, m.CVEsReported)

	// a second instance must not collide with the first
	assert.NotPanics(t, func() { NewMetrics() })
}

func TestInstrumentClient(t *testing.T) {
	m := NewMetrics()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	defer ts.Close()

	client := m.InstrumentClient("jira", &http.Client{Timeout: time.Second})
	resp, err := client.Get(ts.URL + "/rest/api/2/myself")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("jira", "get", "200")))
}

func TestObserveRun(t *testing.T) {
	m := NewMetrics()

	m.ObserveRun(time.Now().Add(-time.Second), nil)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LastRunSuccess))
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.RunDuration), 1.0)

	m.ObserveRun(time.Now(), errors.New("boom"))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.LastRunSuccess))
}

func TestPush(t *testing.T) {
	m := NewMetrics()
	m.IssuesCreated.Add(2)

	var path string
	var body []byte
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer gateway.Close()

	err := m.Push(context.Background(), gateway.URL, "quay2jira", map[string]string{"image": "compliance-backend"})
	require.NoError(t, err)
	assert.Equal(t, "/metrics/job/quay2jira/image/compliance-backend", path)
	assert.NotEmpty(t, body)
}

func TestHandler(t *testing.T) {
	m := NewMetrics()
	m.RecordsTotal.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "quay2jira_records_total 1")
}
