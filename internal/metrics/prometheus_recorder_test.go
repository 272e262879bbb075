package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var _ Recorder = NoopRecorder{}
var _ Recorder = (*PrometheusRecorder)(nil)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncPublishOutcome(OutcomePublished)
	pr.IncPublishOutcome(OutcomePublished)
	pr.IncPublishOutcome(OutcomeFailed)
	pr.ObservePublishDuration(150 * time.Millisecond)
	pr.ObservePublishAttempts(2)
	pr.IncConflict()
	pr.IncRetry("create_blob", "network")
	pr.IncFailure("exhausted")
	pr.IncCoalesced()
	pr.SetQueueDepth(3)
	pr.SetInFlight(1)

	require.InDelta(t, 2, testutil.ToFloat64(pr.outcomes.WithLabelValues("published")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(pr.outcomes.WithLabelValues("failed")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(pr.conflicts), 0)
	require.InDelta(t, 1, testutil.ToFloat64(pr.retries.WithLabelValues("create_blob", "network")), 0)
	require.InDelta(t, 3, testutil.ToFloat64(pr.queueDepth), 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, mfs)
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := NewRegistry()
	NewPrometheusRecorder(reg).IncConflict()

	srv := httptest.NewServer(HTTPHandler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "notesync_ref_conflicts_total 1")
	require.Contains(t, string(body), "go_goroutines")
}
