package telemetry

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAnnouncement(t *testing.T) {
	acc := testutil.ToFloat64(AnnouncementsTotal.WithLabelValues("accepted"))
	rej := testutil.ToFloat64(AnnouncementsTotal.WithLabelValues("rejected"))

	RecordAnnouncement(true)
	RecordAnnouncement(true)
	RecordAnnouncement(false)

	assert.Equal(t, acc+2, testutil.ToFloat64(AnnouncementsTotal.WithLabelValues("accepted")))
	assert.Equal(t, rej+1, testutil.ToFloat64(AnnouncementsTotal.WithLabelValues("rejected")))
}

func TestRecordQueryAndGauge(t *testing.T) {
	ok := testutil.ToFloat64(QueriesTotal.WithLabelValues("ok"))
	bad := testutil.ToFloat64(QueriesTotal.WithLabelValues("error"))

	RecordQuery(nil, time.Millisecond)
	RecordQuery(errors.New("reset"), time.Millisecond)
	SetActiveMusicians(3)

	assert.Equal(t, ok+1, testutil.ToFloat64(QueriesTotal.WithLabelValues("ok")))
	assert.Equal(t, bad+1, testutil.ToFloat64(QueriesTotal.WithLabelValues("error")))
	assert.Equal(t, float64(3), testutil.ToFloat64(ActiveMusicians))
}

func TestInstrumentCountsStatusClass(t *testing.T) {
	before := testutil.ToFloat64(RequestsTotal.WithLabelValues("test", "4xx"))

	h := Instrument("test", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(RequestsTotal.WithLabelValues("test", "4xx")))
}

func TestMetricsHandlerExposesSeries(t *testing.T) {
	SetBuildInfo("test", "abc123")
	RecordAnnouncement(true)

	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	for _, name := range []string{"auditor_announcements_total", "auditor_build_info", "auditor_uptime_seconds"} {
		assert.True(t, strings.Contains(body, name), "missing %s", name)
	}
}
