package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()
	m.BookingCreated("CONFIRMED")
	m.BookingCreated("CONFIRMED")
	m.BookingCreated("WAITLISTED")
	m.BookingCancelled("CONFIRMED")
	m.Promoted()
	m.Retried()
	m.Expired(3)
	m.Expired(0)
	m.NotificationFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.bookings.WithLabelValues("CONFIRMED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookings.WithLabelValues("WAITLISTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cancellations.WithLabelValues("CONFIRMED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.promotions))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.retries))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.expired))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notificationFailures))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.BookingCreated("CONFIRMED")
		m.BookingCancelled("WAITLISTED")
		m.Promoted()
		m.Retried()
		m.Expired(1)
		m.NotificationFailed()
	})
	assert.NotNil(t, m.Handler())
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Promoted()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "flightseats_waitlist_promotions_total 1")
}
