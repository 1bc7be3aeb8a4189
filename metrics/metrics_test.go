package metrics_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/procurement-engine/metrics"
	"github.com/warp/procurement-engine/procurement"
	"github.com/warp/procurement-engine/procurement/store"
)

func TestCountingSink_CountsAndForwards(t *testing.T) {
	// GIVEN: A counting sink in front of a recorder
	m := metrics.New()
	var got []procurement.Notification
	sink := metrics.CountingSink{
		Metrics: m,
		Next: procurement.SinkFunc(func(_ context.Context, n procurement.Notification) error {
			got = append(got, n)
			return nil
		}),
	}

	// WHEN: Two approvals and a rejection are emitted
	ctx := context.Background()
	approved := procurement.Notification{Type: procurement.NotifyApproved, Severity: procurement.SeveritySuccess}
	require.NoError(t, sink.Notify(ctx, approved))
	require.NoError(t, sink.Notify(ctx, approved))
	require.NoError(t, sink.Notify(ctx, procurement.Notification{Type: procurement.NotifyRejected, Severity: procurement.SeverityError}))

	// THEN: Counters are labelled by type and severity
	assert.Len(t, got, 3)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("request_approved", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("request_rejected", "error")))
	assert.Equal(t, 0, testutil.CollectAndCount(m.SinkErrorsTotal))
}

func TestCountingSink_CountsDeliveryErrors(t *testing.T) {
	m := metrics.New()
	sink := metrics.CountingSink{
		Metrics: m,
		Next: procurement.SinkFunc(func(context.Context, procurement.Notification) error {
			return errors.New("socket closed")
		}),
	}

	err := sink.Notify(context.Background(), procurement.Notification{Type: procurement.NotifyCreated, Severity: procurement.SeverityInfo})

	assert.EqualError(t, err, "socket closed")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsTotal.WithLabelValues("request_created", "info")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkErrorsTotal.WithLabelValues("request_created")))
}

func TestCountingSink_NilNext(t *testing.T) {
	m := metrics.New()

	err := metrics.CountingSink{Metrics: m}.Notify(context.Background(), procurement.Notification{Type: procurement.NotifyCreated})

	assert.NoError(t, err)
}

func TestWatchRequests_GaugePerStatus(t *testing.T) {
	// GIVEN: Two pending requests and one closed
	ctx := context.Background()
	requests := store.NewMemory()
	for _, r := range []*procurement.PurchaseRequest{
		{ID: "a", Status: procurement.StatusPending},
		{ID: "b", Status: procurement.StatusPending},
		{ID: "c", Status: procurement.StatusClosed},
	} {
		require.NoError(t, requests.Create(ctx, r))
	}
	m := metrics.New()
	m.WatchRequests(requests, nil)

	// WHEN: The registry is gathered
	families, err := m.Registry.Gather()
	require.NoError(t, err)

	// THEN: Every status has a series, zero included
	values := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "procurement_requests" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			values[metric.GetLabel()[0].GetValue()] = metric.GetGauge().GetValue()
		}
	}
	assert.Len(t, values, len(procurement.AllStatuses))
	assert.Equal(t, 2.0, values["pending"])
	assert.Equal(t, 1.0, values["closed"])
	assert.Equal(t, 0.0, values["approved"])
}

func TestHandler_ExposesCustomGauges(t *testing.T) {
	m := metrics.New()
	m.WatchGauge("procurement_ws_clients", "Connected dashboards", func() float64 { return 3 })

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "procurement_ws_clients 3")
}
