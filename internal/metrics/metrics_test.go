package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"garage-client/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveSession(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveSession(model.Session{Token: "T2", State: model.SessionAuthenticated})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Authenticated))

	m.ObserveSession(model.Session{State: model.SessionAnonymous})
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Authenticated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionChanges.WithLabelValues("authenticated")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionChanges.WithLabelValues("anonymous")))
}

func TestObserveRealtimeIsOneHot(t *testing.T) {
	m := New(nil)

	m.ObserveRealtime(model.ConnConnecting)
	m.ObserveRealtime(model.ConnConnected)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RealtimeState.WithLabelValues("connected")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RealtimeState.WithLabelValues("connecting")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.RealtimeState.WithLabelValues("disconnected")))
}

func TestCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveUnread(3)
	m.ObserveToast(model.Toast{ID: 1, Severity: model.SeverityError})
	m.ObserveToast(model.Toast{ID: 2, Severity: model.SeverityError})
	m.ObserveTransportError(errors.New("refused"))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.UnreadCount))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ToastsShown.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TransportErrors))

	n, err := testutil.GatherAndCount(reg, "garage_client_toasts_shown_total")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHandlerExposesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveUnread(3)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "garage_client_unread_notifications 3"))
}
