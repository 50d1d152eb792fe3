package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNew_Independent(t *testing.T) {
	a := New()
	b := New()

	a.Auth("login", OutcomeOK)
	require.Equal(t, 1.0, testutil.ToFloat64(a.AuthEvents.WithLabelValues("login", OutcomeOK)))
	require.Equal(t, 0.0, testutil.ToFloat64(b.AuthEvents.WithLabelValues("login", OutcomeOK)))
}

func TestObserveHTTP(t *testing.T) {
	m := New()
	m.ObserveHTTP("/api/v1/login", http.MethodPost, 200, 12*time.Millisecond)
	m.ObserveHTTP("/api/v1/login", http.MethodPost, 200, 3*time.Millisecond)
	m.ObserveHTTP("", http.MethodGet, 404, time.Millisecond)

	require.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/v1/login", "POST", "200")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("unmatched", "GET", "404")))
	require.Equal(t, 2, testutil.CollectAndCount(m.HTTPDuration))
}

func TestCodeIssued_CountsRetries(t *testing.T) {
	m := New()
	m.CodeIssued(0)
	m.CodeIssued(3)

	require.Equal(t, 2.0, testutil.ToFloat64(m.OTPIssued))
	require.Equal(t, 3.0, testutil.ToFloat64(m.OTPCollisions))
}

func TestMailObserver(t *testing.T) {
	m := New()
	m.Mail.MailSent()
	m.Mail.MailSent()
	m.Mail.MailFailed()
	m.Mail.MailDropped()

	require.Equal(t, 2.0, testutil.ToFloat64(m.Mail.sent))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Mail.failed))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Mail.dropped))
}

func TestHandler_ServesText(t *testing.T) {
	m := New()
	m.GateRejected("no_credential")
	m.RateLimited("login_ip")

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	text := string(body)
	require.True(t, strings.Contains(text, `secureauth_gate_rejections_total{reason="no_credential"} 1`))
	require.True(t, strings.Contains(text, `secureauth_rate_limited_total{rule="login_ip"} 1`))
	require.True(t, strings.Contains(text, "go_goroutines"))
}
