package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestRecordNotification(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordNotification("sms", "confirmation_request", nil)
	c.RecordNotification("sms", "confirmation_request", nil)
	c.RecordNotification("email", "confirmation", errors.New("smtp down"))

	if v := counterValue(t, reg, "homelube_notifications_total", map[string]string{"channel": "sms", "result": "sent"}); v != 2 {
		t.Fatalf("sms sent = %v, want 2", v)
	}
	if v := counterValue(t, reg, "homelube_notifications_total", map[string]string{"channel": "email", "result": "failed"}); v != 1 {
		t.Fatalf("email failed = %v, want 1", v)
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordInboundSms("confirmed")
	c.RecordTransition("acknowledged")
	c.RecordReminderSent()

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	for _, want := range []string{"homelube_inbound_sms_total", "homelube_lifecycle_transitions_total", "homelube_reminders_sent_total"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("response missing %s", want)
		}
	}
}
