package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/md-rashed-zaman/homelube/libs/auth"
	"github.com/md-rashed-zaman/homelube/libs/httpx"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/calendar"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/email"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/inbox"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/lifecycle"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/sms"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/storage"
	"github.com/md-rashed-zaman/homelube/services/appointment-service/internal/templates"
)

const (
	testJWTSecret     = "operator-secret"
	testWebhookSecret = "webhook-secret"
)

type stubSMS struct {
	err error
}

func (s *stubSMS) Send(context.Context, string, string) (sms.Receipt, error) {
	if s.err != nil {
		return sms.Receipt{}, s.err
	}
	return sms.Receipt{Provider: "stub", MessageID: "sms-1"}, nil
}

func (s *stubSMS) ProviderID() string { return "stub" }

type stubEmail struct {
	verifyErr error
}

func (s *stubEmail) Send(context.Context, email.Message) (email.Result, error) {
	return email.Result{MessageID: "<mail@test>"}, nil
}

func (s *stubEmail) Verify(context.Context) error { return s.verifyErr }

type testServer struct {
	handler http.Handler
	sms     *stubSMS
	mail    *stubEmail
}

func newTestServer(t *testing.T, webhookSecret string, opts ...func(*RouterDeps)) *testServer {
	t.Helper()
	renderer, err := templates.New(templates.Config{FrontendURL: "https://app.example.com"})
	if err != nil {
		t.Fatalf("templates.New: %v", err)
	}
	ts := &testServer{sms: &stubSMS{}, mail: &stubEmail{}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := lifecycle.New(lifecycle.Deps{
		Store:     storage.NewMemoryStore(),
		Inbox:     inbox.NewMemory(),
		Email:     ts.mail,
		SMS:       ts.sms,
		Invites:   calendar.NewBuilder(renderer),
		Templates: renderer,
		Logger:    logger,
	})
	deps := RouterDeps{
		Service:       svc,
		Logger:        logger,
		Verifier:      auth.Verifier{Secret: testJWTSecret},
		WebhookSecret: webhookSecret,
		MaxBodyBytes:  1 << 20,
	}
	for _, o := range opts {
		o(&deps)
	}
	ts.handler = NewRouter(deps)
	return ts
}

func (ts *testServer) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	body := map[string]any{}
	if strings.HasPrefix(rr.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode response: %v (%s)", err, rr.Body.String())
		}
	}
	return rr, body
}

func jsonRequest(method, target string, v any) *http.Request {
	raw, _ := json.Marshal(v)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func bookingBody() map[string]any {
	return map[string]any{
		"vehicleInfo":          map[string]string{"make": "Toyota", "model": "Camry", "year": "2015"},
		"serviceAddress":       map[string]string{"street": "9 Elm St", "city": "Austin", "state": "TX", "zipCode": "73301"},
		"preferredDate":        "2030-03-04",
		"preferredTime":        "09:15",
		"customerEmail":        "driver@example.com",
		"customerPhone":        "(555) 123-4567",
		"serviceProviderEmail": "shop@example.com",
	}
}

func (ts *testServer) book(t *testing.T) string {
	t.Helper()
	rr, body := ts.do(t, jsonRequest(http.MethodPost, "/api/oil-changes", bookingBody()))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	id, _ := body["trackingId"].(string)
	if id == "" {
		t.Fatalf("missing trackingId in %v", body)
	}
	return id
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	now := time.Now()
	token, err := auth.SignHS256(auth.Claims{Sub: "ops-1", Role: role, Iat: now.Unix(), Exp: now.Add(time.Hour).Unix()}, testJWTSecret)
	if err != nil {
		t.Fatalf("SignHS256: %v", err)
	}
	return "Bearer " + token
}

func TestCreateAppointment(t *testing.T) {
	ts := newTestServer(t, "")
	rr, body := ts.do(t, jsonRequest(http.MethodPost, "/api/oil-changes", bookingBody()))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if body["success"] != true || body["message"] != "Appointment scheduled successfully" {
		t.Fatalf("unexpected body %v", body)
	}
	if id, _ := body["trackingId"].(string); len(id) != 32 {
		t.Fatalf("unexpected tracking id %q", id)
	}
	delivery, _ := body["delivery"].(map[string]any)
	if delivery["email"] != true || delivery["sms"] != true {
		t.Fatalf("unexpected delivery %v", delivery)
	}
}

func TestCreateAppointmentSmsFailureStillBooks(t *testing.T) {
	ts := newTestServer(t, "")
	ts.sms.err = errors.New("carrier down")
	rr, body := ts.do(t, jsonRequest(http.MethodPost, "/api/oil-changes", bookingBody()))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if delivery, _ := body["delivery"].(map[string]any); delivery["sms"] != false {
		t.Fatalf("expected sms delivery false, got %v", delivery)
	}
}

func TestCreateAppointmentRejectsBadInput(t *testing.T) {
	ts := newTestServer(t, "")

	req := bookingBody()
	delete(req, "customerPhone")
	rr, body := ts.do(t, jsonRequest(http.MethodPost, "/api/oil-changes", req))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if body["success"] != false || body["message"] != "Phone number is required for appointment notifications" {
		t.Fatalf("unexpected body %v", body)
	}

	bad := httptest.NewRequest(http.MethodPost, "/api/oil-changes", strings.NewReader("{"))
	bad.Header.Set("Content-Type", "application/json")
	if rr, _ := ts.do(t, bad); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", rr.Code)
	}
}

func TestCalendarResponseAndStatus(t *testing.T) {
	ts := newTestServer(t, "")
	id := ts.book(t)

	rr, body := ts.do(t, jsonRequest(http.MethodPost, "/api/oil-changes/calendar-response/"+id, map[string]string{"status": "accepted"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	appt, _ := body["appointment"].(map[string]any)
	if appt["calendarStatus"] != "accepted" || appt["vehicle"] != "Toyota Camry 2015" {
		t.Fatalf("unexpected summary %v", appt)
	}

	rr, body = ts.do(t, httptest.NewRequest(http.MethodGet, "/api/oil-changes/status/"+id, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body["acknowledged"] != true || body["emailSent"] != true || body["status"] != "pending" {
		t.Fatalf("unexpected status %v", body)
	}
	invite, _ := body["calendarInvite"].(map[string]any)
	if invite["status"] != "accepted" || invite["respondedAt"] == nil {
		t.Fatalf("unexpected invite %v", invite)
	}
}

func TestCalendarResponseErrors(t *testing.T) {
	ts := newTestServer(t, "")
	id := ts.book(t)

	rr, body := ts.do(t, jsonRequest(http.MethodPost, "/api/oil-changes/calendar-response/"+id, map[string]string{"status": "maybe"}))
	if rr.Code != http.StatusBadRequest || body["message"] != "Invalid calendar response status" {
		t.Fatalf("expected 400, got %d %v", rr.Code, body)
	}
	rr, body = ts.do(t, jsonRequest(http.MethodPost, "/api/oil-changes/calendar-response/unknown", map[string]string{"status": "accepted"}))
	if rr.Code != http.StatusNotFound || body["message"] != "Appointment not found" {
		t.Fatalf("expected 404, got %d %v", rr.Code, body)
	}
}

func TestConfirmLink(t *testing.T) {
	ts := newTestServer(t, "")
	id := ts.book(t)

	rr, body := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/oil-changes/confirm/"+id, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if appt, _ := body["appointment"].(map[string]any); appt["acknowledged"] != true || appt["calendarStatus"] != "pending" {
		t.Fatalf("unexpected summary %v", appt)
	}
	if rr, _ := ts.do(t, httptest.NewRequest(http.MethodGet, "/api/oil-changes/confirm/missing", nil)); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func formRequest(target string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestSmsWebhook(t *testing.T) {
	ts := newTestServer(t, "")
	ts.book(t)

	reply := url.Values{"msisdn": {"15551234567"}, "text": {"yes"}, "messageId": {"0A000001"}}
	rr, body := ts.do(t, formRequest("/api/sms/webhook", reply))
	if rr.Code != http.StatusOK || body["message"] != "Appointment confirmed" {
		t.Fatalf("expected confirmation, got %d %v", rr.Code, body)
	}
	rr, body = ts.do(t, formRequest("/api/sms/webhook", reply))
	if rr.Code != http.StatusOK || body["message"] != "Duplicate message ignored" {
		t.Fatalf("expected duplicate, got %d %v", rr.Code, body)
	}

	rr, body = ts.do(t, jsonRequest(http.MethodPost, "/api/sms/webhook", map[string]string{"from": "+15551234567", "text": "Y"}))
	if rr.Code != http.StatusNotFound || body["message"] != "No pending appointment found" {
		t.Fatalf("expected 404 once acknowledged, got %d %v", rr.Code, body)
	}
}

func TestBookingAndWebhookLimitsAreSeparate(t *testing.T) {
	ts := newTestServer(t, "", func(d *RouterDeps) {
		d.BookingLimiter = httpx.NewRateLimiter(1, time.Minute).Middleware()
		d.WebhookLimiter = httpx.NewRateLimiter(1, time.Minute).Middleware()
	})
	ts.book(t)
	if rr, _ := ts.do(t, jsonRequest(http.MethodPost, "/api/oil-changes", bookingBody())); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second booking: expected 429, got %d", rr.Code)
	}

	reply := url.Values{"msisdn": {"15551234567"}, "text": {"yes"}, "messageId": {"0A000002"}}
	rr, body := ts.do(t, formRequest("/api/sms/webhook", reply))
	if rr.Code != http.StatusOK || body["message"] != "Appointment confirmed" {
		t.Fatalf("webhook must not share the booking budget, got %d %v", rr.Code, body)
	}
	reply.Set("messageId", "0A000003")
	if rr, _ := ts.do(t, formRequest("/api/sms/webhook", reply)); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second webhook: expected 429, got %d", rr.Code)
	}
}

func TestSmsWebhookRepliesToUnknownText(t *testing.T) {
	ts := newTestServer(t, "")
	ts.book(t)

	rr, body := ts.do(t, jsonRequest(http.MethodPost, "/api/sms/webhook", map[string]string{"msisdn": "15551234567", "text": "STOP"}))
	if rr.Code != http.StatusBadRequest || body["message"] != "Invalid response" {
		t.Fatalf("expected 400, got %d %v", rr.Code, body)
	}
	rr, body = ts.do(t, jsonRequest(http.MethodPost, "/api/sms/webhook", map[string]string{"msisdn": "15551234567", "text": "N"}))
	if rr.Code != http.StatusOK || body["message"] != "Appointment cancelled" {
		t.Fatalf("expected 200, got %d %v", rr.Code, body)
	}
}

func TestWebhooksRequireSignature(t *testing.T) {
	ts := newTestServer(t, testWebhookSecret)
	id := ts.book(t)

	raw := []byte(`{"status":"accepted"}`)
	unsigned := httptest.NewRequest(http.MethodPost, "/api/oil-changes/calendar-response/"+id, bytes.NewReader(raw))
	unsigned.Header.Set("Content-Type", "application/json")
	if rr, _ := ts.do(t, unsigned); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	signed := httptest.NewRequest(http.MethodPost, "/api/oil-changes/calendar-response/"+id, bytes.NewReader(raw))
	signed.Header.Set("Content-Type", "application/json")
	signed.Header.Set(auth.SignatureHeader, auth.SignPayload(raw, testWebhookSecret))
	if rr, _ := ts.do(t, signed); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	form := url.Values{"msisdn": {"15551234567"}, "text": {"Y"}}.Encode()
	smsReq := httptest.NewRequest(http.MethodPost, "/api/sms/webhook", strings.NewReader(form))
	smsReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if rr, _ := ts.do(t, smsReq); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unsigned sms webhook, got %d", rr.Code)
	}
}

func TestOperatorRoutesRequireAdmin(t *testing.T) {
	ts := newTestServer(t, "")
	testSms := map[string]string{"phoneNumber": "555-123-4567", "message": "hello"}

	if rr, _ := ts.do(t, jsonRequest(http.MethodPost, "/api/sms/test", testSms)); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	req := jsonRequest(http.MethodPost, "/api/sms/test", testSms)
	req.Header.Set("Authorization", bearer(t, "customer"))
	if rr, _ := ts.do(t, req); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", rr.Code)
	}

	req = jsonRequest(http.MethodPost, "/api/sms/test", testSms)
	req.Header.Set("Authorization", bearer(t, "admin"))
	rr, body := ts.do(t, req)
	if rr.Code != http.StatusOK || body["provider"] != "stub" {
		t.Fatalf("expected 200, got %d %v", rr.Code, body)
	}

	ts.sms.err = errors.New("carrier down")
	req = jsonRequest(http.MethodPost, "/api/sms/test", testSms)
	req.Header.Set("Authorization", bearer(t, "admin"))
	if rr, _ := ts.do(t, req); rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 on gateway failure, got %d", rr.Code)
	}

	req = jsonRequest(http.MethodPost, "/api/sms/test", map[string]string{"phoneNumber": "", "message": "hello"})
	req.Header.Set("Authorization", bearer(t, "admin"))
	if rr, _ := ts.do(t, req); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestOperatorAppointmentRoutes(t *testing.T) {
	ts := newTestServer(t, "")
	id := ts.book(t)

	req := httptest.NewRequest(http.MethodPost, "/api/oil-changes/"+id+"/send-confirmation", nil)
	req.Header.Set("Authorization", bearer(t, "admin"))
	if rr, _ := ts.do(t, req); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/oil-changes/missing/send-confirmation", nil)
	req.Header.Set("Authorization", bearer(t, "admin"))
	if rr, _ := ts.do(t, req); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/oil-changes/verify-email-config", nil)
	req.Header.Set("Authorization", bearer(t, "admin"))
	if rr, _ := ts.do(t, req); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	ts.mail.verifyErr = errors.New("auth failed")
	req = httptest.NewRequest(http.MethodGet, "/api/oil-changes/verify-email-config", nil)
	req.Header.Set("Authorization", bearer(t, "admin"))
	if rr, _ := ts.do(t, req); rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
}
