package main

import (
	"io"
	"net/url"
	"testing"
	"time"

	"github.com/md-rashed-zaman/homelube/libs/auth"
)

func TestBuildSmsRequestIsSigned(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	req, err := buildRequest(options{baseURL: "http://svc/", kind: "sms", from: "15551234567", text: "YES", secret: "s3"}, now)
	if err != nil {
		t.Fatalf("buildRequest: %v", err)
	}
	if req.URL.String() != "http://svc/api/sms/webhook" {
		t.Fatalf("unexpected url %s", req.URL)
	}
	body, _ := io.ReadAll(req.Body)
	form, err := url.ParseQuery(string(body))
	if err != nil {
		t.Fatalf("parse form: %v", err)
	}
	if form.Get("msisdn") != "15551234567" || form.Get("text") != "YES" || form.Get("messageId") == "" {
		t.Fatalf("unexpected form %v", form)
	}
	if !auth.VerifyPayload(body, req.Header.Get(auth.SignatureHeader), "s3") {
		t.Fatal("signature does not match body")
	}
}

func TestBuildCalendarRequest(t *testing.T) {
	req, err := buildRequest(options{baseURL: "http://svc", kind: "calendar", trackingID: "abc", status: "declined"}, time.Now())
	if err != nil {
		t.Fatalf("buildRequest: %v", err)
	}
	if req.URL.Path != "/api/oil-changes/calendar-response/abc" {
		t.Fatalf("unexpected path %s", req.URL.Path)
	}
	if req.Header.Get(auth.SignatureHeader) != "" {
		t.Fatal("no secret should mean no signature")
	}
	body, _ := io.ReadAll(req.Body)
	if string(body) != `{"status":"declined"}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestBuildRequestValidates(t *testing.T) {
	for _, opts := range []options{
		{kind: "sms"},
		{kind: "calendar"},
		{kind: "fax"},
	} {
		if _, err := buildRequest(opts, time.Now()); err == nil {
			t.Fatalf("expected error for %+v", opts)
		}
	}
}
