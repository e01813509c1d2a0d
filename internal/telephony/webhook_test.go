package telephony

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestParseIncoming(t *testing.T) {
	body := url.Values{
		"CallSid":    {"CA123"},
		"From":       {" +15550100 "},
		"To":         {"+15550200"},
		"CallerName": {" Jane Caller "},
	}
	req := httptest.NewRequest("POST", "/webhooks/provider/incoming", strings.NewReader(body.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := ParseIncoming(req)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if form.CallSid != "CA123" {
		t.Fatalf("expected CallSid CA123, got %q", form.CallSid)
	}
	if form.From != "+15550100" || form.To != "+15550200" {
		t.Fatalf("expected trimmed numbers, got %q/%q", form.From, form.To)
	}
	if form.CallerName != "Jane Caller" {
		t.Fatalf("expected trimmed caller name, got %q", form.CallerName)
	}
}

func TestParseStatus(t *testing.T) {
	body := url.Values{
		"CallSid":      {"CA123"},
		"CallStatus":   {"completed"},
		"CallDuration": {"73"},
	}
	req := httptest.NewRequest("POST", "/webhooks/provider/status", strings.NewReader(body.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := ParseStatus(req)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if form.CallStatus != "completed" || form.CallDuration != 73 {
		t.Fatalf("unexpected form %+v", form)
	}

	// Garbage duration parses to zero rather than an error.
	body.Set("CallDuration", "abc")
	req = httptest.NewRequest("POST", "/webhooks/provider/status", strings.NewReader(body.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	form, err = ParseStatus(req)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if form.CallDuration != 0 {
		t.Fatalf("expected zero duration, got %d", form.CallDuration)
	}
}

func TestParseRecording(t *testing.T) {
	body := url.Values{
		"CallSid":           {"CA123"},
		"RecordingUrl":      {"https://rec/1.mp3"},
		"RecordingDuration": {"42"},
	}
	req := httptest.NewRequest("POST", "/webhooks/provider/recording", strings.NewReader(body.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := ParseRecording(req)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if form.RecordingURL != "https://rec/1.mp3" || form.RecordingDuration != 42 {
		t.Fatalf("unexpected form %+v", form)
	}
}
