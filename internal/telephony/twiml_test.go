package telephony

import (
	"strings"
	"testing"
)

func TestRenderEnqueue(t *testing.T) {
	got := RenderEnqueue("business-42", "/webhooks/provider/wait")

	if !strings.Contains(got, `<Enqueue waitUrl="/webhooks/provider/wait">business-42</Enqueue>`) {
		t.Fatalf("unexpected markup:\n%s", got)
	}
	if !strings.HasPrefix(got, "<?xml") {
		t.Fatalf("expected XML header:\n%s", got)
	}
}

func TestRenderWait(t *testing.T) {
	got := RenderWait("Please hold.", "https://cdn/hold.mp3")
	if !strings.Contains(got, "<Say>Please hold.</Say>") {
		t.Fatalf("expected greeting:\n%s", got)
	}
	if !strings.Contains(got, ">https://cdn/hold.mp3</Play>") {
		t.Fatalf("expected hold music:\n%s", got)
	}

	// No music configured: a long pause keeps the call alive.
	got = RenderWait("", "")
	if !strings.Contains(got, `<Pause length="30">`) {
		t.Fatalf("expected pause fallback:\n%s", got)
	}
	if strings.Contains(got, "<Say>") {
		t.Fatalf("expected no greeting verb:\n%s", got)
	}
}

func TestRenderReject(t *testing.T) {
	got := RenderReject("busy")
	if !strings.Contains(got, `<Reject reason="busy">`) {
		t.Fatalf("unexpected markup:\n%s", got)
	}
}

func TestRenderHangup(t *testing.T) {
	got := RenderHangup()
	if !strings.Contains(got, "<Hangup>") {
		t.Fatalf("unexpected markup:\n%s", got)
	}
}
