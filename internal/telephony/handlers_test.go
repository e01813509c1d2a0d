package telephony

import (
	"context"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"callcenter-platform/internal/config"
	"callcenter-platform/internal/directory"
	"callcenter-platform/internal/queue"

	"github.com/gin-gonic/gin"
)

func newTestGateway(t *testing.T) (*gin.Engine, *queue.MemoryRepo) {
	t.Helper()
	return newTestGatewayWithCap(t, nil)
}

func newTestGatewayWithCap(t *testing.T, guard CapGuard) (*gin.Engine, *queue.MemoryRepo) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := queue.NewMemoryRepo()
	numbers := directory.NewMemoryRepo()
	numbers.Add(directory.Number{
		ID:          "num-1",
		BusinessID:  "biz-1",
		PhoneNumber: "+15550200",
		Active:      true,
	})

	gw := &Gateway{
		Queue:   queue.NewService(repo, numbers, nil, nil),
		Numbers: numbers,
		Cap:     guard,
		Provider: config.ProviderConfig{
			WaitGreeting: "Please hold.",
		},
	}

	r := gin.New()
	r.POST("/webhooks/provider/incoming", gw.HandleIncoming)
	r.POST("/webhooks/provider/wait", gw.HandleWait)
	r.POST("/webhooks/provider/status", gw.HandleStatus)
	r.POST("/webhooks/provider/recording", gw.HandleRecording)
	return r, repo
}

// fakeCapGuard counts slot traffic so tests can assert the gateway's
// acquire/release bookkeeping.
type fakeCapGuard struct {
	admit    bool
	acquired int
	released int
}

func (f *fakeCapGuard) Acquire(ctx context.Context, businessID string) (bool, error) {
	f.acquired++
	return f.admit, nil
}

func (f *fakeCapGuard) Release(ctx context.Context, businessID string) error {
	f.released++
	return nil
}

func postWebhook(r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleIncoming_EnqueuesMappedNumber(t *testing.T) {
	r, repo := newTestGateway(t)

	w := postWebhook(r, "/webhooks/provider/incoming", url.Values{
		"CallSid": {"CA300"},
		"From":    {"+15550100"},
		"To":      {"+15550200"},
	})

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/xml") {
		t.Fatalf("expected xml response, got %q", ct)
	}
	if !strings.Contains(w.Body.String(), "<Enqueue") || !strings.Contains(w.Body.String(), "business-biz-1") {
		t.Fatalf("expected enqueue markup:\n%s", w.Body.String())
	}

	entries, _ := repo.ListActive(context.Background(), "biz-1")
	if len(entries) != 1 || entries[0].ProviderCallID != "CA300" {
		t.Fatalf("expected one ringing entry for CA300")
	}
}

func TestHandleIncoming_RejectsUnmappedNumber(t *testing.T) {
	r, repo := newTestGateway(t)

	w := postWebhook(r, "/webhooks/provider/incoming", url.Values{
		"CallSid": {"CA301"},
		"From":    {"+15550100"},
		"To":      {"+19999999"},
	})

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `<Reject reason="rejected">`) {
		t.Fatalf("expected reject markup:\n%s", w.Body.String())
	}
	entries, _ := repo.ListActive(context.Background(), "biz-1")
	if len(entries) != 0 {
		t.Fatalf("expected no entry created")
	}
}

func TestHandleIncoming_RetryReusesLiveEntry(t *testing.T) {
	r, repo := newTestGateway(t)

	form := url.Values{
		"CallSid": {"CA302"},
		"From":    {"+15550100"},
		"To":      {"+15550200"},
	}
	postWebhook(r, "/webhooks/provider/incoming", form)
	postWebhook(r, "/webhooks/provider/incoming", form)

	entries, _ := repo.ListActive(context.Background(), "biz-1")
	if len(entries) != 1 {
		t.Fatalf("expected provider retry to reuse the live entry, got %d", len(entries))
	}
}

func TestHandleIncoming_RetryReturnsCapSlot(t *testing.T) {
	guard := &fakeCapGuard{admit: true}
	r, _ := newTestGatewayWithCap(t, guard)

	form := url.Values{
		"CallSid": {"CA305"},
		"From":    {"+15550100"},
		"To":      {"+15550200"},
	}
	postWebhook(r, "/webhooks/provider/incoming", form)
	postWebhook(r, "/webhooks/provider/incoming", form)

	if guard.acquired != 2 {
		t.Fatalf("expected both deliveries to hit the cap, got %d", guard.acquired)
	}
	if guard.released != 1 {
		t.Fatalf("expected the retry's slot refunded, got %d releases", guard.released)
	}

	postWebhook(r, "/webhooks/provider/status", url.Values{
		"CallSid":    {"CA305"},
		"CallStatus": {"completed"},
	})
	if guard.acquired-guard.released != 0 {
		t.Fatalf("expected no slots held after terminal status, got %d", guard.acquired-guard.released)
	}
}

func TestHandleIncoming_OverCapRefusedAsBusy(t *testing.T) {
	guard := &fakeCapGuard{admit: false}
	r, repo := newTestGatewayWithCap(t, guard)

	w := postWebhook(r, "/webhooks/provider/incoming", url.Values{
		"CallSid": {"CA306"},
		"From":    {"+15550100"},
		"To":      {"+15550200"},
	})

	if !strings.Contains(w.Body.String(), `<Reject reason="busy">`) {
		t.Fatalf("expected busy markup:\n%s", w.Body.String())
	}
	entries, _ := repo.ListActive(context.Background(), "biz-1")
	if len(entries) != 0 {
		t.Fatalf("expected no entry created")
	}
	if guard.released != 0 {
		t.Fatalf("expected no release for a refused call, got %d", guard.released)
	}
}

func TestHandleWait_ReturnsHoldMarkup(t *testing.T) {
	r, _ := newTestGateway(t)

	w := postWebhook(r, "/webhooks/provider/wait", url.Values{})
	if !strings.Contains(w.Body.String(), "<Say>Please hold.</Say>") {
		t.Fatalf("expected greeting markup:\n%s", w.Body.String())
	}
}

func TestHandleStatus_ClosesEntryAndAcks(t *testing.T) {
	r, repo := newTestGateway(t)

	postWebhook(r, "/webhooks/provider/incoming", url.Values{
		"CallSid": {"CA303"},
		"From":    {"+15550100"},
		"To":      {"+15550200"},
	})

	w := postWebhook(r, "/webhooks/provider/status", url.Values{
		"CallSid":      {"CA303"},
		"CallStatus":   {"no-answer"},
		"CallDuration": {"15"},
	})

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"received":true`) {
		t.Fatalf("expected ack body:\n%s", w.Body.String())
	}
	entries, _ := repo.ListActive(context.Background(), "biz-1")
	if len(entries) != 0 {
		t.Fatalf("expected entry closed")
	}
	if repo.HistoryCount() != 1 {
		t.Fatalf("expected one history row, got %d", repo.HistoryCount())
	}
}

func TestHandleStatus_UnknownCallStillAcks(t *testing.T) {
	r, _ := newTestGateway(t)

	w := postWebhook(r, "/webhooks/provider/status", url.Values{
		"CallSid":    {"CA-unknown"},
		"CallStatus": {"completed"},
	})

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"received":false`) {
		t.Fatalf("expected negative ack body:\n%s", w.Body.String())
	}
}

func TestHandleRecording_AttachesAfterStatus(t *testing.T) {
	r, repo := newTestGateway(t)

	postWebhook(r, "/webhooks/provider/incoming", url.Values{
		"CallSid": {"CA304"},
		"From":    {"+15550100"},
		"To":      {"+15550200"},
	})
	postWebhook(r, "/webhooks/provider/status", url.Values{
		"CallSid":      {"CA304"},
		"CallStatus":   {"completed"},
		"CallDuration": {"30"},
	})

	w := postWebhook(r, "/webhooks/provider/recording", url.Values{
		"CallSid":           {"CA304"},
		"RecordingUrl":      {"https://rec/304.mp3"},
		"RecordingDuration": {"28"},
	})

	if w.Code != 200 || !strings.Contains(w.Body.String(), `"received":true`) {
		t.Fatalf("expected ack, got %d %s", w.Code, w.Body.String())
	}

	entry, err := repo.LatestEntryByProviderID(context.Background(), "CA304")
	if err != nil {
		t.Fatalf("entry lookup failed: %v", err)
	}
	h, err := repo.HistoryByEntryID(context.Background(), entry.ID)
	if err != nil {
		t.Fatalf("history lookup failed: %v", err)
	}
	if h.RecordingURL != "https://rec/304.mp3" {
		t.Fatalf("expected recording attached, got %q", h.RecordingURL)
	}
	if h.RecordingDurationSeconds != 28 {
		t.Fatalf("expected 28s recording, got %d", h.RecordingDurationSeconds)
	}
}
