package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"callcenter-platform/internal/auth"
	"callcenter-platform/internal/directory"
	"callcenter-platform/internal/queue"
	"callcenter-platform/internal/reporting"
	"callcenter-platform/internal/session"

	"github.com/gin-gonic/gin"
)

type testAPI struct {
	router   *gin.Engine
	queue    *queue.MemoryRepo
	sessions *session.MemoryRepo
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	qrepo := queue.NewMemoryRepo()
	numbers := directory.NewMemoryRepo()
	numbers.Add(directory.Number{ID: "num-1", BusinessID: "biz-1", PhoneNumber: "+15550200", Active: true})
	srepo := session.NewMemoryRepo()
	srepo.PutExtension(session.Extension{ProfileID: "agent-x", BusinessID: "biz-1", Extension: "101"})

	h := Handlers{
		Queue:    queue.NewService(qrepo, numbers, nil, nil),
		Sessions: session.NewService(srepo, nil),
		Reports:  reporting.NewService(reporting.NewMemoryRepo()),
	}

	// Stand-in for the JWT middleware: inject a fixed agent identity.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), "agent-x", "biz-1", "agent")
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	})
	r.POST("/v1/calls/answer", h.Answer)
	r.POST("/v1/calls/hold", h.Hold)
	r.POST("/v1/calls/end", h.End)
	r.GET("/v1/calls/active", h.ListActive)
	r.GET("/v1/calls/:id", h.GetCall)
	r.GET("/v1/extension", h.GetExtension)
	r.POST("/v1/sessions/check-in", h.CheckIn)
	r.POST("/v1/sessions/check-out", h.CheckOut)
	r.POST("/v1/sessions/disconnect", h.Disconnect)
	r.GET("/v1/sessions/today-total", h.TodayTotal)
	r.POST("/v1/extension/availability", h.SetAvailability)
	r.GET("/v1/reports/agents/today", h.AgentsToday)

	return testAPI{router: r, queue: qrepo, sessions: srepo}
}

func (a testAPI) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a testAPI) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a testAPI) seedRingingCall(t *testing.T, providerID string) queue.Entry {
	t.Helper()
	svc := queue.NewService(a.queue, seededNumbers(), nil, nil)
	e, _, err := svc.IngestInboundCall(context.Background(), queue.InboundCall{
		CallerPhone:    "+15550100",
		CalledNumber:   "+15550200",
		ProviderCallID: providerID,
	})
	if err != nil {
		t.Fatalf("seed call failed: %v", err)
	}
	return e
}

func seededNumbers() *directory.MemoryRepo {
	numbers := directory.NewMemoryRepo()
	numbers.Add(directory.Number{ID: "num-1", BusinessID: "biz-1", PhoneNumber: "+15550200", Active: true})
	return numbers
}

func TestAnswer_ClaimsCall(t *testing.T) {
	api := newTestAPI(t)
	e := api.seedRingingCall(t, "CA400")

	w := api.post(t, "/v1/calls/answer", `{"callId":"`+e.ID+`"}`)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Call queue.Entry `json:"call"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Call.Status != queue.StatusAnswered || resp.Call.AnsweredBy != "agent-x" {
		t.Fatalf("unexpected call %+v", resp.Call)
	}
}

func TestAnswer_LostRaceIsConflict(t *testing.T) {
	api := newTestAPI(t)
	e := api.seedRingingCall(t, "CA401")

	if w := api.post(t, "/v1/calls/answer", `{"callId":"`+e.ID+`"}`); w.Code != 200 {
		t.Fatalf("first answer failed: %d", w.Code)
	}
	if w := api.post(t, "/v1/calls/answer", `{"callId":"`+e.ID+`"}`); w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestAnswer_UnknownCallIsNotFound(t *testing.T) {
	api := newTestAPI(t)

	if w := api.post(t, "/v1/calls/answer", `{"callId":"nope"}`); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHold_InvalidStateIsConflict(t *testing.T) {
	api := newTestAPI(t)
	e := api.seedRingingCall(t, "CA402")

	if w := api.post(t, "/v1/calls/hold", `{"callId":"`+e.ID+`"}`); w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestListActive_EmptyIsJSONArray(t *testing.T) {
	api := newTestAPI(t)

	w := api.get(t, "/v1/calls/active")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"calls":[]`) {
		t.Fatalf("expected empty array, got %s", w.Body.String())
	}
}

func TestGetCall_ScopedToBusiness(t *testing.T) {
	api := newTestAPI(t)
	e := api.seedRingingCall(t, "CA403")

	w := api.get(t, "/v1/calls/"+e.ID)
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Call queue.Entry `json:"call"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Call.ID != e.ID {
		t.Fatalf("unexpected call %+v", resp.Call)
	}

	if w := api.get(t, "/v1/calls/other"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetExtension(t *testing.T) {
	api := newTestAPI(t)

	w := api.get(t, "/v1/extension")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"extension":"101"`) {
		t.Fatalf("expected extension 101, got %s", w.Body.String())
	}
}

func TestSessionCheckInCheckOutFlow(t *testing.T) {
	api := newTestAPI(t)

	w := api.post(t, "/v1/sessions/check-in", `{}`)
	if w.Code != 200 {
		t.Fatalf("check-in failed: %d %s", w.Code, w.Body.String())
	}

	var resp struct {
		Session session.LoginSession `json:"session"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !resp.Session.Open() {
		t.Fatalf("expected open session")
	}

	w = api.post(t, "/v1/sessions/check-out", `{"sessionId":"`+resp.Session.ID+`"}`)
	if w.Code != 200 {
		t.Fatalf("check-out failed: %d %s", w.Code, w.Body.String())
	}

	// Nothing left to close.
	if w = api.post(t, "/v1/sessions/check-out", `{}`); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestDisconnect_Always204(t *testing.T) {
	api := newTestAPI(t)

	if w := api.post(t, "/v1/sessions/disconnect", ``); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
}

func TestTodayTotal_ReturnsSeconds(t *testing.T) {
	api := newTestAPI(t)

	api.post(t, "/v1/sessions/check-in", `{}`)

	w := api.get(t, "/v1/sessions/today-total")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"total_seconds"`) {
		t.Fatalf("expected total_seconds field, got %s", w.Body.String())
	}
}

func TestSetAvailability_RequiresBool(t *testing.T) {
	api := newTestAPI(t)

	if w := api.post(t, "/v1/extension/availability", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := api.post(t, "/v1/extension/availability", `{"available":true}`); w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestAgentsToday_EmptyIsJSONArray(t *testing.T) {
	api := newTestAPI(t)

	w := api.get(t, "/v1/reports/agents/today")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"agents":[]`) {
		t.Fatalf("expected empty array, got %s", w.Body.String())
	}
}
