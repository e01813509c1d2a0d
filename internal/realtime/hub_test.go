package realtime

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestHub() *Hub {
	h := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go h.Run()
	return h
}

func attach(t *testing.T, h *Hub, profileID, businessID string, buffer int) *Client {
	t.Helper()
	c := &Client{
		hub:        h,
		send:       make(chan []byte, buffer),
		profileID:  profileID,
		businessID: businessID,
	}
	h.register <- c
	return c
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d clients, have %d", n, h.ClientCount())
}

func eventJSON(t *testing.T, businessID string) []byte {
	t.Helper()
	b, err := json.Marshal(Event{
		Type:       EventCallCreated,
		BusinessID: businessID,
		EmittedAt:  time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("client %s received nothing", c.profileID)
		return nil
	}
}

func TestHub_DeliversOnlyToMatchingBusiness(t *testing.T) {
	h := newTestHub()

	a := attach(t, h, "agent-a", "biz-1", 4)
	b := attach(t, h, "agent-b", "biz-2", 4)
	waitForClients(t, h, 2)

	h.Broadcast(eventJSON(t, "biz-1"))

	msg := recv(t, a)
	var e Event
	if err := json.Unmarshal(msg, &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if e.BusinessID != "biz-1" || e.Type != EventCallCreated {
		t.Fatalf("unexpected event %+v", e)
	}

	select {
	case msg := <-b.send:
		t.Fatalf("biz-2 client must not receive biz-1 events, got %s", msg)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_DropsClientWithFullBuffer(t *testing.T) {
	h := newTestHub()

	// Zero-capacity buffer with no reader: the first delivery drops it.
	attach(t, h, "agent-slow", "biz-1", 0)
	waitForClients(t, h, 1)

	h.Broadcast(eventJSON(t, "biz-1"))
	waitForClients(t, h, 0)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	h := newTestHub()

	c := attach(t, h, "agent-a", "biz-1", 4)
	waitForClients(t, h, 1)

	h.unregister <- c
	waitForClients(t, h, 0)

	if _, ok := <-c.send; ok {
		t.Fatalf("expected send channel closed")
	}
}

func TestHub_DropsUnparseableBroadcast(t *testing.T) {
	h := newTestHub()

	c := attach(t, h, "agent-a", "biz-1", 4)
	waitForClients(t, h, 1)

	h.Broadcast([]byte("not json"))
	h.Broadcast(eventJSON(t, "biz-1"))

	// The bad frame is dropped; the next one still arrives.
	msg := recv(t, c)
	var e Event
	if err := json.Unmarshal(msg, &e); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
}
