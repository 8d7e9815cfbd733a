package live

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/recera/pulse/internal/session"
	"github.com/recera/pulse/pkg/event"
	"github.com/recera/pulse/pkg/state"
	"github.com/recera/pulse/pkg/vars"
)

var counterClass = func() *state.Class {
	c := state.NewClass("state").
		AddVar("count", vars.Int, 0).
		AddHandler("boom", nil, func(s *state.Instance, args map[string]any) ([]event.Event, error) {
			panic("induced")
		})
	if err := c.Seal(); err != nil {
		panic(err)
	}
	return c
}()

func counterFactory() (*state.Instance, error) {
	return state.NewInstance(counterClass)
}

func dialTestServer(t *testing.T, token string) (*websocket.Conn, func()) {
	t.Helper()
	store := session.NewMemoryStore(counterFactory, 0)
	srv := httptest.NewServer(NewServer(store, nil))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("Dial: %v", err)
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func readUpdate(t *testing.T, conn *websocket.Conn) state.Update {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var u state.Update
	if err := json.Unmarshal(data, &u); err != nil {
		t.Fatalf("Unmarshal %q: %v", data, err)
	}
	return u
}

func TestServer_DispatchRoundTrip(t *testing.T) {
	conn, done := dialTestServer(t, "t1")
	defer done()

	msg := map[string]any{
		"name":    "state.set_count",
		"payload": map[string]any{"count": 7},
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	u := readUpdate(t, conn)
	sub, ok := u.Delta["state"]
	if !ok {
		t.Fatalf("Delta = %v, want state subdelta", u.Delta)
	}
	// JSON numbers decode as float64.
	if got, ok := sub["count"].(float64); !ok || got != 7 {
		t.Errorf("count = %v, want 7", sub["count"])
	}
}

func TestServer_EventsOrderedPerToken(t *testing.T) {
	conn, done := dialTestServer(t, "t1")
	defer done()

	for i := 1; i <= 3; i++ {
		msg := map[string]any{
			"name":    "state.set_count",
			"payload": map[string]any{"count": i},
		}
		if err := conn.WriteJSON(msg); err != nil {
			t.Fatalf("WriteJSON: %v", err)
		}
	}
	for i := 1; i <= 3; i++ {
		u := readUpdate(t, conn)
		if got := u.Delta["state"]["count"].(float64); got != float64(i) {
			t.Errorf("update %d carried count %v", i, got)
		}
	}
}

func TestServer_HandlerPanicBecomesAlert(t *testing.T) {
	conn, done := dialTestServer(t, "t1")
	defer done()

	if err := conn.WriteJSON(map[string]any{"name": "state.boom"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	u := readUpdate(t, conn)
	if len(u.Events) != 1 || u.Events[0].Name != "window_alert" {
		t.Errorf("Events = %v, want one alert", u.Events)
	}
	if len(u.Delta) != 0 {
		t.Errorf("Delta = %v, want empty", u.Delta)
	}
}

func TestServer_UnknownHandlerDropped(t *testing.T) {
	conn, done := dialTestServer(t, "t1")
	defer done()

	if err := conn.WriteJSON(map[string]any{"name": "state.missing"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	// The bad event is dropped; a valid follow-up still round-trips.
	msg := map[string]any{
		"name":    "state.set_count",
		"payload": map[string]any{"count": 1},
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	u := readUpdate(t, conn)
	if got := u.Delta["state"]["count"].(float64); got != 1 {
		t.Errorf("count = %v, want 1", got)
	}
}

func TestServer_RequiresToken(t *testing.T) {
	store := session.NewMemoryStore(counterFactory, 0)
	srv := httptest.NewServer(NewServer(store, nil))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial failure without token")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Errorf("resp = %v, want 400", resp)
	}
}
