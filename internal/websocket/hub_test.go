package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dennisdiepolder/cdrstats/internal/alerts"
	"github.com/dennisdiepolder/cdrstats/internal/report"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func TestNewHub(t *testing.T) {
	logger := zerolog.New(&bytes.Buffer{})
	hub := NewHub(logger)

	if hub == nil {
		t.Fatal("expected hub to be created")
	}
	if hub.clients == nil {
		t.Error("expected clients map to be initialized")
	}
	if hub.broadcast == nil {
		t.Error("expected broadcast channel to be initialized")
	}
	if hub.register == nil || hub.unregister == nil {
		t.Error("expected register channels to be initialized")
	}
}

func TestHubClientCount(t *testing.T) {
	hub := NewHub(zerolog.New(&bytes.Buffer{}))

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}

	// Simulate adding clients
	hub.mu.Lock()
	hub.clients[&Client{id: "test1"}] = true
	hub.clients[&Client{id: "test2"}] = true
	hub.mu.Unlock()

	if hub.ClientCount() != 2 {
		t.Errorf("expected 2 clients, got %d", hub.ClientCount())
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(zerolog.New(&bytes.Buffer{}))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func TestHubRegisterBroadcastUnregister(t *testing.T) {
	hub := startHub(t)

	client := &Client{id: "test-client", hub: hub, send: make(chan []byte, 1)}
	hub.register <- client

	hub.Broadcast([]byte("hello"))
	select {
	case msg := <-client.send:
		if string(msg) != "hello" {
			t.Errorf("expected hello, got %s", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the client to receive the broadcast")
	}

	hub.unregister <- client
	if _, ok := <-client.send; ok {
		t.Error("expected send channel to be closed after unregister")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients after unregister, got %d", hub.ClientCount())
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t)

	client := &Client{id: "slow", hub: hub, send: make(chan []byte)}
	hub.register <- client

	hub.Broadcast([]byte("first"))

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 0 {
		t.Error("expected the slow client to be dropped")
	}
}

func TestNotifyAfterShutdown(t *testing.T) {
	hub := NewHub(zerolog.New(&bytes.Buffer{}))
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	// Fill the buffer so only the done channel can unblock Notify
	for i := 0; i < cap(hub.broadcast); i++ {
		hub.broadcast <- nil
	}
	if err := hub.Notify(context.Background(), &report.Report{RunID: "run-1"}); err != nil {
		t.Errorf("expected no error after shutdown, got %v", err)
	}
}

func TestHandlerDeliversReportEvent(t *testing.T) {
	hub := startHub(t)
	handler := NewHandler(hub, []string{"http://localhost:5173"}, zerolog.New(&bytes.Buffer{}))

	server := httptest.NewServer(handler)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", hub.ClientCount())
	}

	r := &report.Report{
		RunID:     "run-1",
		Source:    "export.csv",
		Rows:      9,
		Numbers:   []report.NumberReport{{Number: "100"}, {Number: "200"}},
		Anomalies: []alerts.Anomaly{{Row: 8}},
	}
	if err := hub.Notify(context.Background(), r); err != nil {
		t.Fatalf("notify: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Type != EventReportGenerated || ev.RunID != "run-1" || ev.Rows != 9 || ev.Numbers != 2 || ev.Anomalies != 1 {
		t.Errorf("unexpected event: %+v", ev)
	}
}

func TestHandlerRejectsForeignOrigin(t *testing.T) {
	hub := startHub(t)
	handler := NewHandler(hub, []string{"http://localhost:5173"}, zerolog.New(&bytes.Buffer{}))

	server := httptest.NewServer(handler)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("expected the upgrade to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected status 403, got %v", resp)
	}
}
