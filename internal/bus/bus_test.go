package bus

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
)

func TestPublishReachesHub(t *testing.T) {
	got := make(chan Message, 1)
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		got <- m
	}))
	defer srv.Close()

	b := New("ws"+strings.TrimPrefix(srv.URL, "http"), "moodvox", 20*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)

	b.Publish("mood", map[string]string{"currentMood": "happy"})

	select {
	case m := <-got:
		if m.Kind != "mood" || m.From != "moodvox" {
			t.Fatalf("message=%+v", m)
		}
		if !strings.Contains(string(m.Content), `"happy"`) {
			t.Fatalf("content=%s", m.Content)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("hub received nothing")
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	b := New("ws://127.0.0.1:1", "moodvox", time.Hour)
	done := make(chan struct{})
	go func() {
		for i := 0; i < queueSize*3; i++ {
			b.Publish("reply", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Publish blocked without a running bus")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	b := New("ws://127.0.0.1:1", "moodvox", time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
