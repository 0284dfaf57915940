package openwake

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{}

func TestScoreRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrading connection: %v", err)
			return
		}
		defer conn.Close()

		for {
			msgType, frame, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType != websocket.BinaryMessage {
				t.Errorf("expected binary frames, got type %d", msgType)
				return
			}
			if len(frame) != 2560 {
				t.Errorf("expected 2560-byte frames, got %d", len(frame))
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"hey jarvis":0.87}`)); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client := NewClient(WithEndpoint("ws" + strings.TrimPrefix(srv.URL, "http")))
	defer client.Close()

	for i := 0; i < 3; i++ {
		scores, err := client.Score(context.Background(), make([]byte, 2560))
		if err != nil {
			t.Fatalf("scoring frame %d: %v", i, err)
		}
		if scores["hey jarvis"] != 0.87 {
			t.Fatalf("unexpected scores: %v", scores)
		}
	}
}

func TestScoreRedialsAfterServerDrop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// One reply per connection, then hang up.
		if _, _, err := conn.ReadMessage(); err == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"hey jarvis":0.9}`))
		}
		conn.Close()
	}))
	defer srv.Close()

	client := NewClient(WithEndpoint("ws" + strings.TrimPrefix(srv.URL, "http")))
	defer client.Close()

	if _, err := client.Score(context.Background(), make([]byte, 2560)); err != nil {
		t.Fatalf("first score failed: %v", err)
	}

	recovered := false
	for i := 0; i < 3; i++ {
		if scores, err := client.Score(context.Background(), make([]byte, 2560)); err == nil {
			recovered = scores["hey jarvis"] == 0.9
			break
		}
	}
	if !recovered {
		t.Fatal("expected the client to redial after the server dropped the connection")
	}
}

func TestScoreRejectsMalformedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if _, _, err := conn.ReadMessage(); err == nil {
			_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		}
	}))
	defer srv.Close()

	client := NewClient(WithEndpoint("ws" + strings.TrimPrefix(srv.URL, "http")))
	defer client.Close()

	if _, err := client.Score(context.Background(), make([]byte, 2560)); err == nil {
		t.Fatal("expected malformed scores to error")
	}
}
