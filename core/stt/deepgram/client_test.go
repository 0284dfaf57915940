package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lkovac/narrator/core/audio"
	"github.com/lkovac/narrator/core/stt"
)

var upgrader = websocket.Upgrader{}

// newFakeListenServer accepts one websocket session, discards audio
// until the stream is closed, then replies with the given final
// transcript segments and a normal close.
func newFakeListenServer(t *testing.T, finalTranscripts []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token test-key" {
			t.Errorf("unexpected authorization header %q", got)
		}
		if got := r.URL.Query().Get("encoding"); got != "linear16" {
			t.Errorf("unexpected encoding %q", got)
		}
		if got := r.URL.Query().Get("sample_rate"); got != "16000" {
			t.Errorf("unexpected sample rate %q", got)
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrading connection: %v", err)
			return
		}
		defer conn.Close()

		for {
			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.BinaryMessage {
				continue
			}
			if strings.Contains(string(msg), "CloseStream") {
				break
			}
		}

		_ = conn.WriteJSON(map[string]any{
			"type":     "Results",
			"is_final": false,
			"channel": map[string]any{
				"alternatives": []map[string]any{{"transcript": "interim noise"}},
			},
		})
		for _, transcript := range finalTranscripts {
			_ = conn.WriteJSON(map[string]any{
				"type":     "Results",
				"is_final": true,
				"channel": map[string]any{
					"alternatives": []map[string]any{{"transcript": transcript}},
				},
			})
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
	}))
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	t.Setenv("DEEPGRAM_API_KEY", "test-key")

	client, err := NewClient()
	if err != nil {
		t.Fatalf("creating client: %v", err)
	}
	client.endpoint = "ws" + strings.TrimPrefix(srv.URL, "http")
	return client
}

func TestTranscribeAssemblesFinalSegments(t *testing.T) {
	srv := newFakeListenServer(t, []string{"open the", "config file"})
	defer srv.Close()

	client := newTestClient(t, srv)
	got, err := client.Transcribe(context.Background(), make([]byte, 20_000))
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if got != "open the config file" {
		t.Fatalf("expected assembled transcript, got %q", got)
	}
}

func TestTranscribeSilence(t *testing.T) {
	srv := newFakeListenServer(t, nil)
	defer srv.Close()

	client := newTestClient(t, srv)
	_, err := client.Transcribe(context.Background(), make([]byte, 3200))
	if !errors.Is(err, stt.ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript, got %v", err)
	}
}

func TestConvertEncoding(t *testing.T) {
	wire, err := convertEncoding(audio.GetDefaultEncodingInfo())
	if err != nil {
		t.Fatalf("default encoding should convert: %v", err)
	}
	if wire.format != "linear16" || wire.sampleRate != 16000 {
		t.Fatalf("unexpected wire encoding: %+v", wire)
	}

	if _, err := convertEncoding(audio.EncodingInfo{SampleRate: 44100, Format: audio.EncodingLinear16}); err == nil {
		t.Fatal("expected unsupported sample rate to error")
	}
	if _, err := convertEncoding(audio.EncodingInfo{SampleRate: 16000}); err == nil {
		t.Fatal("expected missing format to error")
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "placeholder")
	os.Unsetenv("DEEPGRAM_API_KEY")

	if _, err := NewClient(); err == nil {
		t.Fatal("expected an error without an api key")
	}
}
