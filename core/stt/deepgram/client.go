// Package deepgram transcribes utterances through Deepgram's
// streaming websocket API. The whole utterance is streamed in, the
// stream is closed, and the final transcripts are assembled into one
// line of text.
package deepgram

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"

	"github.com/lkovac/narrator/core/audio"
	"github.com/lkovac/narrator/core/stt"
)

const (
	listenEndpoint = "wss://api.deepgram.com/v1/listen"
	defaultModel   = "nova-3"

	// audioChunkBytes keeps websocket frames at 250ms of linear16
	// audio at the default sample rate.
	audioChunkBytes = 8000

	responseTimeout = 15 * time.Second
)

// Client is a batch adapter over Deepgram's live-transcription socket.
type Client struct {
	apiKey   string
	endpoint string
	model    string
	language string
	encoding audio.EncodingInfo
}

var _ stt.Transcriber = (*Client)(nil)

type ClientOption func(*Client)

func WithModel(model string) ClientOption {
	return func(c *Client) { c.model = model }
}

func WithLanguage(language string) ClientOption {
	return func(c *Client) { c.language = language }
}

func WithEncodingInfo(encoding audio.EncodingInfo) ClientOption {
	return func(c *Client) {
		if !encoding.IsZero() {
			c.encoding = encoding
		}
	}
}

func NewClient(opts ...ClientOption) (*Client, error) {
	apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY")
	if !ok {
		return nil, fmt.Errorf("deepgram api key not found")
	}

	client := &Client{
		apiKey:   apiKey,
		endpoint: listenEndpoint,
		model:    defaultModel,
		language: "en-US",
		encoding: audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func (c *Client) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	if len(pcm) == 0 {
		return "", stt.ErrNoTranscript
	}

	conn, err := c.dial()
	if err != nil {
		return "", err
	}
	defer conn.Close()

	transcripts := make(chan string, 1)
	readErrs := make(chan error, 1)
	go collectTranscript(conn, transcripts, readErrs)

	if err := c.sendAudio(ctx, conn, pcm); err != nil {
		return "", err
	}
	if err := conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return "", fmt.Errorf("closing deepgram stream: %w", err)
	}

	select {
	case transcript := <-transcripts:
		transcript = strings.TrimSpace(transcript)
		if transcript == "" {
			return "", stt.ErrNoTranscript
		}
		return transcript, nil
	case err := <-readErrs:
		return "", err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(responseTimeout):
		return "", fmt.Errorf("timed out waiting for deepgram transcript")
	}
}

func (c *Client) dial() (*websocket.Conn, error) {
	encoding, err := convertEncoding(c.encoding)
	if err != nil {
		return nil, fmt.Errorf("invalid encoding: %w", err)
	}

	listenURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid listen endpoint: %w", err)
	}
	queryParams := listenURL.Query()
	queryParams.Set("encoding", encoding.format)
	queryParams.Set("sample_rate", strconv.Itoa(encoding.sampleRate))
	queryParams.Set("channels", "1")
	queryParams.Set("model", c.model)
	queryParams.Set("language", c.language)
	queryParams.Set("smart_format", "true")
	listenURL.RawQuery = queryParams.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(listenURL.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}
	return conn, nil
}

func (c *Client) sendAudio(ctx context.Context, conn *websocket.Conn, pcm []byte) error {
	for start := 0; start < len(pcm); start += audioChunkBytes {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+audioChunkBytes, len(pcm))
		if err := conn.WriteMessage(websocket.BinaryMessage, pcm[start:end]); err != nil {
			return fmt.Errorf("failed to write to deepgram client: %w", err)
		}
	}
	return nil
}

// collectTranscript accumulates final transcript segments until the
// server closes the stream, then delivers the assembled text.
func collectTranscript(conn *websocket.Conn, out chan<- string, errs chan<- error) {
	var accumulated string
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				out <- accumulated
				return
			}
			errs <- fmt.Errorf("reading deepgram message: %w", err)
			return
		}
		if msgType == websocket.BinaryMessage {
			continue
		}
		accumulated = appendFinalTranscript(accumulated, msg)
	}
}

func appendFinalTranscript(accumulated string, msg []byte) string {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		log.Println("Failed to unmarshal deepgram message", err)
		return accumulated
	}
	if api.TypeResponse(parsedMsg.Type) != api.TypeMessageResponse {
		return accumulated
	}

	var msgResp api.MessageResponse
	if err := json.Unmarshal(msg, &msgResp); err != nil {
		log.Println("Failed to unmarshal deepgram message", err)
		return accumulated
	}
	if !msgResp.IsFinal || len(msgResp.Channel.Alternatives) == 0 {
		return accumulated
	}

	transcript := strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript)
	if transcript == "" {
		return accumulated
	}
	if accumulated == "" {
		return transcript
	}
	return accumulated + " " + transcript
}
