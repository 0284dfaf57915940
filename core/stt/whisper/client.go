// Package whisper transcribes utterances with a local whisper.cpp
// binary. Audio is handed over as a temporary WAV file and the
// printed transcript is scrubbed of annotation noise before it is
// returned.
package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/lkovac/narrator/core/audio"
	"github.com/lkovac/narrator/core/stt"
)

const (
	DefaultBinary = "whisper-cli"
	DefaultModel  = "ggml-tiny.en.bin"

	transcribeTimeout = 30 * time.Second
)

// Client runs a whisper.cpp command-line binary per utterance.
type Client struct {
	binary   string
	model    string
	language string
	encoding audio.EncodingInfo
}

var _ stt.Transcriber = (*Client)(nil)

type ClientOption func(*Client)

func WithBinary(path string) ClientOption {
	return func(c *Client) { c.binary = path }
}

func WithModel(path string) ClientOption {
	return func(c *Client) { c.model = path }
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

func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		binary:   DefaultBinary,
		model:    DefaultModel,
		language: "en",
		encoding: audio.GetDefaultEncodingInfo(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Available reports whether the whisper binary is on PATH.
func (c *Client) Available() bool {
	_, err := exec.LookPath(c.binary)
	return err == nil
}

func (c *Client) Transcribe(ctx context.Context, pcm []byte) (string, error) {
	if len(pcm) == 0 {
		return "", stt.ErrNoTranscript
	}

	ctx, cancel := context.WithTimeout(ctx, transcribeTimeout)
	defer cancel()

	wavPath, err := c.writeTempWAV(pcm)
	if err != nil {
		return "", err
	}
	defer os.Remove(wavPath)

	cmd := exec.CommandContext(ctx, c.binary,
		"-m", c.model,
		"-f", wavPath,
		"-l", c.language,
		"--no-timestamps",
	)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("running %s: %w: %s", c.binary, err, bytes.TrimSpace(exitErr.Stderr))
		}
		return "", fmt.Errorf("running %s: %w", c.binary, err)
	}

	text := CleanTranscript(string(out))
	if text == "" {
		return "", stt.ErrNoTranscript
	}
	return text, nil
}

func (c *Client) writeTempWAV(pcm []byte) (string, error) {
	file, err := os.CreateTemp("", "narrator-utterance-*.wav")
	if err != nil {
		return "", fmt.Errorf("creating utterance file: %w", err)
	}

	_, writeErr := file.Write(audio.EncodeWAV(pcm, c.encoding))
	closeErr := file.Close()
	if writeErr != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("writing utterance file: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("writing utterance file: %w", closeErr)
	}
	return file.Name(), nil
}
