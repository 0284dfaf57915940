// Package stt converts captured utterance audio into text.
package stt

import (
	"context"
	"errors"
)

// ErrNoTranscript signals that an utterance contained no usable
// speech. Callers discard the session instead of treating it as a
// failure.
var ErrNoTranscript = errors.New("no transcript")

// Transcriber converts one complete PCM utterance into text. The
// utterance encoding is fixed at construction time.
type Transcriber interface {
	// Transcribe blocks until the audio has been converted or ctx is
	// cancelled. It returns ErrNoTranscript when nothing usable was
	// recognized.
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}
