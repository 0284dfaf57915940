// Package voice captures one spoken utterance from the microphone,
// bounded by voice-activity detection, and routes the transcript into
// the watched terminal.
package voice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lkovac/narrator/core/audio"
	"github.com/lkovac/narrator/core/stt"
)

var (
	// ErrBusy is returned when a session is requested while the
	// microphone is already held.
	ErrBusy = errors.New("voice input busy")
	// ErrNoSpeech is returned when a session ends without a usable
	// utterance. The session is discarded, nothing is injected.
	ErrNoSpeech = errors.New("no speech detected")
)

const (
	DefaultSilenceTimeout  = 1500 * time.Millisecond
	DefaultListenTimeout   = 10 * time.Second
	DefaultSpeechThreshold = 0.5

	// frameSamples is the VAD analysis frame, ~32ms at 16kHz. Capture
	// periods are re-chunked to this size.
	frameSamples = 512

	// minUtteranceSamples discards utterances shorter than 0.1s.
	minUtteranceSamples = 1600
)

// Injector delivers a transcript into the watched terminal.
type Injector interface {
	Inject(ctx context.Context, text string) error
}

// CuePlayer marks the capture window audibly for the operator.
type CuePlayer interface {
	Activation()
	Deactivation()
}

type noopCues struct{}

func (noopCues) Activation()   {}
func (noopCues) Deactivation() {}

// Session records one utterance at a time. A single Session value is
// reused across triggers, the microphone gate serializes runs.
type Session struct {
	capturer    audio.Capturer
	gate        *audio.Gate
	transcriber stt.Transcriber
	injector    Injector
	cues        CuePlayer
	detector    *Detector

	silenceTimeout time.Duration
	listenTimeout  time.Duration
}

type SessionOption func(*Session)

func WithSilenceTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.silenceTimeout = d
		}
	}
}

func WithListenTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.listenTimeout = d
		}
	}
}

func WithSpeechThreshold(threshold float64) SessionOption {
	return func(s *Session) {
		if threshold > 0 {
			s.detector = NewDetector(threshold)
		}
	}
}

func WithCues(cues CuePlayer) SessionOption {
	return func(s *Session) {
		if cues != nil {
			s.cues = cues
		}
	}
}

func NewSession(capturer audio.Capturer, gate *audio.Gate, transcriber stt.Transcriber, injector Injector, opts ...SessionOption) *Session {
	session := &Session{
		capturer:       capturer,
		gate:           gate,
		transcriber:    transcriber,
		injector:       injector,
		cues:           noopCues{},
		detector:       NewDetector(DefaultSpeechThreshold),
		silenceTimeout: DefaultSilenceTimeout,
		listenTimeout:  DefaultListenTimeout,
	}
	for _, opt := range opts {
		opt(session)
	}
	return session
}

// Run captures, transcribes and injects one utterance. It returns the
// injected transcript, ErrBusy when the microphone is held elsewhere,
// or ErrNoSpeech when the capture window closed without usable audio.
func (s *Session) Run(ctx context.Context) (string, error) {
	if err := s.gate.TryAcquire(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBusy, err)
	}
	defer s.gate.Release()

	s.detector.Reset()
	s.cues.Activation()

	frames, err := s.capturer.StartCapture(ctx)
	if err != nil {
		s.cues.Deactivation()
		return "", fmt.Errorf("starting capture: %w", err)
	}

	pcm, recordErr := s.recordUtterance(ctx, frames)
	if err := s.capturer.StopCapture(); err != nil && recordErr == nil {
		recordErr = fmt.Errorf("stopping capture: %w", err)
	}
	s.cues.Deactivation()
	if recordErr != nil {
		return "", recordErr
	}

	text, err := s.transcriber.Transcribe(ctx, pcm)
	if err != nil {
		if errors.Is(err, stt.ErrNoTranscript) {
			return "", ErrNoSpeech
		}
		return "", fmt.Errorf("transcribing utterance: %w", err)
	}

	if err := s.injector.Inject(ctx, text); err != nil {
		return text, fmt.Errorf("injecting transcript: %w", err)
	}
	return text, nil
}

// recordUtterance accumulates audio from the first speech frame until
// the configured run of trailing silence, the listen deadline, or
// cancellation.
func (s *Session) recordUtterance(ctx context.Context, frames <-chan []byte) ([]byte, error) {
	deadline := time.NewTimer(s.listenTimeout)
	defer deadline.Stop()

	byteSize := s.capturer.EncodingInfo().Format.ByteSize()
	if byteSize <= 0 {
		byteSize = 2
	}
	frameBytes := frameSamples * byteSize

	var (
		utterance     []byte
		pending       []byte
		speechStarted bool
		silenceStart  time.Time
	)

recording:
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			break recording
		case frame, ok := <-frames:
			if !ok {
				break recording
			}
			pending = append(pending, frame...)

			for len(pending) >= frameBytes {
				chunk := pending[:frameBytes]
				pending = pending[frameBytes:]

				speech := s.detector.IsSpeech(chunk)
				if !speechStarted {
					if speech {
						speechStarted = true
						utterance = append(utterance, chunk...)
					}
					continue
				}

				utterance = append(utterance, chunk...)
				if speech {
					silenceStart = time.Time{}
					continue
				}
				if silenceStart.IsZero() {
					silenceStart = time.Now()
				} else if time.Since(silenceStart) >= s.silenceTimeout {
					break recording
				}
			}
		}
	}

	if len(utterance)/byteSize < minUtteranceSamples {
		return nil, ErrNoSpeech
	}
	return utterance, nil
}
