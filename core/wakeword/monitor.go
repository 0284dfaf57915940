// Package wakeword keeps an always-on ear on the microphone, watching
// for the wake phrase and for the operator talking over narration.
package wakeword

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lkovac/narrator/core/audio"
	"github.com/lkovac/narrator/core/voice"
)

const (
	// frameSamples is the scoring frame, 80ms at 16kHz.
	frameSamples = 1280

	DefaultPhrase    = "hey jarvis"
	DefaultThreshold = 0.5
	DefaultCooldown  = 3 * time.Second

	// bargeInThreshold sits above the voice session's speech threshold
	// so narration bleed does not interrupt itself.
	bargeInThreshold = 0.7

	vadSubframeSamples = 512

	captureRetryDelay = 100 * time.Millisecond
)

// Scorer returns per-label wake confidences for one audio frame.
type Scorer interface {
	Score(ctx context.Context, frame []byte) (map[string]float64, error)
}

// Narration is the monitor's view of the narration queue.
type Narration interface {
	Speaking() bool
	Interrupt()
}

// Monitor consumes the microphone continuously, independent of the
// polling cadence. A detection either interrupts running narration or
// starts a voice session, with the microphone gate yielded for the
// session's duration. Sessions wanted by other components go through
// RequestSession so they get the same yield.
type Monitor struct {
	capturer  audio.Capturer
	gate      *audio.Gate
	scorer    Scorer
	narration Narration
	trigger   func(context.Context)
	requests  chan struct{}

	phrase        string
	threshold     float64
	cooldown      time.Duration
	bargeIn       bool
	bargeDetector *voice.Detector

	cooldownUntil time.Time
}

type MonitorOption func(*Monitor)

// WithPhrase restricts detections to score labels matching the given
// phrase. Scoring servers name labels after model files, so
// "hey_jarvis_v0.1" still matches "hey jarvis". Empty keeps every
// label eligible.
func WithPhrase(phrase string) MonitorOption {
	return func(m *Monitor) {
		m.phrase = normalizeLabel(phrase)
	}
}

func WithThreshold(threshold float64) MonitorOption {
	return func(m *Monitor) {
		if threshold > 0 {
			m.threshold = threshold
		}
	}
}

func WithCooldown(d time.Duration) MonitorOption {
	return func(m *Monitor) {
		if d > 0 {
			m.cooldown = d
		}
	}
}

// WithBargeIn enables interrupting narration on sustained speech over
// it, without the wake phrase.
func WithBargeIn(enabled bool) MonitorOption {
	return func(m *Monitor) { m.bargeIn = enabled }
}

func NewMonitor(capturer audio.Capturer, gate *audio.Gate, scorer Scorer, narration Narration, trigger func(context.Context), opts ...MonitorOption) *Monitor {
	monitor := &Monitor{
		capturer:      capturer,
		gate:          gate,
		scorer:        scorer,
		narration:     narration,
		trigger:       trigger,
		requests:      make(chan struct{}, 1),
		threshold:     DefaultThreshold,
		cooldown:      DefaultCooldown,
		bargeDetector: voice.NewDetector(bargeInThreshold),
	}
	for _, opt := range opts {
		opt(monitor)
	}
	return monitor
}

// RequestSession asks a listening monitor to yield the microphone and
// start a voice session, the same way a wake detection does. A request
// made while a session is already active is dropped, the microphone is
// genuinely busy then.
func (m *Monitor) RequestSession() {
	select {
	case m.requests <- struct{}{}:
	default:
	}
}

// Run listens until ctx is cancelled. When a detection or an outside
// request starts a voice session the monitor releases the microphone
// first, runs the trigger synchronously, and resumes listening
// afterwards.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		wake, err := m.listenForWake(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, audio.ErrDeviceBusy) {
				// A session holds the mic, retry shortly.
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(captureRetryDelay):
				}
				continue
			}
			return err
		}
		if wake {
			m.trigger(ctx)
			// Requests that arrived mid-session would start a second
			// session back to back.
			select {
			case <-m.requests:
			default:
			}
		}
	}
}

func (m *Monitor) listenForWake(ctx context.Context) (bool, error) {
	if err := m.gate.TryAcquire(); err != nil {
		return false, err
	}
	defer m.gate.Release()

	frames, err := m.capturer.StartCapture(ctx)
	if err != nil {
		return false, fmt.Errorf("starting wake capture: %w", err)
	}
	defer m.capturer.StopCapture()

	byteSize := m.capturer.EncodingInfo().Format.ByteSize()
	if byteSize <= 0 {
		byteSize = 2
	}
	frameBytes := frameSamples * byteSize
	subframeBytes := vadSubframeSamples * byteSize

	var pending []byte
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-m.requests:
			logger.InfoContext(ctx, "voice session requested, yielding microphone")
			return true, nil
		case frame, ok := <-frames:
			if !ok {
				return false, fmt.Errorf("wake capture closed")
			}
			pending = append(pending, frame...)

			for len(pending) >= frameBytes {
				chunk := pending[:frameBytes]
				pending = pending[frameBytes:]
				if m.processFrame(ctx, chunk, subframeBytes) {
					return true, nil
				}
			}
		}
	}
}

// processFrame reports whether a voice session should start.
func (m *Monitor) processFrame(ctx context.Context, frame []byte, subframeBytes int) bool {
	scores, err := m.scorer.Score(ctx, frame)
	if err != nil {
		logger.DebugContext(ctx, "scoring wake frame failed", "error", err)
	}

	now := time.Now()
	for label, score := range scores {
		if m.phrase != "" && !strings.Contains(normalizeLabel(label), m.phrase) {
			continue
		}
		if score < m.threshold || now.Before(m.cooldownUntil) {
			continue
		}
		m.cooldownUntil = now.Add(m.cooldown)
		wakeDetections.Add(ctx, 1)

		if m.narration.Speaking() {
			logger.InfoContext(ctx, "wake phrase interrupts narration", "label", label, "score", score)
			m.narration.Interrupt()
			return false
		}
		logger.InfoContext(ctx, "wake phrase detected", "label", label, "score", score)
		return true
	}

	if m.bargeIn && m.narration.Speaking() {
		for i := 0; i+subframeBytes <= len(frame); i += subframeBytes {
			if m.bargeDetector.IsSpeech(frame[i : i+subframeBytes]) {
				bargeInterrupts.Add(ctx, 1)
				m.narration.Interrupt()
				break
			}
		}
	} else {
		m.bargeDetector.Reset()
	}

	return false
}

func normalizeLabel(label string) string {
	return strings.TrimSpace(strings.ReplaceAll(strings.ToLower(label), "_", " "))
}
