package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lkovac/narrator/core/audio"
)

const (
	// DefaultPiperSampleRate matches the en_US-lessac-high voice model.
	DefaultPiperSampleRate = 22050

	piperTimeout   = 60 * time.Second
	piperChunkSize = 4096
)

// DefaultPiperModel returns the expected location of the default piper
// voice model for the current platform.
func DefaultPiperModel() string {
	if runtime.GOOS == "darwin" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		return filepath.Join(home, ".local", "share", "piper-voices", "en_US-lessac-high.onnx")
	}
	dir := os.Getenv("LOCALAPPDATA")
	if dir == "" {
		dir, _ = os.UserHomeDir()
	}
	return filepath.Join(dir, "piper-voices", "en_US-lessac-high.onnx")
}

// PiperEngine speaks through a local piper subprocess, streaming raw
// PCM from its stdout into a playback device as it is synthesized.
// The voice is fixed by the model file, VoiceParams are ignored.
type PiperEngine struct {
	binary     string
	model      string
	sampleRate int
	player     audio.Player
	fallback   Engine
}

var _ Engine = (*PiperEngine)(nil)

type PiperOption func(*PiperEngine)

func WithPiperBinary(path string) PiperOption {
	return func(e *PiperEngine) { e.binary = path }
}

func WithPiperModel(path string) PiperOption {
	return func(e *PiperEngine) { e.model = path }
}

// WithPiperSampleRate declares the model's output rate. The player
// must have been initialized at the same rate.
func WithPiperSampleRate(rate int) PiperOption {
	return func(e *PiperEngine) {
		if rate > 0 {
			e.sampleRate = rate
		}
	}
}

// WithFallback sets the engine used when the piper binary is missing.
func WithFallback(engine Engine) PiperOption {
	return func(e *PiperEngine) { e.fallback = engine }
}

func NewPiperEngine(player audio.Player, opts ...PiperOption) *PiperEngine {
	engine := &PiperEngine{
		binary:     "piper",
		model:      DefaultPiperModel(),
		sampleRate: DefaultPiperSampleRate,
		player:     player,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

func (e *PiperEngine) SampleRate() int { return e.sampleRate }

func (e *PiperEngine) Speak(ctx context.Context, text string, params VoiceParams) error {
	ctx, span := tracer.Start(ctx, "piper.speak", trace.WithAttributes(
		attribute.Int("speech.text_chars", len(text)),
		attribute.String("speech.model", filepath.Base(e.model)),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, piperTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.binary, "--model", e.model, "--output_raw")
	cmd.Stdin = strings.NewReader(text + "\n")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("piping piper output: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) && e.fallback != nil {
			span.SetStatus(codes.Error, "piper binary missing")
			logger.WarnContext(ctx, "piper not found, falling back", "fallback", fmt.Sprintf("%T", e.fallback))
			return e.fallback.Speak(ctx, text, params)
		}
		span.RecordError(err)
		return fmt.Errorf("starting piper: %w", err)
	}

	streamErr := e.streamToPlayer(ctx, stdout)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		e.player.ClearBuffer()
		return ctx.Err()
	}
	if streamErr != nil {
		span.RecordError(streamErr)
		return streamErr
	}
	if waitErr != nil {
		span.RecordError(waitErr)
		return fmt.Errorf("running piper: %w", waitErr)
	}

	return e.player.AwaitDrain(ctx)
}

// streamToPlayer forwards synthesized PCM chunks until the subprocess
// closes its stdout, checking for cancellation between chunks.
func (e *PiperEngine) streamToPlayer(ctx context.Context, r io.Reader) error {
	buf := make([]byte, piperChunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if err := e.player.Enqueue(chunk); err != nil {
				return fmt.Errorf("queueing synthesized audio: %w", err)
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading piper output: %w", err)
		}
	}
}
