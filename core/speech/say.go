package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// sayTimeout bounds a single utterance so a wedged synthesizer cannot
// stall the narration worker.
const sayTimeout = 60 * time.Second

// SayEngine speaks through the macOS say command.
type SayEngine struct{}

var _ Engine = (*SayEngine)(nil)

func NewSayEngine() *SayEngine {
	return &SayEngine{}
}

// Available reports whether the say binary is on PATH.
func (e *SayEngine) Available() bool {
	_, err := exec.LookPath("say")
	return err == nil
}

func (e *SayEngine) Speak(ctx context.Context, text string, params VoiceParams) error {
	ctx, cancel := context.WithTimeout(ctx, sayTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "say", buildSayArgs(text, params)...)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("running say: %w", err)
	}
	return nil
}

func buildSayArgs(text string, params VoiceParams) []string {
	args := []string{}
	if params.Voice != "" {
		args = append(args, "-v", params.Voice)
	}
	if params.Rate > 0 {
		args = append(args, "-r", strconv.Itoa(params.Rate))
	}
	return append(args, text)
}
