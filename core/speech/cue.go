package speech

import (
	"context"
	"os/exec"
	"runtime"
	"time"
)

const (
	activationSound   = "/System/Library/Sounds/Glass.aiff"
	deactivationSound = "/System/Library/Sounds/Pop.aiff"

	cueTimeout = 2 * time.Second
)

// CuePlayer plays short system sounds around microphone activation so
// the operator hears when the capture window opens and closes. On
// platforms without afplay every call is a no-op.
type CuePlayer struct {
	enabled bool
}

func NewCuePlayer() *CuePlayer {
	return &CuePlayer{enabled: runtime.GOOS == "darwin"}
}

// Activation marks the microphone opening. Playback runs in the
// background, the caller never blocks on it.
func (p *CuePlayer) Activation() {
	p.play(activationSound)
}

// Deactivation marks the microphone closing.
func (p *CuePlayer) Deactivation() {
	p.play(deactivationSound)
}

func (p *CuePlayer) play(path string) {
	if !p.enabled {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cueTimeout)
		defer cancel()
		_ = exec.CommandContext(ctx, "afplay", path).Run()
	}()
}
