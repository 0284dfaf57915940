package capture

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/lkovac/narrator/core/cleantext"
)

const (
	defaultHistoryLines = 200
	captureTimeout      = 5 * time.Second
)

// PaneSource snapshots a tmux pane (visible content plus scroll-back)
// and isolates the appended lines between snapshots.
type PaneSource struct {
	target       string
	historyLines int

	previous     string
	previousHash [sha256.Size]byte
	primed       bool
}

func NewPaneSource(target string) (*PaneSource, error) {
	if _, err := exec.LookPath("tmux"); err != nil {
		return nil, fmt.Errorf("tmux is not installed or not in PATH: %w", err)
	}
	return &PaneSource{target: target, historyLines: defaultHistoryLines}, nil
}

func (s *PaneSource) Poll(ctx context.Context) (string, error) {
	captureCtx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()

	out, err := exec.CommandContext(captureCtx, "tmux",
		"capture-pane", "-t", s.target, "-p", "-S", fmt.Sprintf("-%d", s.historyLines),
	).Output()
	if err != nil {
		if errors.Is(captureCtx.Err(), context.DeadlineExceeded) {
			// A wedged server is transient; the pane may come back.
			return "", nil
		}
		return "", fmt.Errorf("%w: capturing pane %q: %v", ErrSourceUnavailable, s.target, err)
	}

	current := cleantext.StripANSI(string(out))
	sum := sha256.Sum256([]byte(current))
	if s.primed && sum == s.previousHash {
		return "", nil
	}

	previous, wasPrimed := s.previous, s.primed
	s.previous = current
	s.previousHash = sum
	s.primed = true
	if !wasPrimed {
		return "", nil
	}

	return diffAppended(current, previous), nil
}

func (s *PaneSource) Describe() string {
	return fmt.Sprintf("tmux pane %s", s.target)
}
