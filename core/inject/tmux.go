package inject

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// TmuxInjector types text into a tmux pane and submits it with Enter.
type TmuxInjector struct {
	target string
}

func NewTmuxInjector(target string) (*TmuxInjector, error) {
	if _, err := exec.LookPath("tmux"); err != nil {
		return nil, fmt.Errorf("tmux is not installed or not in PATH: %w", err)
	}
	return &TmuxInjector{target: target}, nil
}

func (i *TmuxInjector) Inject(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sendCtx, cancel := context.WithTimeout(ctx, injectTimeout)
	defer cancel()

	// -l sends the text literally so it is typed as-is rather than
	// interpreted as key names.
	if err := i.send(sendCtx, "-l", text); err != nil {
		return fmt.Errorf("typing into pane %q: %w", i.target, err)
	}
	if err := i.send(sendCtx, "Enter"); err != nil {
		return fmt.Errorf("submitting to pane %q: %w", i.target, err)
	}
	return nil
}

func (i *TmuxInjector) send(ctx context.Context, keys ...string) error {
	args := append([]string{"send-keys", "-t", i.target}, keys...)
	out, err := exec.CommandContext(ctx, "tmux", args...).CombinedOutput()
	if err != nil {
		if msg := bytes.TrimSpace(out); len(msg) > 0 {
			return fmt.Errorf("tmux send-keys: %v: %s", err, msg)
		}
		return fmt.Errorf("tmux send-keys: %w", err)
	}
	return nil
}
