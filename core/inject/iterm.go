package inject

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"runtime"
	"strings"
)

var (
	sessionIDRe   = regexp.MustCompile(`^[\w-]+$`)
	controlCharRe = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// ITermInjector writes text into an iTerm2 session through osascript.
// With an empty session ID it targets the current session of the
// frontmost window; otherwise it addresses the session by ID.
type ITermInjector struct {
	sessionID string
}

func NewITermInjector(sessionID string) (*ITermInjector, error) {
	if sessionID != "" && !sessionIDRe.MatchString(sessionID) {
		return nil, fmt.Errorf("invalid iterm2 session id %q", sessionID)
	}
	if runtime.GOOS != "darwin" {
		return nil, errors.New("iterm2 injection requires macOS")
	}
	if _, err := exec.LookPath("osascript"); err != nil {
		return nil, fmt.Errorf("osascript is not installed or not in PATH: %w", err)
	}
	return &ITermInjector{sessionID: sessionID}, nil
}

func (i *ITermInjector) Inject(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	script := buildWriteScript(i.sessionID, escapeAppleScript(text))

	runCtx, cancel := context.WithTimeout(ctx, injectTimeout)
	defer cancel()

	out, err := exec.CommandContext(runCtx, "osascript", "-e", script).CombinedOutput()
	if err != nil {
		if msg := bytes.TrimSpace(out); len(msg) > 0 {
			return fmt.Errorf("writing to iterm2 session: %v: %s", err, msg)
		}
		return fmt.Errorf("writing to iterm2 session: %w", err)
	}
	return nil
}

// escapeAppleScript makes text safe to interpolate into an AppleScript
// string literal. Control characters would break the literal, so they
// collapse to spaces.
func escapeAppleScript(text string) string {
	text = strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(text)
	return controlCharRe.ReplaceAllString(text, " ")
}

func buildWriteScript(sessionID, escaped string) string {
	if sessionID != "" {
		return fmt.Sprintf(`tell application "iTerm2"
	tell session id "%s"
		write text "%s"
	end tell
end tell`, sessionID, escaped)
	}
	return fmt.Sprintf(`tell application "iTerm2"
	tell current window
		tell first tab
			tell current session
				write text "%s"
			end tell
		end tell
	end tell
end tell`, escaped)
}
