// Package inject delivers transcribed text into a terminal session,
// either a tmux pane via send-keys or an iTerm2 session via
// AppleScript.
package inject

import "time"

const injectTimeout = 5 * time.Second
