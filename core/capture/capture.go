// Package capture reads newly appended text from a growing terminal
// stream, either a log file or a tmux pane. Sources own their cursor:
// the first poll primes it silently so pre-existing content is never
// narrated.
package capture

import (
	"context"
	"errors"
)

// ErrSourceUnavailable marks a monitored source that can no longer be
// read (file deleted, pane or server gone). The pipeline treats it as
// fatal rather than retrying silently.
var ErrSourceUnavailable = errors.New("source unavailable")

// Source yields newly appended text from a monitored stream.
type Source interface {
	// Poll returns the text appended since the previous successful
	// call, or the empty string when nothing changed. The first call
	// after construction primes the cursor and returns nothing.
	Poll(ctx context.Context) (string, error)
	// Describe names the source for logs and the startup banner.
	Describe() string
}
