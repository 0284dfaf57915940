package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"
)

// FileSource tails a log file by byte offset.
type FileSource struct {
	path   string
	offset int64
	primed bool
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Poll(_ context.Context) (string, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return "", fmt.Errorf("%w: opening %q: %v", ErrSourceUnavailable, s.path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("%w: stating %q: %v", ErrSourceUnavailable, s.path, err)
	}

	if !s.primed {
		s.offset = info.Size()
		s.primed = true
		return "", nil
	}

	// Truncation (rotation) resets the cursor to the new end rather
	// than replaying the fresh file from the top.
	if info.Size() < s.offset {
		s.offset = info.Size()
		return "", nil
	}
	if info.Size() == s.offset {
		return "", nil
	}

	if _, err := f.Seek(s.offset, io.SeekStart); err != nil {
		return "", fmt.Errorf("%w: seeking %q: %v", ErrSourceUnavailable, s.path, err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("%w: reading %q: %v", ErrSourceUnavailable, s.path, err)
	}

	// A rune whose bytes straddle two writes stays on disk until the
	// rest of it arrives, instead of surfacing as U+FFFD.
	cut := len(data) - incompleteTailLen(data)
	s.offset += int64(cut)

	return strings.ToValidUTF8(string(data[:cut]), string(utf8.RuneError)), nil
}

// incompleteTailLen reports how many trailing bytes form the prefix of
// a multi-byte rune that has not been fully written yet.
func incompleteTailLen(data []byte) int {
	for i := 1; i < utf8.UTFMax && i <= len(data); i++ {
		b := data[len(data)-i]
		if !utf8.RuneStart(b) {
			continue
		}
		if utf8.FullRune(data[len(data)-i:]) {
			return 0
		}
		return i
	}
	return 0
}

func (s *FileSource) Describe() string {
	return fmt.Sprintf("logfile %s", s.path)
}
