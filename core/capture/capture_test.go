package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSourceFirstPollPrimes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.log")
	if err := os.WriteFile(path, []byte("historical output\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewFileSource(path)
	got, err := src.Poll(context.Background())
	if err != nil {
		t.Fatalf("first poll failed: %v", err)
	}
	if got != "" {
		t.Fatalf("expected no delta on first poll, got %q", got)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("fresh line\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	got, err = src.Poll(context.Background())
	if err != nil {
		t.Fatalf("second poll failed: %v", err)
	}
	if got != "fresh line\n" {
		t.Fatalf("expected appended suffix, got %q", got)
	}

	got, err = src.Poll(context.Background())
	if err != nil {
		t.Fatalf("third poll failed: %v", err)
	}
	if got != "" {
		t.Fatalf("expected no delta without new writes, got %q", got)
	}
}

func TestFileSourceHoldsBackSplitRune(t *testing.T) {
	path := filepath.Join(t.TempDir(), "split.log")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewFileSource(path)
	if _, err := src.Poll(context.Background()); err != nil {
		t.Fatal(err)
	}

	// "é" arrives one byte per write.
	appendBytes(t, path, []byte("caf\xc3"))
	got, err := src.Poll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "caf" {
		t.Fatalf("expected the partial rune held back, got %q", got)
	}

	appendBytes(t, path, []byte("\xa9 ready\n"))
	got, err = src.Poll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "é ready\n" {
		t.Fatalf("expected the rune reassembled across polls, got %q", got)
	}
}

func appendBytes(t *testing.T, path string, data []byte) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatal(err)
	}
	f.Close()
}

func TestFileSourceDeletedIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.log")
	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewFileSource(path)
	if _, err := src.Poll(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	_, err := src.Poll(context.Background())
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestFileSourceTruncationResets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotated.log")
	if err := os.WriteFile(path, []byte("old old old\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := NewFileSource(path)
	if _, err := src.Poll(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("new\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := src.Poll(context.Background())
	if err != nil {
		t.Fatalf("poll after truncation failed: %v", err)
	}
	if got != "" {
		t.Fatalf("expected cursor reset after truncation, got %q", got)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.WriteString("after rotation\n"); err != nil {
		t.Fatal(err)
	}
	f.Close()

	got, err = src.Poll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != "after rotation\n" {
		t.Fatalf("expected post-rotation suffix, got %q", got)
	}
}

func TestDiffAppended(t *testing.T) {
	cases := []struct {
		name     string
		previous string
		current  string
		want     string
	}{
		{
			name:     "appended lines behind anchor",
			previous: "a\nb\nc\nd\ne\nf\n",
			current:  "a\nb\nc\nd\ne\nf\ng\nh\n",
			want:     "g\nh",
		},
		{
			name:     "scrolled pane keeps smaller anchor",
			previous: "l1\nl2\nl3\nl4\nl5\nl6",
			current:  "l3\nl4\nl5\nl6\nl7\nl8",
			want:     "l7\nl8",
		},
		{
			name:     "identical snapshots",
			previous: "same\nlines",
			current:  "same\nlines",
			want:     "",
		},
		{
			name:     "no previous snapshot",
			previous: "",
			current:  "anything",
			want:     "",
		},
		{
			name:     "grown without anchor",
			previous: "x\ny",
			current:  "p\nq\nr",
			want:     "r",
		},
		{
			name:     "rewritten beyond recognition returns tail",
			previous: "a\nb\nc",
			current:  "z\ny\nx",
			want:     "z\ny\nx",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := diffAppended(tc.current, tc.previous); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
