package whisper

import (
	"context"
	"errors"
	"testing"

	"github.com/lkovac/narrator/core/stt"
)

func TestCleanTranscript(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", " open the config file\n", "open the config file"},
		{"blank audio marker", "[BLANK_AUDIO]", ""},
		{"leading annotation", "(keyboard clicking) run the tests", "run the tests"},
		{"inline annotation", "open main.go [laughter] please", "open main.go please"},
		{"hallucinated thanks", "Thank you.", ""},
		{"hallucinated you", "you", ""},
		{"you inside a sentence survives", "can you open it", "can you open it"},
		{"multiline collapses", "yes\ngo ahead", "yes go ahead"},
		{"silence marker", "(silence)", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanTranscript(tt.in); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTranscribeEmptyUtterance(t *testing.T) {
	client := NewClient()

	_, err := client.Transcribe(context.Background(), nil)
	if !errors.Is(err, stt.ErrNoTranscript) {
		t.Fatalf("expected ErrNoTranscript, got %v", err)
	}
}

func TestTranscribeMissingBinary(t *testing.T) {
	client := NewClient(WithBinary("narrator-test-no-such-whisper"))

	_, err := client.Transcribe(context.Background(), make([]byte, 3200))
	if err == nil {
		t.Fatal("expected an error for a missing binary")
	}
	if errors.Is(err, stt.ErrNoTranscript) {
		t.Fatalf("a failing engine is not a silent utterance: %v", err)
	}
}
