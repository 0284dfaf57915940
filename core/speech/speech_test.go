package speech

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"sync"
	"testing"
)

type stubPlayer struct {
	mu       sync.Mutex
	enqueued []byte
	drained  bool
	cleared  bool
}

func (p *stubPlayer) Enqueue(pcm []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enqueued = append(p.enqueued, pcm...)
	return nil
}

func (p *stubPlayer) AwaitDrain(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drained = true
	return ctx.Err()
}

func (p *stubPlayer) ClearBuffer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleared = true
}

type recordingEngine struct {
	mu     sync.Mutex
	spoken []string
}

func (e *recordingEngine) Speak(ctx context.Context, text string, params VoiceParams) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spoken = append(e.spoken, text)
	return nil
}

func TestBuildSayArgs(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		params VoiceParams
		want   []string
	}{
		{
			name:   "voice and rate",
			text:   "build finished",
			params: VoiceParams{Voice: "Samantha", Rate: 200},
			want:   []string{"-v", "Samantha", "-r", "200", "build finished"},
		},
		{
			name:   "voice only",
			text:   "tests passed",
			params: VoiceParams{Voice: "Daniel"},
			want:   []string{"-v", "Daniel", "tests passed"},
		},
		{
			name:   "defaults",
			text:   "done",
			params: VoiceParams{},
			want:   []string{"done"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSayArgs(tt.text, tt.params)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestPiperStreamsAllChunks(t *testing.T) {
	player := &stubPlayer{}
	engine := NewPiperEngine(player)

	pcm := bytes.Repeat([]byte{0x01, 0x02}, 9_000)
	if err := engine.streamToPlayer(context.Background(), bytes.NewReader(pcm)); err != nil {
		t.Fatalf("streaming failed: %v", err)
	}

	if !bytes.Equal(player.enqueued, pcm) {
		t.Fatalf("expected %d bytes enqueued intact, got %d", len(pcm), len(player.enqueued))
	}
}

func TestPiperStreamStopsOnCancel(t *testing.T) {
	player := &stubPlayer{}
	engine := NewPiperEngine(player)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := engine.streamToPlayer(ctx, bytes.NewReader(bytes.Repeat([]byte{0xff}, 64)))
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(player.enqueued) != 0 {
		t.Fatalf("expected no audio enqueued after cancel, got %d bytes", len(player.enqueued))
	}
}

func TestPiperFallsBackWhenBinaryMissing(t *testing.T) {
	fallback := &recordingEngine{}
	engine := NewPiperEngine(&stubPlayer{},
		WithPiperBinary("narrator-test-no-such-binary"),
		WithFallback(fallback),
	)

	if err := engine.Speak(context.Background(), "status update", VoiceParams{Voice: "Samantha"}); err != nil {
		t.Fatalf("expected fallback to absorb the missing binary, got %v", err)
	}
	if len(fallback.spoken) != 1 || fallback.spoken[0] != "status update" {
		t.Fatalf("expected fallback to speak the utterance, got %v", fallback.spoken)
	}
}

func TestPiperMissingBinaryWithoutFallback(t *testing.T) {
	engine := NewPiperEngine(&stubPlayer{}, WithPiperBinary("narrator-test-no-such-binary"))

	err := engine.Speak(context.Background(), "status update", VoiceParams{})
	if err == nil {
		t.Fatal("expected an error without a fallback engine")
	}
	if !strings.Contains(err.Error(), "piper") {
		t.Fatalf("expected a piper start error, got %v", err)
	}
}

func TestCuePlayerOffDarwinIsNoop(t *testing.T) {
	player := NewCuePlayer()
	if runtime.GOOS != "darwin" && player.enabled {
		t.Fatal("expected cues disabled away from darwin")
	}

	player.Activation()
	player.Deactivation()
}
