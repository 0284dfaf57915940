package audio

import "context"

// Capturer is the microphone side of an audio client, shared by the
// wake-word monitor and voice input sessions. Frames arrive as raw
// PCM in the client's encoding; the channel closes on StopCapture.
// Frames may be dropped when the consumer falls behind.
type Capturer interface {
	StartCapture(ctx context.Context) (<-chan []byte, error)
	StopCapture() error
	EncodingInfo() EncodingInfo
}

// Player is the speaker side of an audio client, used by speech
// engines that produce raw PCM.
type Player interface {
	Enqueue(pcm []byte) error
	AwaitDrain(ctx context.Context) error
	ClearBuffer()
}
