// Package speech turns narration text into audible output.
//
// Engines wrap external synthesizers. The say engine shells out to
// the macOS synthesizer and blocks on the subprocess, the piper
// engine streams raw PCM from a local neural model into a playback
// device. Both honor context cancellation so that an interrupt stops
// audio at the next safe boundary.
package speech

import "context"

// VoiceParams selects the voice for a single utterance. Which params
// an engine honors is engine-specific, piper's voice is fixed by its
// model file.
type VoiceParams struct {
	// Voice is an engine-specific voice identifier. Empty selects the
	// engine's default.
	Voice string
	// Rate is the speaking rate in words per minute. Zero keeps the
	// engine's default.
	Rate int
}

// Engine produces audible speech from text.
type Engine interface {
	// Speak blocks until the utterance has been spoken in full or ctx
	// is cancelled. Cancellation stops playback and returns ctx.Err().
	Speak(ctx context.Context, text string, params VoiceParams) error
}
