package narrator

import (
	"time"

	"github.com/lkovac/narrator/core/speech"
	"github.com/lkovac/narrator/internal/history"
)

type QueueOption func(*Queue)

func WithCapacity(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

func WithVoice(params speech.VoiceParams) QueueOption {
	return func(q *Queue) { q.voice = params }
}

// WithQuestionVoice selects a distinct voice for question narrations
// so they stand out from routine summaries. Without it, questions use
// the regular voice.
func WithQuestionVoice(params speech.VoiceParams) QueueOption {
	return func(q *Queue) {
		q.questionVoice = params
		q.questionVoiceSet = true
	}
}

// WithSpokenCallback registers a callback invoked after an utterance
// finishes speaking, on the worker goroutine.
func WithSpokenCallback(callback func(Utterance)) QueueOption {
	return func(q *Queue) { q.onSpoken = callback }
}

// WithQuestionSpokenCallback registers a callback invoked after a
// question utterance finishes speaking, on the worker goroutine. It
// drives the automatic voice-prompt policy; the callback should hand
// long work to its own goroutine.
func WithQuestionSpokenCallback(callback func()) QueueOption {
	return func(q *Queue) { q.onQuestionSpoken = callback }
}

// WithDryRun skips the speech engine. Utterances are logged and the
// spoken callbacks still fire, so callers can surface would-be
// narrations their own way.
func WithDryRun() QueueOption {
	return func(q *Queue) { q.dryRun = true }
}

type PipelineOption func(*Pipeline)

func WithInterval(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithHistory records every classification decision, skips included,
// in the given store.
func WithHistory(store *history.Store) PipelineOption {
	return func(p *Pipeline) { p.history = store }
}
