// Package narrator wires terminal capture, classification, and speech
// into a narration pipeline: a poll loop turns terminal deltas into
// utterances, a bounded queue speaks them in order, and operator
// commands steer both.
package narrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lkovac/narrator/core/speech"
)

// ErrStopped rejects enqueues after the queue has shut down.
var ErrStopped = errors.New("narration queue stopped")

const DefaultQueueCapacity = 3

// Utterance is one unit of text approved for narration. The ID
// correlates log lines, spans, and history rows.
type Utterance struct {
	ID         string
	Text       string
	IsQuestion bool
	EnqueuedAt time.Time
}

// Queue holds pending utterances and owns the single worker that
// speaks them in FIFO order. Producers never block on speech; when
// the bound is exceeded the oldest pending entry is dropped so
// narration tracks the latest terminal state.
type Queue struct {
	mu          sync.Mutex
	pending     []Utterance
	stopped     bool
	speakCancel context.CancelFunc

	state    *PipelineState
	capacity int

	engine           speech.Engine
	voice            speech.VoiceParams
	questionVoice    speech.VoiceParams
	questionVoiceSet bool

	onSpoken         func(Utterance)
	onQuestionSpoken func()
	dryRun           bool

	updateSignal chan struct{}
}

func NewQueue(state *PipelineState, engine speech.Engine, opts ...QueueOption) *Queue {
	q := &Queue{
		state:        state,
		capacity:     DefaultQueueCapacity,
		engine:       engine,
		updateSignal: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	if !q.questionVoiceSet {
		q.questionVoice = q.voice
	}
	return q
}

// Enqueue appends an utterance, evicting the oldest pending entries
// beyond the capacity bound. The stored utterance is returned so
// callers can correlate it with history records.
func (q *Queue) Enqueue(text string, isQuestion bool) (Utterance, error) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return Utterance{}, ErrStopped
	}

	utt := Utterance{
		ID:         uuid.NewString(),
		Text:       text,
		IsQuestion: isQuestion,
		EnqueuedAt: time.Now(),
	}
	q.pending = append(q.pending, utt)

	var dropped []string
	for len(q.pending) > q.capacity {
		dropped = append(dropped, q.pending[0].ID)
		q.pending = q.pending[1:]
	}
	q.mu.Unlock()

	if len(dropped) > 0 {
		evictedUtterances.Add(context.Background(), int64(len(dropped)))
		logger.Debug("evicted oldest pending narrations", "ids", dropped)
	}
	q.signalUpdate()
	return utt, nil
}

// Interrupt clears every pending utterance and cancels in-flight
// speech at its next safe boundary. Safe to call concurrently with
// Enqueue and the worker.
func (q *Queue) Interrupt() {
	q.mu.Lock()
	cleared := len(q.pending)
	q.pending = nil
	cancel := q.speakCancel
	q.mu.Unlock()

	if cancel != nil {
		cancel()
		interruptedNarrations.Add(context.Background(), 1)
	}
	if cleared > 0 || cancel != nil {
		logger.Info("narration interrupted", "cleared", cleared)
	}
	q.signalUpdate()
}

// Pause suspends the worker before its next utterance. Pending
// entries keep accumulating, subject to the capacity bound.
func (q *Queue) Pause() {
	q.state.setPaused(true)
	q.signalUpdate()
}

// Resume lets the worker continue in enqueue order.
func (q *Queue) Resume() {
	q.state.setPaused(false)
	q.signalUpdate()
}

// Stop shuts the queue down: pending entries are dropped, in-flight
// speech is abandoned via its context, and later enqueues are
// rejected with ErrStopped. Idempotent.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	q.pending = nil
	cancel := q.speakCancel
	q.mu.Unlock()

	q.state.setRunning(false)
	if cancel != nil {
		cancel()
	}
	q.signalUpdate()
}

// Speaking reports whether the worker is in a speech call right now.
func (q *Queue) Speaking() bool {
	return q.state.Speaking()
}

// Len returns the number of pending utterances.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Pending returns a snapshot of the queued utterances.
func (q *Queue) Pending() []Utterance {
	q.mu.Lock()
	defer q.mu.Unlock()

	var pending []Utterance
	copier.Copy(&pending, q.pending)
	return pending
}

// Run owns the dequeue-and-speak loop. It parks while the queue is
// empty or paused and returns once the queue is stopped or the
// context is cancelled.
func (q *Queue) Run(ctx context.Context) error {
	for {
		utt, speakCtx, ok := q.next(ctx)
		if !ok {
			return ctx.Err()
		}
		q.speak(ctx, speakCtx, utt)
	}
}

// next blocks until an utterance is available and the queue is not
// paused. The utterance's cancellable speech context is registered
// under the same lock hold as the dequeue, so an Interrupt can never
// fall between the two.
func (q *Queue) next(ctx context.Context) (Utterance, context.Context, bool) {
	for {
		q.mu.Lock()
		if q.stopped {
			q.mu.Unlock()
			return Utterance{}, nil, false
		}
		if !q.state.Paused() && len(q.pending) > 0 {
			utt := q.pending[0]
			q.pending = q.pending[1:]
			speakCtx, cancel := context.WithCancel(ctx)
			q.speakCancel = cancel
			q.mu.Unlock()
			return utt, speakCtx, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return Utterance{}, nil, false
		case <-q.updateSignal:
		}
	}
}

func (q *Queue) speak(ctx context.Context, speakCtx context.Context, utt Utterance) {
	defer func() {
		q.mu.Lock()
		cancel := q.speakCancel
		q.speakCancel = nil
		q.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}()

	if q.dryRun {
		logger.InfoContext(ctx, "dry run narration",
			"id", utt.ID, "question", utt.IsQuestion, "text", utt.Text)
		if q.onSpoken != nil {
			q.onSpoken(utt)
		}
		if utt.IsQuestion && q.onQuestionSpoken != nil {
			q.onQuestionSpoken()
		}
		return
	}

	params := q.voice
	if utt.IsQuestion {
		params = q.questionVoice
	}

	spanCtx, span := tracer.Start(speakCtx, "narrator.speak", trace.WithAttributes(
		attribute.String("narration.id", utt.ID),
		attribute.Bool("narration.question", utt.IsQuestion),
	))
	defer span.End()

	q.state.setSpeaking(true)
	err := q.engine.Speak(spanCtx, utt.Text, params)
	q.state.setSpeaking(false)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			span.SetStatus(codes.Error, "interrupted")
			logger.InfoContext(ctx, "narration cut off", "id", utt.ID)
			return
		}
		recordedErr := fmt.Errorf("speaking narration %s: %w", utt.ID, err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		logger.ErrorContext(ctx, "narration failed, moving to next", "error", recordedErr)
		return
	}

	narratedUtterances.Add(ctx, 1)

	if q.onSpoken != nil {
		q.onSpoken(utt)
	}
	if utt.IsQuestion && q.onQuestionSpoken != nil {
		q.onQuestionSpoken()
	}
}

func (q *Queue) signalUpdate() {
	select {
	case q.updateSignal <- struct{}{}:
	default:
	}
}
