package narrator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/muesli/reflow/truncate"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lkovac/narrator/core/capture"
	"github.com/lkovac/narrator/core/classify"
	"github.com/lkovac/narrator/core/cleantext"
	"github.com/lkovac/narrator/internal/history"
)

const (
	DefaultInterval = 3 * time.Second

	// Deltas below this length are cursor jitter or prompt redraws,
	// not narratable events.
	minDeltaRunes = 10

	// historyPayloadWidth bounds the diagnostic payload stored for
	// skipped deltas.
	historyPayloadWidth = 200
)

// Pipeline owns the poll, clean, classify, enqueue loop.
type Pipeline struct {
	state      *PipelineState
	source     capture.Source
	classifier classify.Classifier
	queue      *Queue
	history    *history.Store

	interval time.Duration
}

func NewPipeline(state *PipelineState, source capture.Source, classifier classify.Classifier, queue *Queue, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		state:      state,
		source:     source,
		classifier: classifier,
		queue:      queue,
		interval:   DefaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run polls the source until the context is cancelled or the source
// becomes unavailable. Losing the source is the only fatal failure;
// classification trouble degrades to skips.
func (p *Pipeline) Run(ctx context.Context) error {
	logger.InfoContext(ctx, "watching source",
		"source", p.source.Describe(), "interval", p.interval.String())

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if p.state.Paused() {
			continue
		}

		delta, err := p.source.Poll(ctx)
		if err != nil {
			if errors.Is(err, capture.ErrSourceUnavailable) {
				return fmt.Errorf("monitored source lost: %w", err)
			}
			logger.WarnContext(ctx, "poll failed",
				"source", p.source.Describe(), "error", err)
			continue
		}

		p.process(ctx, delta)
	}
}

func (p *Pipeline) process(ctx context.Context, delta string) {
	if utf8.RuneCountInString(delta) < minDeltaRunes {
		return
	}
	cleaned := cleantext.Clean(delta)
	if utf8.RuneCountInString(cleaned) < minDeltaRunes {
		return
	}

	ctx, span := tracer.Start(ctx, "narrator.classify_delta", trace.WithAttributes(
		attribute.Int("delta.chars", len(cleaned)),
	))
	defer span.End()

	result, err := p.classifier.Classify(ctx, cleaned)
	if err != nil {
		recordedErr := fmt.Errorf("classification failed: %w", err)
		span.RecordError(recordedErr)
		span.SetStatus(codes.Error, recordedErr.Error())
		logger.WarnContext(ctx, "classification failed, skipping delta",
			"error", err,
			"payload", truncate.StringWithTail(cleaned, historyPayloadWidth, "..."))
		p.record(ctx, history.Record{
			Kind: string(classify.KindSkip),
			Text: truncate.StringWithTail(cleaned, historyPayloadWidth, "..."),
		})
		return
	}

	if result.IsSkip() {
		logger.DebugContext(ctx, "delta skipped")
		p.record(ctx, history.Record{
			Kind: string(classify.KindSkip),
			Text: truncate.StringWithTail(cleaned, historyPayloadWidth, "..."),
		})
		return
	}

	utt, err := p.queue.Enqueue(result.Text, result.IsQuestion())
	if err != nil {
		logger.WarnContext(ctx, "could not enqueue narration", "error", err)
		return
	}
	span.SetAttributes(attribute.String("narration.kind", string(result.Kind)))
	logger.InfoContext(ctx, "narration queued",
		"id", utt.ID, "kind", string(result.Kind), "text", result.Text)

	p.record(ctx, history.Record{
		ID:         utt.ID,
		ObservedAt: utt.EnqueuedAt,
		Kind:       string(result.Kind),
		Text:       result.Text,
	})
}

func (p *Pipeline) record(ctx context.Context, rec history.Record) {
	if p.history == nil {
		return
	}
	if _, err := p.history.Record(ctx, rec); err != nil {
		logger.WarnContext(ctx, "could not record narration decision", "error", err)
	}
}

// ModelLister reports which models the classification service has
// installed.
type ModelLister interface {
	InstalledModels(ctx context.Context) ([]string, error)
}

// ProbeClassifier checks the classification service before the
// pipeline starts. An unreachable endpoint is an error; a missing
// model only warns, since pulling it is a one-command fix.
func ProbeClassifier(ctx context.Context, service ModelLister, model string) error {
	models, err := service.InstalledModels(ctx)
	if err != nil {
		return fmt.Errorf("classification service unreachable: %w", err)
	}
	if !slices.Contains(models, model) {
		logger.WarnContext(ctx, "configured model is not installed",
			"model", model,
			"installed", strings.Join(models, ", "),
			"hint", "ollama pull "+model)
	}
	return nil
}
