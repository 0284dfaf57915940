package narrator

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/lkovac/narrator/core"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	narratedUtterances, _ = meter.Int64Counter("narrator.queue.narrated",
		metric.WithDescription("Narrations spoken to completion."))
	evictedUtterances, _ = meter.Int64Counter("narrator.queue.evicted",
		metric.WithDescription("Pending narrations dropped to honor the queue bound."))
	interruptedNarrations, _ = meter.Int64Counter("narrator.queue.interrupted",
		metric.WithDescription("Narrations cut off mid-speech by an interrupt."))
)
