package wakeword

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const scopeName = "github.com/lkovac/narrator/core/wakeword"

var (
	tracer = otel.Tracer(scopeName)
	meter  = otel.Meter(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

var (
	wakeDetections, _ = meter.Int64Counter("narrator.wake.detections",
		metric.WithDescription("Wake phrase detections above the threshold"))
	bargeInterrupts, _ = meter.Int64Counter("narrator.wake.barge_interrupts",
		metric.WithDescription("Narration interruptions triggered by talking over it"))
)
