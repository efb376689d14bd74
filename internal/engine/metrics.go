package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ralphctl/ralph/internal/types"
)

func outcomeAttr(outcome types.IterationOutcome) attribute.KeyValue {
	return attribute.String("outcome", string(outcome))
}

const instrumentationName = "github.com/ralphctl/ralph/internal/engine"

// metrics holds the engine's OTEL instruments, grounded on
// nevindra-oasis/observer's Instruments struct (trimmed to the
// counters/histograms an iteration loop needs). The engine never sets
// up an exporter itself — it uses whatever MeterProvider the host
// process has registered with otel.SetMeterProvider, falling back to
// OTEL's no-op provider when none was configured.
type metrics struct {
	iterationsStarted  metric.Int64Counter
	iterationsFinished metric.Int64Counter
	iterationDuration  metric.Float64Histogram
}

func newMetrics() metrics {
	meter := otel.Meter(instrumentationName)

	started, _ := meter.Int64Counter("ralph.iterations.started",
		metric.WithDescription("iterations that began EXECUTE"))
	finished, _ := meter.Int64Counter("ralph.iterations.finished",
		metric.WithDescription("iterations that reached UPDATE, by outcome"))
	duration, _ := meter.Float64Histogram("ralph.iteration.duration",
		metric.WithDescription("wall-clock seconds from SELECT to UPDATE"),
		metric.WithUnit("s"))

	return metrics{iterationsStarted: started, iterationsFinished: finished, iterationDuration: duration}
}

func (e *Engine) recordIterationStarted() {
	if e.metrics.iterationsStarted != nil {
		e.metrics.iterationsStarted.Add(context.Background(), 1)
	}
}

func (e *Engine) recordIterationFinished(outcome types.IterationOutcome, d time.Duration) {
	ctx := context.Background()
	if e.metrics.iterationsFinished != nil {
		e.metrics.iterationsFinished.Add(ctx, 1, metric.WithAttributes(outcomeAttr(outcome)))
	}
	if e.metrics.iterationDuration != nil {
		e.metrics.iterationDuration.Record(ctx, d.Seconds(), metric.WithAttributes(outcomeAttr(outcome)))
	}
}
