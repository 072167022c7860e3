package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"

	"invoice-assistant/internal/common/logger"
	"invoice-assistant/internal/models"
)

// Observability owns the otel meter and the assistant's counters. The
// prometheus exporter registers with the default registry, scraped via
// /metrics.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	turnCounter   otelmetric.Int64Counter
	turnDuration  otelmetric.Float64Histogram
	fallbacks     otelmetric.Int64Counter
	actionCounter otelmetric.Int64Counter
}

func New(serviceName string, log logger.Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.WithError(err).Error("failed to create prometheus exporter", nil)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	turnCounter, _ := meter.Int64Counter(
		"conversation.turns",
		otelmetric.WithDescription("Conversation turns processed"),
	)
	turnDuration, _ := meter.Float64Histogram(
		"conversation.turn.duration",
		otelmetric.WithDescription("Turn processing duration"),
		otelmetric.WithUnit("ms"),
	)
	fallbacks, _ := meter.Int64Counter(
		"analyzer.fallbacks",
		otelmetric.WithDescription("Turns classified by the rule fallback"),
	)
	actionCounter, _ := meter.Int64Counter(
		"actions.executed",
		otelmetric.WithDescription("Actions executed"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		turnCounter:   turnCounter,
		turnDuration:  turnDuration,
		fallbacks:     fallbacks,
		actionCounter: actionCounter,
	}
}

func (o *Observability) RecordTurn(ctx context.Context, intent models.Intent, source models.AnalysisSource, duration time.Duration) {
	if o.turnCounter != nil {
		o.turnCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("intent", string(intent)),
			attribute.String("source", string(source)),
		))
	}
	if o.turnDuration != nil {
		o.turnDuration.Record(ctx, float64(duration.Milliseconds()))
	}
	if o.fallbacks != nil && source == models.SourceRules {
		o.fallbacks.Add(ctx, 1)
	}
}

func (o *Observability) RecordAction(ctx context.Context, actionType models.ActionType, status models.ActionStatus) {
	if o.actionCounter != nil {
		o.actionCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("type", string(actionType)),
			attribute.String("status", string(status)),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
