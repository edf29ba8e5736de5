package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Tracing installs a global tracer provider for event spans and flushes it on Stop.
type Tracing struct {
	provider *sdktrace.TracerProvider
}

func NewTracing(sampleRatio float64) *Tracing {
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
	)
	return &Tracing{provider: provider}
}

func (t *Tracing) Start(context.Context) error {
	otel.SetTracerProvider(t.provider)
	return nil
}

func (t *Tracing) Stop(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}
