package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
)

func TestInitWithoutExporter(t *testing.T) {
	tp, shutdown, err := Init(context.Background(), Config{ServiceName: "samcrawler-test", Version: "dev", TracingEnabled: true})
	require.NoError(t, err)
	require.NotNil(t, tp)

	ctx, span := Tracer().Start(context.Background(), "unit")
	require.True(t, span.SpanContext().IsValid())
	require.True(t, span.SpanContext().IsSampled())

	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	require.NotEmpty(t, carrier.Get("traceparent"))
	span.End()

	require.NoError(t, shutdown(context.Background()))
}
