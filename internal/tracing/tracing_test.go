package tracing

import (
	"context"
	"testing"

	"github.com/USSTM/asset-backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInit_WithoutEndpoint(t *testing.T) {
	ctx := context.Background()
	shutdown, err := Init(ctx, &config.TracingConfig{ServiceName: "asset-backend-test", SampleRatio: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	_, span := otel.Tracer("test").Start(ctx, "op")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.SpanContext().IsSampled())
}

func TestInit_ZeroRatioDropsRoots(t *testing.T) {
	ctx := context.Background()
	shutdown, err := Init(ctx, &config.TracingConfig{ServiceName: "asset-backend-test", SampleRatio: 0})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	_, span := otel.Tracer("test").Start(ctx, "op")
	defer span.End()
	assert.False(t, span.SpanContext().IsSampled())
}

func TestNewExporter_AcceptsBothForms(t *testing.T) {
	ctx := context.Background()

	exp, err := newExporter(ctx, "localhost:4318")
	require.NoError(t, err)
	require.NoError(t, exp.Shutdown(ctx))

	exp, err = newExporter(ctx, "https://collector.example.com/v1/traces")
	require.NoError(t, err)
	require.NoError(t, exp.Shutdown(ctx))
}
