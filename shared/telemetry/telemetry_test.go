package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nko-map-backend/shared/config"
)

func TestNewWithoutEndpointIsNoop(t *testing.T) {
	p, err := New(context.Background(), &config.Config{ServiceName: "test"}, zap.NewNop())
	require.NoError(t, err)
	require.False(t, p.Enabled())
	require.NotNil(t, p.Tracer())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestNewWithEndpointDoesNotDial(t *testing.T) {
	cfg := &config.Config{
		ServiceName:       "test",
		Environment:       "development",
		TelemetryEndpoint: "127.0.0.1:4318",
		TelemetryInsecure: true,
	}
	p, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.True(t, p.Enabled())

	_, span := p.Tracer().Start(context.Background(), "probe")
	span.End()
	require.True(t, span.SpanContext().IsValid())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = p.Shutdown(ctx)
}
