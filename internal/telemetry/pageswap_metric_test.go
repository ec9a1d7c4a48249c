package internaltelemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/janejin/neo4j/pkg/telemetry"
)

// TestNewPageSwapMetrics verifies that the full instrument bundle registers
// against a meter and that the recording helpers run.
func TestNewPageSwapMetrics(t *testing.T) {
	tel, shutdown, err := telemetry.New(telemetry.Config{Enabled: false})
	require.NoError(t, err)
	defer shutdown(context.Background())

	metrics, err := NewPageSwapMetrics(tel.Meter)
	require.NoError(t, err)
	require.NotNil(t, metrics.PagesSwappedIn)
	require.NotNil(t, metrics.PagesSwappedOut)
	require.NotNil(t, metrics.BytesRead)
	require.NotNil(t, metrics.BytesWritten)
	require.NotNil(t, metrics.ChannelReopens)
	require.NotNil(t, metrics.Forces)
	require.NotNil(t, metrics.Evictions)

	ctx := context.Background()
	metrics.RecordSwapIn(ctx, 8192)
	metrics.RecordSwapOut(ctx, 8192)
	metrics.RecordReopen(ctx)
	metrics.RecordForce(ctx)
	metrics.RecordEviction(ctx)
}

// TestNilMetricsAreSafe verifies the uninstrumented path: every helper on a
// nil bundle is a no-op.
func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *PageSwapMetrics
	ctx := context.Background()

	require.NotPanics(t, func() {
		metrics.RecordSwapIn(ctx, 1)
		metrics.RecordSwapOut(ctx, 1)
		metrics.RecordReopen(ctx)
		metrics.RecordForce(ctx)
		metrics.RecordEviction(ctx)
	})
}
