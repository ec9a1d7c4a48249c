package internaltelemetry

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// PageSwapMetrics holds all the metric instruments for the page-swapping
// layer. A nil *PageSwapMetrics is valid and records nothing, so the swapper
// can run uninstrumented in tests.
type PageSwapMetrics struct {
	PagesSwappedIn  metric.Int64Counter
	PagesSwappedOut metric.Int64Counter
	BytesRead       metric.Int64Counter
	BytesWritten    metric.Int64Counter
	ChannelReopens  metric.Int64Counter
	Forces          metric.Int64Counter
	Evictions       metric.Int64Counter
}

// NewPageSwapMetrics creates and registers all the metrics for the
// page-swapping layer.
func NewPageSwapMetrics(meter metric.Meter) (*PageSwapMetrics, error) {
	pagesSwappedIn, err := meter.Int64Counter(
		"neo4j.io.pagecache.swapped_in_total",
		metric.WithDescription("Total number of pages read from backing files."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	pagesSwappedOut, err := meter.Int64Counter(
		"neo4j.io.pagecache.swapped_out_total",
		metric.WithDescription("Total number of pages written to backing files."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	bytesRead, err := meter.Int64Counter(
		"neo4j.io.pagecache.bytes_read_total",
		metric.WithDescription("Total bytes read from backing files."),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	bytesWritten, err := meter.Int64Counter(
		"neo4j.io.pagecache.bytes_written_total",
		metric.WithDescription("Total bytes written to backing files."),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	channelReopens, err := meter.Int64Counter(
		"neo4j.io.pagecache.channel_reopens_total",
		metric.WithDescription("Times a store channel was transparently reopened after an asynchronous close."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	forces, err := meter.Int64Counter(
		"neo4j.io.pagecache.forces_total",
		metric.WithDescription("Total number of force (fsync) calls."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	evictions, err := meter.Int64Counter(
		"neo4j.io.pagecache.evictions_total",
		metric.WithDescription("Total number of page bindings dropped by swappers."),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &PageSwapMetrics{
		PagesSwappedIn:  pagesSwappedIn,
		PagesSwappedOut: pagesSwappedOut,
		BytesRead:       bytesRead,
		BytesWritten:    bytesWritten,
		ChannelReopens:  channelReopens,
		Forces:          forces,
		Evictions:       evictions,
	}, nil
}

// RecordSwapIn counts one page read of the given size.
func (m *PageSwapMetrics) RecordSwapIn(ctx context.Context, bytes int) {
	if m == nil {
		return
	}
	m.PagesSwappedIn.Add(ctx, 1)
	m.BytesRead.Add(ctx, int64(bytes))
}

// RecordSwapOut counts one page write of the given size.
func (m *PageSwapMetrics) RecordSwapOut(ctx context.Context, bytes int) {
	if m == nil {
		return
	}
	m.PagesSwappedOut.Add(ctx, 1)
	m.BytesWritten.Add(ctx, int64(bytes))
}

// RecordReopen counts one transparent channel reopen.
func (m *PageSwapMetrics) RecordReopen(ctx context.Context) {
	if m == nil {
		return
	}
	m.ChannelReopens.Add(ctx, 1)
}

// RecordForce counts one force call.
func (m *PageSwapMetrics) RecordForce(ctx context.Context) {
	if m == nil {
		return
	}
	m.Forces.Add(ctx, 1)
}

// RecordEviction counts one dropped page binding.
func (m *PageSwapMetrics) RecordEviction(ctx context.Context) {
	if m == nil {
		return
	}
	m.Evictions.Add(ctx, 1)
}
