package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records dagrs engine metrics.
// Use NewMetricsRecorder() for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordNodeExecution records a node execution with its duration and error status.
	RecordNodeExecution(nodeName string, duration time.Duration, err error)

	// RecordGraphRun records a graph run completion.
	RecordGraphRun(ctx context.Context, success bool, duration time.Duration)

	// RecordChannelWait records how long a send suspended against a full
	// edge channel — the reverse-pressure suspension point.
	RecordChannelWait(ctx context.Context, edge string, duration time.Duration)

	// RecordLoopIteration records one pass over a loop subgraph's interior.
	RecordLoopIteration(ctx context.Context, loopName string, iteration int)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	nodeExecutions metric.Int64Counter
	nodeLatency    metric.Float64Histogram
	nodeErrors     metric.Int64Counter
	graphRuns      metric.Int64Counter
	graphLatency   metric.Float64Histogram
	channelWaitMs  metric.Float64Histogram
	loopIterations metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the default OTel metrics instance.
// Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("dagrs")

	nodeExecutions, err := meter.Int64Counter("dagrs.node.executions",
		metric.WithDescription("Number of node executions"))
	if err != nil {
		return nil, err
	}

	nodeLatency, err := meter.Float64Histogram("dagrs.node.latency_ms",
		metric.WithDescription("Node execution latency in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	nodeErrors, err := meter.Int64Counter("dagrs.node.errors",
		metric.WithDescription("Number of node execution errors"))
	if err != nil {
		return nil, err
	}

	graphRuns, err := meter.Int64Counter("dagrs.graph.runs",
		metric.WithDescription("Number of graph runs"))
	if err != nil {
		return nil, err
	}

	graphLatency, err := meter.Float64Histogram("dagrs.graph.latency_ms",
		metric.WithDescription("Graph run latency in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	channelWaitMs, err := meter.Float64Histogram("dagrs.channel.wait_ms",
		metric.WithDescription("Time a send suspended against a full edge channel"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	loopIterations, err := meter.Int64Counter("dagrs.loop.iterations",
		metric.WithDescription("Number of loop subgraph iterations executed"))
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		nodeExecutions: nodeExecutions,
		nodeLatency:    nodeLatency,
		nodeErrors:     nodeErrors,
		graphRuns:      graphRuns,
		graphLatency:   graphLatency,
		channelWaitMs:  channelWaitMs,
		loopIterations: loopIterations,
	}, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// RecordNodeExecution records a node execution.
func (m *otelMetrics) RecordNodeExecution(nodeName string, duration time.Duration, err error) {
	ctx := context.Background()
	attrs := []attribute.KeyValue{attribute.String("node_name", nodeName)}

	m.nodeExecutions.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.nodeLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.nodeErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordGraphRun records a graph run.
func (m *otelMetrics) RecordGraphRun(ctx context.Context, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{attribute.Bool("success", success)}
	m.graphRuns.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.graphLatency.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordChannelWait records a send's suspension time against a full channel.
func (m *otelMetrics) RecordChannelWait(ctx context.Context, edge string, duration time.Duration) {
	attrs := []attribute.KeyValue{attribute.String("edge", edge)}
	m.channelWaitMs.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
}

// RecordLoopIteration records one loop subgraph pass.
func (m *otelMetrics) RecordLoopIteration(ctx context.Context, loopName string, iteration int) {
	attrs := []attribute.KeyValue{
		attribute.String("loop_name", loopName),
		attribute.Int("iteration", iteration),
	}
	m.loopIterations.Add(ctx, 1, metric.WithAttributes(attrs...))
}
