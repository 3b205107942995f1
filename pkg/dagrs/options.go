package dagrs

// runConfig holds the tunables a Start/RunAsync call can override via
// RunOption, using the usual functional-options shape for per-call
// configuration.
type runConfig struct {
	channelCapacity int
	metricsEnabled  bool
	tracingEnabled  bool
	runID           string
}

func defaultRunConfig() runConfig {
	return runConfig{
		channelCapacity: defaultChannelCapacity,
	}
}

// RunOption configures a single Start/RunAsync call.
type RunOption func(*runConfig)

// WithChannelCapacity overrides the bounded capacity of every edge
// channel provisioned for this run. Default 16.
func WithChannelCapacity(capacity int) RunOption {
	return func(c *runConfig) {
		if capacity > 0 {
			c.channelCapacity = capacity
		}
	}
}

// WithMetrics enables or disables OpenTelemetry metrics recording for
// this run: node execution counts/latency, channel wait time, and loop
// iteration counts. Disabled by default.
func WithMetrics(enabled bool) RunOption {
	return func(c *runConfig) { c.metricsEnabled = enabled }
}

// WithTracing enables or disables OpenTelemetry span recording for this
// run: one run span, with one child span per node. Disabled by default.
func WithTracing(enabled bool) RunOption {
	return func(c *runConfig) { c.tracingEnabled = enabled }
}

// WithRunID overrides the run identifier used for cancellation tracking
// and log/trace correlation, in place of the randomly generated default.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		if id != "" {
			c.runID = id
		}
	}
}
