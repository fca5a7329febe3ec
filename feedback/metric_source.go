package feedback

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// MetricSource produces a named numeric value on demand. Implementations
// may block (network probes, database counters); they must respect ctx
// and must never mutate loop state.
type MetricSource interface {
	Sample(ctx context.Context, name string) (float64, error)
}

// SourceFunc adapts a plain function to the MetricSource interface.
// Tests use it to inject deterministic stub sources.
type SourceFunc func(ctx context.Context, name string) (float64, error)

func (f SourceFunc) Sample(ctx context.Context, name string) (float64, error) {
	return f(ctx, name)
}

// MetricSample is one observed value, produced each cycle.
type MetricSample struct {
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// SourceRegistry maps metric names to their sources for one subject.
// Registration is expected to happen before the owning loop starts;
// lookups are safe for concurrent use.
type SourceRegistry struct {
	mu      sync.RWMutex
	sources map[string]MetricSource
}

// NewSourceRegistry creates an empty source registry.
func NewSourceRegistry() *SourceRegistry {
	return &SourceRegistry{sources: make(map[string]MetricSource)}
}

// Register binds a source to a metric name, replacing any prior binding.
func (r *SourceRegistry) Register(name string, source MetricSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = source
}

// RegisterFunc binds a sampling function to a metric name.
func (r *SourceRegistry) RegisterFunc(name string, fn func(ctx context.Context) (float64, error)) {
	r.Register(name, SourceFunc(func(ctx context.Context, _ string) (float64, error) {
		return fn(ctx)
	}))
}

// Sample resolves the source for name and samples it. An unregistered
// name fails with *UnknownMetricError.
func (r *SourceRegistry) Sample(ctx context.Context, name string) (float64, error) {
	r.mu.RLock()
	source, ok := r.sources[name]
	r.mu.RUnlock()

	if !ok {
		return 0, &UnknownMetricError{Metric: name}
	}
	return source.Sample(ctx, name)
}

// Names returns the registered metric names.
func (r *SourceRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	return names
}

// Counter is an atomic in-process counter usable as a real metric source.
type Counter struct {
	value atomic.Int64
}

// NewCounter creates a counter starting at zero.
func NewCounter() *Counter { return &Counter{} }

// Inc increments the counter by one.
func (c *Counter) Inc() { c.value.Add(1) }

// Add increments the counter by delta.
func (c *Counter) Add(delta int64) { c.value.Add(delta) }

// Sample returns the current counter value.
func (c *Counter) Sample(_ context.Context, _ string) (float64, error) {
	return float64(c.value.Load()), nil
}

// GaugeSource reads the live value of a Prometheus gauge, so loops can
// monitor values the host application already instruments.
type GaugeSource struct {
	gauge prometheus.Gauge
}

// NewGaugeSource wraps an existing Prometheus gauge as a metric source.
func NewGaugeSource(gauge prometheus.Gauge) *GaugeSource {
	return &GaugeSource{gauge: gauge}
}

// Sample extracts the gauge's current value.
func (g *GaugeSource) Sample(_ context.Context, name string) (float64, error) {
	var m dto.Metric
	if err := g.gauge.Write(&m); err != nil {
		return 0, fmt.Errorf("reading gauge for metric %q: %w", name, err)
	}
	if m.Gauge == nil || m.Gauge.Value == nil {
		return 0, fmt.Errorf("gauge for metric %q carries no value", name)
	}
	return m.Gauge.GetValue(), nil
}
