// Package metrics provides Prometheus-style metrics export for the
// flashT5 pipeline: preprocessing throughput, collation counts, and
// training-loop progress.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
)

// =============================================================================
// Metrics Registry
// =============================================================================

// Registry holds all registered metrics.
type Registry struct {
	counters map[string]*Counter
	gauges   map[string]*Gauge
	mu       sync.RWMutex
}

// DefaultRegistry is the global metrics registry.
var DefaultRegistry = NewRegistry()

// NewRegistry creates a new metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]*Counter),
		gauges:   make(map[string]*Gauge),
	}
}

// =============================================================================
// Counter Metric
// =============================================================================

// Counter is a monotonically increasing metric.
type Counter struct {
	name  string
	help  string
	value atomic.Uint64
}

// CounterOpts holds options for creating a counter.
type CounterOpts struct {
	Name string
	Help string
}

// NewCounter creates and registers a new counter.
func NewCounter(opts CounterOpts) *Counter {
	c := &Counter{name: opts.Name, help: opts.Help}
	DefaultRegistry.mu.Lock()
	DefaultRegistry.counters[opts.Name] = c
	DefaultRegistry.mu.Unlock()
	return c
}

// Inc increments the counter by 1.
func (c *Counter) Inc() {
	c.value.Add(1)
}

// Add adds the given value to the counter.
func (c *Counter) Add(v uint64) {
	c.value.Add(v)
}

// Value returns the current counter value.
func (c *Counter) Value() uint64 {
	return c.value.Load()
}

// =============================================================================
// Gauge Metric
// =============================================================================

// Gauge is a metric that can go up and down.
type Gauge struct {
	name  string
	help  string
	value atomic.Int64
}

// GaugeOpts holds options for creating a gauge.
type GaugeOpts struct {
	Name string
	Help string
}

// NewGauge creates and registers a new gauge.
func NewGauge(opts GaugeOpts) *Gauge {
	g := &Gauge{name: opts.Name, help: opts.Help}
	DefaultRegistry.mu.Lock()
	DefaultRegistry.gauges[opts.Name] = g
	DefaultRegistry.mu.Unlock()
	return g
}

// Set sets the gauge to the given value.
func (g *Gauge) Set(v int64) {
	g.value.Store(v)
}

// Inc increments the gauge by 1.
func (g *Gauge) Inc() {
	g.value.Add(1)
}

// Dec decrements the gauge by 1.
func (g *Gauge) Dec() {
	g.value.Add(-1)
}

// Value returns the current gauge value.
func (g *Gauge) Value() int64 {
	return g.value.Load()
}

// =============================================================================
// Text Exposition
// =============================================================================

// Handler returns an http.Handler serving the /metrics endpoint in the
// Prometheus text exposition format.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		r := DefaultRegistry
		r.mu.RLock()
		defer r.mu.RUnlock()

		names := make([]string, 0, len(r.counters))
		for name := range r.counters {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			c := r.counters[name]
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, c.help, name, name, c.Value())
		}

		names = names[:0]
		for name := range r.gauges {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			g := r.gauges[name]
			fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n", name, g.help, name, name, g.Value())
		}
	})
}

// =============================================================================
// Pipeline Metrics
// =============================================================================

var (
	// FlowsPreprocessed counts flow records completed by the offline
	// preprocessor.
	FlowsPreprocessed = NewCounter(CounterOpts{
		Name: "flasht5_flows_preprocessed_total",
		Help: "Total flow records preprocessed",
	})

	// HeaderTruncations counts flows whose truncation exhausted the
	// payload and had to cut header bytes.
	HeaderTruncations = NewCounter(CounterOpts{
		Name: "flasht5_header_truncations_total",
		Help: "Flows that fell back to header truncation",
	})

	// POPSwaps counts applied packet-order swaps.
	POPSwaps = NewCounter(CounterOpts{
		Name: "flasht5_pop_swaps_total",
		Help: "Packet order prediction swaps applied",
	})

	// BatchesCollated counts batches produced by the collator.
	BatchesCollated = NewCounter(CounterOpts{
		Name: "flasht5_batches_collated_total",
		Help: "Batches collated for training",
	})

	// MaskSpans counts noise spans generated across all batches.
	MaskSpans = NewCounter(CounterOpts{
		Name: "flasht5_mask_spans_total",
		Help: "Noise spans generated by the span masker",
	})

	// TrainingSteps counts completed training steps.
	TrainingSteps = NewCounter(CounterOpts{
		Name: "flasht5_training_steps_total",
		Help: "Training steps completed",
	})

	// DatasetRecords tracks the size of the loaded dataset.
	DatasetRecords = NewGauge(GaugeOpts{
		Name: "flasht5_dataset_records",
		Help: "Flow records in the loaded dataset",
	})
)
