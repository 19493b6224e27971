package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// separator for snapshot keys; cannot occur in a valid UTF-8 label value
const keySeparator = "\xff"

// observation is one gauge point: label values in schema order
type observation struct {
	values []string
	value  float64
}

// Registry is a gauge family with a fixed label schema. Writers build
// the next cycle's state with Clear and Set, then swap it in with
// Publish. Scrapes always see the last published snapshot, never a
// partially repopulated one.
type Registry struct {
	desc   *prometheus.Desc
	schema *Schema

	mu      sync.RWMutex
	live    map[string]observation
	staging map[string]observation
}

// Registry implements prometheus.Collector
var _ prometheus.Collector = (*Registry)(nil)

// NewRegistry creates a gauge registry with the given metric name and
// label schema.
func NewRegistry(name, help string, schema *Schema) *Registry {
	return &Registry{
		desc:    prometheus.NewDesc(name, help, schema.Names(), nil),
		schema:  schema,
		live:    make(map[string]observation),
		staging: make(map[string]observation),
	}
}

// Clear discards all staged observations. Published values keep being
// served until the next Publish.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staging = make(map[string]observation)
}

// Set stages one observation. The label key set must match the schema
// exactly; a mismatch is an error, never silently accepted. Setting the
// same label set twice in one cycle overwrites the staged value.
func (r *Registry) Set(labels map[string]string, value float64) error {
	values, err := r.schema.Values(labels)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.staging[strings.Join(values, keySeparator)] = observation{values: values, value: value}
	return nil
}

// Publish atomically replaces the served snapshot with the staged one.
func (r *Registry) Publish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live = r.staging
	r.staging = make(map[string]observation)
}

// Size returns the number of series in the published snapshot
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.live)
}

// Describe implements prometheus.Collector
func (r *Registry) Describe(ch chan<- *prometheus.Desc) {
	ch <- r.desc
}

// Collect implements prometheus.Collector
func (r *Registry) Collect(ch chan<- prometheus.Metric) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, obs := range r.live {
		ch <- prometheus.MustNewConstMetric(r.desc, prometheus.GaugeValue, obs.value, obs.values...)
	}
}
