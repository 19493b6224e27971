// Package metrics implements the cost gauge registries.
//
// A Schema fixes the full label key set at startup: the descriptive
// labels of the first configured target, ChargeType and Currency, and
// one label per configured group spec. Every observation written to a
// Registry is validated against the schema and rejected on any
// mismatch.
//
// A Registry is a prometheus.Collector over a double-buffered snapshot.
// The fetch cycle stages the new state with Clear and Set and swaps it
// in atomically with Publish, so a scrape arriving mid-cycle serves the
// previous complete snapshot instead of a transiently empty or
// half-populated one. Series absent from the published snapshot stop
// being reported entirely; a gauge here means "active in the last
// queried window", not "ever observed".
//
// The merged minor-cost bucket is written with Currency set to the
// empty string. In the Prometheus data model an empty label value is
// equivalent to the label being absent, which keeps the fixed key set
// while the merged series carries no currency.
package metrics
