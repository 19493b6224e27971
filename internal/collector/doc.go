// Package collector implements the polling cycle around the cost
// registries.
//
// The Fetcher owns the clear -> query -> map -> publish lifecycle:
// each cycle both gauge registries are rebuilt from scratch so that
// accounts or cost buckets without activity in the queried window stop
// being reported. Accounts are processed strictly sequentially; a
// failed query is logged, counted and skipped for the cycle without
// affecting the remaining accounts, and the next scheduled cycle is
// the only retry. Contract violations (billing.ErrContract) abort the
// run loop instead.
//
// The Fetcher also exposes operational metrics (build info, per-account
// query failure counter, cycle duration and timestamp) and the
// readiness state consumed by the HTTP server.
package collector
