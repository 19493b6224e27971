// Package azure implements the billing.Client contract against the
// Azure Cost Management API.
//
// It handles:
//   - per-tenant authentication from configured client-secret
//     credentials, one query client per distinct tenant
//   - daily ActualCost queries aggregating billing-currency and USD
//     cost, grouped by the configured dimensions
//   - normalization of the column-oriented API response into the
//     positional row layout the cost mapper consumes
//   - per-call timeouts from the configured API timeout
//
// Responses whose columns do not cover the configured policy are
// reported as billing.ErrContract.
package azure
