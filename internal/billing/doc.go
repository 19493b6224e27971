// Package billing defines the billing query abstraction layer.
//
// It specifies the contract between the fetch cycle and any cost data
// backend: a Client queries one account for one calendar-day window and
// returns positional Rows ([cost, costUsd, date, currency, group
// values...]). The Azure implementation lives in the azure package.
//
// Responses that do not match the configured group-by policy are
// reported by wrapping ErrContract, which downstream code treats as
// fatal rather than a transient query failure.
package billing
