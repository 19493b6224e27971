// Package costmap converts billing query rows into gauge observations.
//
// The Mapper is a pure, synchronous transformation invoked once per
// polling cycle per account. Per row it applies, in order:
//
//  1. the date filter: only rows stamped with the query window's start
//     day are kept (adjacent-day rows from timezone rounding are
//     silently dropped);
//  2. grouping: each configured group spec binds one positional row
//     field to its output label;
//  3. minor-cost merge: grouped rows below the threshold accumulate
//     into a per-account bucket instead of emitting their own series,
//     bounding label cardinality at the cost of granularity. The
//     bucket is flushed once, with every group label set to the
//     configured placeholder and no currency, when its native sum is
//     positive.
//
// Rows that do not fit the configured policy (too few fields, wrong
// field types) abort with billing.ErrContract; they signal a mismatch
// between configuration and the live API schema that would otherwise
// corrupt metric values.
package costmap
