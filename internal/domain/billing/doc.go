// Package billing contains the invoicing and recurring-billing domain model:
// jurisdiction-aware tax computation, the Invoice aggregate with its frozen
// tax split, recurring schedule cadence and lifecycle, per-tenant usage
// counters against plan limits, and subscription plans.
//
// All money math uses decimal values at paise precision; floating point never
// touches an amount. Aggregates are mutated only through their own methods so
// that the "totals are frozen once confirmed" invariant cannot be bypassed by
// reaching into nested collections.
package billing
