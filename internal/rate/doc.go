// Package rate provides the Redis-backed fixed-window login throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - al:  — login per-identifier
//   - ali: — login per-IP
//
// # What this package must NOT do
//
//   - Decide throttle policy (budgets come from engine configuration).
//   - Be imported outside the authgate module.
package rate
