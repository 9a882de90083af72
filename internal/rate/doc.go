// Package rate tracks failed login attempts in Redis so throttling decisions
// survive process restarts.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit, plus a
// last-failure timestamp key sharing the same TTL. Key prefixes:
//   - wtr:ln: — per login name
//   - wtr:ip: — per client IP (optional)
//
// # What this package must NOT do
//
//   - Compute backoff delays (that policy lives in the wt root package).
//   - Be imported outside the wt module.
package rate
