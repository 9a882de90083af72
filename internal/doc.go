// Package internal contains helper utilities that are intentionally private to wt,
// including secure random token generation and series ID encoding.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - rate — Redis-backed failed-attempt counters for login throttling
//   - stores — Redis-backed remember-me and email token stores
//
// # What this package must NOT do
//
//   - Export types that appear in the public wt API.
//   - Be imported by any package outside the wt module.
package internal
