// Package wt is an embeddable authentication-flow controller. It validates
// submitted credentials, decides session state after login, manages attempt
// throttling, issues and consumes persistent remember-me tokens, processes
// one-shot email tokens, and decides whether a multi-factor step is required.
//
// # Architecture boundaries
//
// The controller performs no network I/O of its own beyond Redis, which backs
// token records and failed-attempt counters. User records arrive through the
// caller-supplied [UserStore]; password hashing policy lives in the password
// sub-package; cookie transport, UI rendering, and the MFA challenge protocol
// itself belong to the embedding application.
//
// # Entry points
//
//   - [Controller.Validate] — password path: credentials in, identified [User] out.
//   - [Controller.ProcessAuthToken] — remember-me path: cookie value in, [User] out.
//   - [Controller.ProcessEmailToken] — email path: one-shot token in, [EmailTokenResult] out.
//   - [Controller.Login], [Controller.Logout] — the only mutators of [Session] state.
//
// # What this package must NOT do
//
//   - Render UI or manage HTTP requests and responses.
//   - Reveal whether a login name exists, in errors or in timing.
//   - Implement the second-factor challenge; it only decides if one is required.
package wt
