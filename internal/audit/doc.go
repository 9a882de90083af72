// Package audit delivers security-relevant events to embedder-provided sinks
// without blocking the authentication path.
//
// # Components
//
//   - [Event] — one occurrence in an authentication flow (timestamp, type, user, login name, IP, metadata).
//   - [Sink] — event consumer; channel, JSON line writer, and no-op implementations ship here.
//   - [Dispatcher] — buffered async relay between the Controller and a Sink.
//
// # Architecture boundaries
//
// This package owns buffering, delivery, and drop accounting. Deciding which
// events exist and when to emit them is the Controller's job.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import wt or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
