package wt

import (
	"io"

	"github.com/RokerHRO/wt/internal/audit"
)

// NoOpAuditSink discards all audit events.
type NoOpAuditSink = audit.NoOpSink

// AuditChannelSink buffers audit events in a channel for the embedder to drain.
type AuditChannelSink = audit.ChannelSink

// NewAuditChannelSink returns a channel-backed audit sink with the given buffer.
func NewAuditChannelSink(buffer int) *AuditChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewAuditJSONWriterSink returns a sink writing one JSON event per line to w.
func NewAuditJSONWriterSink(w io.Writer) audit.Sink {
	return audit.NewJSONWriterSink(w)
}
