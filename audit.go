package authcore

import (
	"io"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/rs/zerolog"
)

// AuditEvent is one security-relevant engine event.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's dispatcher goroutine.
// Implementations must be safe for concurrent use.
type AuditSink = audit.Sink

type (
	NoOpSink       = audit.NoOpSink
	ChannelSink    = audit.ChannelSink
	JSONWriterSink = audit.JSONWriterSink
	ZerologSink    = audit.ZerologSink
	MultiSink      = audit.MultiSink
)

// NewChannelSink returns a sink that buffers events on a channel.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewZerologSink returns a sink logging events through logger.
func NewZerologSink(logger zerolog.Logger) *ZerologSink {
	return audit.NewZerologSink(logger)
}
