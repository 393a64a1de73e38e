package goSession

import (
	"io"

	"github.com/MrEthical07/goSession/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is the record delivered to an [AuditSink].
type AuditEvent = audit.Event

// AuditSink receives audit events. Emit must not block for long; the engine
// dispatches through a bounded buffer.
type AuditSink = audit.Sink

// Audit event names.
const (
	AuditEventSessionIssued        = audit.EventSessionIssued
	AuditEventRefreshSuccess       = audit.EventRefreshSuccess
	AuditEventRefreshInvalid       = audit.EventRefreshInvalid
	AuditEventRefreshReuseDetected = audit.EventRefreshReuseDetected
	AuditEventLineageRevoked       = audit.EventLineageRevoked
	AuditEventLogoutSession        = audit.EventLogoutSession
	AuditEventRateLimitTriggered   = audit.EventRateLimitTriggered
)

// NoOpSink discards every event.
type NoOpSink = audit.NoOpSink

// ChannelSink delivers events into a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = audit.JSONWriterSink

// ZapSink logs every event at warn level with structured fields.
type ZapSink = audit.ZapSink

// NewChannelSink returns a [ChannelSink] with the given buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a [JSONWriterSink] over w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewZapSink returns a [ZapSink] over logger.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return audit.NewZapSink(logger)
}
