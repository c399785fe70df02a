package logging

import (
	"context"
	"duesdesk/internal/core"

	"github.com/rs/zerolog"
)

// AuditLogger writes one structured line per audited mutation.
type AuditLogger struct {
	logger zerolog.Logger
}

// NewAuditLogger tags every entry with component=audit.
func NewAuditLogger(logger zerolog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.With().Str("component", "audit").Logger()}
}

// Record implements core.AuditRecorder.
func (a *AuditLogger) Record(_ context.Context, entry core.AuditEntry) {
	event := a.logger.Info()
	if entry.Status == core.AuditStatusError {
		event = a.logger.Warn().Str("error", entry.Error)
	}
	event.
		Str("operation", entry.Operation).
		Str("entity", string(entry.Entity)).
		Str("action", string(entry.Action)).
		Int("entity_id", entry.EntityID).
		Str("actor", entry.Actor).
		Str("status", string(entry.Status)).
		Dur("duration", entry.Duration).
		Time("at", entry.Timestamp).
		Msg("audit")
}
