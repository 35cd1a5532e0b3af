// Package hipaa provides the compliance audit trail. Every
// authorization-relevant outcome in the platform is recorded through the Sink
// interface. Event metadata carries identifiers and enum values only, never
// document content or other PHI.
package hipaa

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/medvault/medvault/internal/platform/db"
)

// Event is a single audit record.
type Event struct {
	ActorID   int64             `json:"actor_id"`
	ActorType string            `json:"actor_type"`
	Kind      string            `json:"kind"`
	Success   bool              `json:"success"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Recorded  time.Time         `json:"recorded"`
}

// Event kinds emitted by the core services.
const (
	EventDocumentAccess = "document.access"
	EventDocumentList   = "document.list"
	EventGrantCreate    = "grant.create"
	EventGrantRevoke    = "grant.revoke"
	EventDocumentUpload = "document.upload"
	EventOCRTrigger     = "document.ocr_trigger"
	EventDocumentDelete = "document.delete"
)

// Sink receives audit events. Implementations are fire-and-forget: they must
// never propagate failures back into the recording code path.
type Sink interface {
	LogEvent(ctx context.Context, e Event)
}

// AuditLogger writes audit events to the audit_log table. Write failures are
// logged and swallowed so that auditing never breaks the operation it records.
type AuditLogger struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewAuditLogger(pool *pgxpool.Pool, logger zerolog.Logger) *AuditLogger {
	return &AuditLogger{pool: pool, logger: logger}
}

func (a *AuditLogger) LogEvent(ctx context.Context, e Event) {
	if e.Recorded.IsZero() {
		e.Recorded = time.Now().UTC()
	}

	const query = `
		INSERT INTO audit_log (actor_id, actor_type, event_kind, success, metadata, recorded)
		VALUES ($1, $2, $3, $4, $5, $6)`

	var err error
	if conn := db.ConnFromContext(ctx); conn != nil {
		_, err = conn.Exec(ctx, query, e.ActorID, e.ActorType, e.Kind, e.Success, e.Metadata, e.Recorded)
	} else {
		_, err = a.pool.Exec(ctx, query, e.ActorID, e.ActorType, e.Kind, e.Success, e.Metadata, e.Recorded)
	}
	if err != nil {
		a.logger.Error().Err(err).
			Str("event_kind", e.Kind).
			Int64("actor_id", e.ActorID).
			Msg("failed to persist audit event")
	}
}

// LogSink writes audit events to structured logs only. Used in development
// and as a fallback when no database is available.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) LogEvent(_ context.Context, e Event) {
	evt := s.logger.Info()
	if !e.Success {
		evt = s.logger.Warn()
	}
	evt.
		Str("type", "hipaa_audit").
		Int64("actor_id", e.ActorID).
		Str("actor_type", e.ActorType).
		Str("event_kind", e.Kind).
		Bool("success", e.Success).
		Fields(map[string]interface{}{"metadata": e.Metadata}).
		Msg("audit_event")
}

// NopSink discards all events. Intended for tests.
type NopSink struct{}

func (NopSink) LogEvent(context.Context, Event) {}
