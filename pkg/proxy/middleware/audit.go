package middleware

import "context"

// AuditNote carries handler-level detail up to the audit middleware.
// The middleware plants a pointer before the handler runs; the chat
// handler fills in what it learned from the body.
type AuditNote struct {
	Model    string
	Streamed bool
}

// auditNoteKey stores the *AuditNote pointer.
const auditNoteKey contextKey = "audit_note"

// WithAuditNote returns a context carrying a fresh AuditNote and the
// note itself.
func WithAuditNote(ctx context.Context) (context.Context, *AuditNote) {
	note := &AuditNote{}
	return context.WithValue(ctx, auditNoteKey, note), note
}

// GetAuditNote extracts the audit note pointer, or nil when request
// logging is disabled.
func GetAuditNote(ctx context.Context) *AuditNote {
	if note, ok := ctx.Value(auditNoteKey).(*AuditNote); ok {
		return note
	}
	return nil
}
