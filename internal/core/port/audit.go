package port

import "context"

// AuditEntry represents a single auditable analysis or preview run.
type AuditEntry struct {
	RunID        string
	Tool         string
	SQL          string
	Verdict      string
	Defect       string
	Warnings     []string
	Errors       []string
	RowsReturned int
	DurationMS   int64
	Err          error
}

// QueryAuditor records query audit events.
type QueryAuditor interface {
	Record(ctx context.Context, entry AuditEntry)
	Close() error
}
