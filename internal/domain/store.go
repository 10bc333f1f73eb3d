package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// EventStore persists the append-only engine event log. Append must be
// idempotent on Event.ID.
type EventStore interface {
	Append(ctx context.Context, evt Event) error
	// List returns up to limit events of a session with Seq > afterSeq,
	// in commit order.
	List(ctx context.Context, sessionID string, afterSeq uint64, limit int) ([]Event, error)
}

// BidStore persists bid history.
type BidStore interface {
	Insert(ctx context.Context, sessionID string, bid BidRecord) error
	InvalidateLot(ctx context.Context, sessionID, lotID string) error
	ListBySession(ctx context.Context, sessionID string) ([]BidRecord, error)
}

// RTMStore persists RTM attempts.
type RTMStore interface {
	Upsert(ctx context.Context, sessionID string, attempt RTMAttempt) error
	ListBySession(ctx context.Context, sessionID string) ([]RTMAttempt, error)
}

// PlayerStore persists the current player rows.
type PlayerStore interface {
	Upsert(ctx context.Context, p Player) error
	UpsertBatch(ctx context.Context, players []Player) error
	DeleteNotIn(ctx context.Context, keep []string) (int64, error)
}

// TeamStore persists ledger snapshots.
type TeamStore interface {
	Upsert(ctx context.Context, t Team) error
	UpsertBatch(ctx context.Context, teams []Team) error
}

// AuditEntry is a single audit log row: who issued which command.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Subject   string         `json:"subject"`
	Role      Role           `json:"role"`
	Command   string         `json:"command"`
	Outcome   string         `json:"outcome"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only log of operator and team commands.
type AuditStore interface {
	Log(ctx context.Context, entry AuditEntry) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
