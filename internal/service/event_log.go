package service

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/auctiond/internal/auction"
	"github.com/alanyoungcy/auctiond/internal/domain"
)

// maxReplay caps one page of replayed events.
const maxReplay = 500

// EventLog serves the persisted events of the running session so a display
// that dropped its WebSocket can fill the gap by sequence number. The log
// trails the engine by whatever the recorder has not written yet; clients
// stitch it to the live stream by Seq.
type EventLog struct {
	engine *auction.Engine
	store  domain.EventStore
}

// NewEventLog creates an EventLog over store.
func NewEventLog(engine *auction.Engine, store domain.EventStore) *EventLog {
	return &EventLog{engine: engine, store: store}
}

// Since returns up to limit events committed after seq.
func (l *EventLog) Since(ctx context.Context, actor domain.Actor, seq uint64, limit int) ([]domain.Event, error) {
	if err := authorize(actor, "events", readers...); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxReplay {
		limit = maxReplay
	}
	events, err := l.store.List(ctx, l.engine.Session().ID, seq, limit)
	if err != nil {
		return nil, fmt.Errorf("event_log: list: %w", err)
	}
	if events == nil {
		events = []domain.Event{}
	}
	return events, nil
}
