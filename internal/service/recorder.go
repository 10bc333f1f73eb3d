package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// Signal bus names the recorder publishes to.
const (
	ChannelEvents = "auction:events"
	StreamEvents  = "auction:stream"
)

// RetryPolicy bounds how hard the recorder tries to persist one event.
type RetryPolicy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultRetryPolicy doubles from 200ms up to 5s, six attempts in all.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 6, BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second}
}

// RecorderStores groups the persistence targets of the recorder.
type RecorderStores struct {
	Events  domain.EventStore
	Bids    domain.BidStore
	RTM     domain.RTMStore
	Players domain.PlayerStore
	Teams   domain.TeamStore
}

// Recorder persists engine events after they commit and bridges them to the
// signal bus. The engine never waits on it: a failed write is retried with
// the event ID as idempotency key and never rolls anything back.
type Recorder struct {
	stores RecorderStores
	bus    domain.SignalBus
	cache  domain.TeamCache
	retry  RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
	opTTL  time.Duration
	logger *slog.Logger

	// ledger is the team view rebuilt from events; only Run touches it.
	ledger map[string]domain.Team
}

// NewRecorder creates a Recorder. bus and cache may be nil.
func NewRecorder(stores RecorderStores, bus domain.SignalBus, cache domain.TeamCache, retry RetryPolicy, logger *slog.Logger) *Recorder {
	if retry.Attempts < 1 {
		retry = DefaultRetryPolicy()
	}
	return &Recorder{
		stores: stores,
		bus:    bus,
		cache:  cache,
		retry:  retry,
		sleep:  sleepCtx,
		opTTL:  10 * time.Second,
		logger: logger.With(slog.String("component", "recorder")),
		ledger: make(map[string]domain.Team),
	}
}

// Run records every event until the channel closes. Writes are detached
// from ctx cancellation so events queued before shutdown still land; ctx
// only cuts retry back-off short.
func (r *Recorder) Run(ctx context.Context, events <-chan domain.Event) error {
	for evt := range events {
		if err := r.Handle(ctx, evt); err != nil {
			r.logger.ErrorContext(ctx, "event not persisted",
				slog.String("event_id", evt.ID),
				slog.String("type", string(evt.Type)),
				slog.Uint64("seq", evt.Seq),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// Handle persists one event and then publishes it.
func (r *Recorder) Handle(ctx context.Context, evt domain.Event) error {
	err := r.withRetry(ctx, evt, r.persist)
	r.bridge(ctx, evt)
	return err
}

func (r *Recorder) withRetry(ctx context.Context, evt domain.Event, fn func(context.Context, domain.Event) error) error {
	delay := r.retry.BaseDelay
	var err error
	for attempt := 1; attempt <= r.retry.Attempts; attempt++ {
		opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opTTL)
		err = fn(opCtx, evt)
		cancel()
		if err == nil {
			return nil
		}
		if attempt == r.retry.Attempts {
			break
		}
		r.logger.WarnContext(ctx, "persist failed, retrying",
			slog.String("event_id", evt.ID),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)
		if serr := r.sleep(ctx, delay); serr != nil {
			return fmt.Errorf("recorder: %s: %w (gave up: %w)", evt.Type, err, serr)
		}
		delay *= 2
		if delay > r.retry.MaxDelay {
			delay = r.retry.MaxDelay
		}
	}
	return fmt.Errorf("recorder: %s after %d attempts: %w", evt.Type, r.retry.Attempts, err)
}

// persist writes the event log row and then the typed projections. Every
// write is idempotent, so a retry after a partial failure is safe.
func (r *Recorder) persist(ctx context.Context, evt domain.Event) error {
	s := r.stores
	if err := s.Events.Append(ctx, evt); err != nil {
		return err
	}

	if evt.Bid != nil {
		if err := s.Bids.Insert(ctx, evt.SessionID, *evt.Bid); err != nil {
			return err
		}
	}
	if evt.RTM != nil {
		if err := s.RTM.Upsert(ctx, evt.SessionID, *evt.RTM); err != nil {
			return err
		}
	}

	players := evt.Players
	if evt.Player != nil {
		players = append([]domain.Player{*evt.Player}, players...)
	}

	switch evt.Type {
	case domain.EventAuctionReset:
		keep := make([]string, 0, len(evt.Players))
		for _, p := range evt.Players {
			keep = append(keep, p.ID)
		}
		if _, err := s.Players.DeleteNotIn(ctx, keep); err != nil {
			return err
		}
	case domain.EventAuctionCompleted:
		if lot, ok := evt.Detail["invalidated_lot_id"].(string); ok && lot != "" {
			if err := s.Bids.InvalidateLot(ctx, evt.SessionID, lot); err != nil {
				return err
			}
		}
	}

	if len(players) > 0 {
		if err := s.Players.UpsertBatch(ctx, players); err != nil {
			return err
		}
	}
	if len(evt.Teams) > 0 {
		if err := s.Teams.UpsertBatch(ctx, evt.Teams); err != nil {
			return err
		}
	}
	return nil
}

// bridge publishes the event for other processes and refreshes the team
// cache. Failures are logged; the durable copy is already in Postgres.
func (r *Recorder) bridge(ctx context.Context, evt domain.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opTTL)
	defer cancel()

	if r.bus != nil {
		payload, err := json.Marshal(evt)
		if err != nil {
			r.logger.ErrorContext(ctx, "marshal event", slog.String("event_id", evt.ID), slog.String("error", err.Error()))
			return
		}
		if err := r.bus.Publish(ctx, ChannelEvents, payload); err != nil {
			r.logger.WarnContext(ctx, "publish event failed", slog.String("event_id", evt.ID), slog.String("error", err.Error()))
		}
		if err := r.bus.StreamAppend(ctx, StreamEvents, payload); err != nil {
			r.logger.WarnContext(ctx, "stream append failed", slog.String("event_id", evt.ID), slog.String("error", err.Error()))
		}
	}

	if r.cache != nil && r.applyTeams(evt) {
		teams := make([]domain.Team, 0, len(r.ledger))
		for _, t := range r.ledger {
			teams = append(teams, t)
		}
		if err := r.cache.SetTeams(ctx, evt.Seq, teams); err != nil {
			r.logger.WarnContext(ctx, "team cache update failed", slog.String("error", err.Error()))
		}
	}
}

// applyTeams folds the teams carried by evt into the ledger view and reports
// whether it changed. Import and lifecycle events carry every team; the rest
// carry the teams they touched.
func (r *Recorder) applyTeams(evt domain.Event) bool {
	switch evt.Type {
	case domain.EventAuctionReset, domain.EventPlayersImported, domain.EventAuctionCompleted:
		clear(r.ledger)
	default:
		if len(evt.Teams) == 0 {
			return false
		}
	}
	for _, t := range evt.Teams {
		r.ledger[t.ID] = t
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
