package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

var errDown = errors.New("store unavailable")

// memStores backs every RecorderStores interface with maps. failAppend
// makes the next n event appends fail.
type memStores struct {
	mu         sync.Mutex
	failAppend int
	appends    int
	events     map[string]domain.Event
	bids       map[string]domain.BidRecord
	rtm        map[string]domain.RTMAttempt
	players    map[string]domain.Player
	teams      map[string]domain.Team
}

func newMemStores() *memStores {
	return &memStores{
		events:  make(map[string]domain.Event),
		bids:    make(map[string]domain.BidRecord),
		rtm:     make(map[string]domain.RTMAttempt),
		players: make(map[string]domain.Player),
		teams:   make(map[string]domain.Team),
	}
}

func (m *memStores) recorderStores() RecorderStores {
	return RecorderStores{
		Events:  memEvents{m},
		Bids:    memBids{m},
		RTM:     memRTM{m},
		Players: memPlayers{m},
		Teams:   memTeams{m},
	}
}

type memEvents struct{ m *memStores }

func (s memEvents) Append(_ context.Context, evt domain.Event) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.appends++
	if s.m.failAppend > 0 {
		s.m.failAppend--
		return errDown
	}
	s.m.events[evt.ID] = evt
	return nil
}

func (s memEvents) List(_ context.Context, sessionID string, afterSeq uint64, limit int) ([]domain.Event, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []domain.Event
	for _, e := range s.m.events {
		if e.SessionID == sessionID && e.Seq > afterSeq {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memBids struct{ m *memStores }

func (s memBids) Insert(_ context.Context, _ string, bid domain.BidRecord) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.bids[bid.ID] = bid
	return nil
}

func (s memBids) InvalidateLot(_ context.Context, _ string, lotID string) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for id, b := range s.m.bids {
		if b.LotID == lotID {
			b.Valid = false
			s.m.bids[id] = b
		}
	}
	return nil
}

func (s memBids) ListBySession(context.Context, string) ([]domain.BidRecord, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := make([]domain.BidRecord, 0, len(s.m.bids))
	for _, b := range s.m.bids {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.Before(out[j].PlacedAt) })
	return out, nil
}

type memRTM struct{ m *memStores }

func (s memRTM) Upsert(_ context.Context, _ string, a domain.RTMAttempt) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.rtm[a.ID] = a
	return nil
}

func (s memRTM) ListBySession(context.Context, string) ([]domain.RTMAttempt, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	out := make([]domain.RTMAttempt, 0, len(s.m.rtm))
	for _, a := range s.m.rtm {
		out = append(out, a)
	}
	return out, nil
}

type memPlayers struct{ m *memStores }

func (s memPlayers) Upsert(_ context.Context, p domain.Player) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.players[p.ID] = p
	return nil
}

func (s memPlayers) UpsertBatch(ctx context.Context, players []domain.Player) error {
	for _, p := range players {
		_ = s.Upsert(ctx, p)
	}
	return nil
}

func (s memPlayers) DeleteNotIn(_ context.Context, keep []string) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	kept := make(map[string]bool, len(keep))
	for _, id := range keep {
		kept[id] = true
	}
	var n int64
	for id := range s.m.players {
		if !kept[id] {
			delete(s.m.players, id)
			n++
		}
	}
	return n, nil
}

type memTeams struct{ m *memStores }

func (s memTeams) Upsert(_ context.Context, t domain.Team) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.teams[t.ID] = t
	return nil
}

func (s memTeams) UpsertBatch(ctx context.Context, teams []domain.Team) error {
	for _, t := range teams {
		_ = s.Upsert(ctx, t)
	}
	return nil
}

// memBus records what the recorder publishes.
type memBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streamed  map[string][][]byte
}

func newMemBus() *memBus {
	return &memBus{published: make(map[string][][]byte), streamed: make(map[string][][]byte)}
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *memBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed[stream] = append(b.streamed[stream], payload)
	return nil
}

// memTeamCache keeps the last SetTeams call.
type memTeamCache struct {
	mu    sync.Mutex
	seq   uint64
	teams []domain.Team
	calls int
}

func (c *memTeamCache) SetTeams(_ context.Context, seq uint64, teams []domain.Team) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if seq < c.seq {
		return nil
	}
	c.seq = seq
	c.teams = append([]domain.Team(nil), teams...)
	sort.Slice(c.teams, func(i, j int) bool { return c.teams[i].ID < c.teams[j].ID })
	return nil
}

func (c *memTeamCache) Teams(context.Context) ([]domain.Team, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Team(nil), c.teams...), c.seq, nil
}

// fakeLease counts extensions; extendErr is returned from every Extend
// after the first okExtends calls.
type fakeLease struct {
	mu        sync.Mutex
	extends   int
	okExtends int
	extendErr error
	released  bool
}

func (l *fakeLease) Extend(context.Context, time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.extends++
	if l.extends > l.okExtends && l.extendErr != nil {
		return l.extendErr
	}
	return nil
}

func (l *fakeLease) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = true
}

func (l *fakeLease) wasReleased() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.released
}

type fakeLocks struct {
	lease *fakeLease
	err   error
	key   string
}

func (f *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (domain.Lease, error) {
	f.key = key
	if f.err != nil {
		return nil, f.err
	}
	return f.lease, nil
}
