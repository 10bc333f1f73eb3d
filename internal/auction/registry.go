package auction

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

type lotSet struct {
	domain.LotSet
	// queued is the player the next DrawLot on this set will reveal. It is
	// chosen ahead of time so PeekNext never disagrees with the draw.
	queued string
}

// Registry owns the player pool and its partition into lot sets. It is not
// safe for concurrent use; the engine serializes access under its session
// lock.
type Registry struct {
	rng     *rand.Rand
	players map[string]*domain.Player
	order   []string
	sets    []*lotSet
	number  int
}

// NewRegistry creates an empty registry. A zero seed picks one from the
// wall clock.
func NewRegistry(seed uint64) *Registry {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Registry{
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		players: make(map[string]*domain.Player),
	}
}

// AddPlayer registers a player. IDs must be unique.
func (r *Registry) AddPlayer(p domain.Player) error {
	if p.ID == "" {
		return fmt.Errorf("registry: add player: empty id: %w", domain.ErrInvalidArgument)
	}
	if _, ok := r.players[p.ID]; ok {
		return fmt.Errorf("registry: add player %s: %w", p.ID, domain.ErrAlreadyExists)
	}
	cp := p
	r.players[p.ID] = &cp
	r.order = append(r.order, p.ID)
	return nil
}

// Player returns a copy of the player with the given ID.
func (r *Registry) Player(id string) (domain.Player, bool) {
	p, ok := r.players[id]
	if !ok {
		return domain.Player{}, false
	}
	return *p, true
}

func (r *Registry) player(id string) *domain.Player {
	return r.players[id]
}

// Players returns copies of all players in registration order.
func (r *Registry) Players() []domain.Player {
	out := make([]domain.Player, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.players[id])
	}
	return out
}

// Sets returns copies of all lot sets, oldest first.
func (r *Registry) Sets() []domain.LotSet {
	out := make([]domain.LotSet, 0, len(r.sets))
	for _, s := range r.sets {
		out = append(out, copySet(s.LotSet))
	}
	return out
}

// Set returns a copy of a single lot set.
func (r *Registry) Set(id string) (domain.LotSet, bool) {
	s := r.set(id)
	if s == nil {
		return domain.LotSet{}, false
	}
	return copySet(s.LotSet), true
}

func (r *Registry) set(id string) *lotSet {
	for _, s := range r.sets {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// GenerateSets partitions every pool player into randomized groups of at
// most groupSize. Completed sets are kept. A set that was partially played
// is closed and keeps only its revealed players; its unrevealed players go
// back into the partition.
func (r *Registry) GenerateSets(groupSize int) ([]domain.LotSet, error) {
	if groupSize < 1 {
		return nil, fmt.Errorf("registry: generate sets: group size %d: %w", groupSize, domain.ErrInvalidArgument)
	}

	kept := r.sets[:0:0]
	for _, s := range r.sets {
		if s.Completed {
			kept = append(kept, s)
			continue
		}
		if len(s.Revealed) == 0 {
			continue
		}
		played := make([]string, 0, len(s.Revealed))
		for _, id := range s.PlayerIDs {
			if s.Revealed[id] {
				played = append(played, id)
			}
		}
		s.PlayerIDs = played
		s.Completed = true
		s.queued = ""
		kept = append(kept, s)
	}
	r.sets = kept

	pool := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if r.players[id].Status == domain.PlayerStatusPool {
			pool = append(pool, id)
		}
	}
	r.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	created := make([]domain.LotSet, 0, (len(pool)+groupSize-1)/groupSize)
	for start := 0; start < len(pool); start += groupSize {
		end := min(start+groupSize, len(pool))
		r.number++
		s := &lotSet{LotSet: domain.LotSet{
			ID:        uuid.NewString(),
			Number:    r.number,
			PlayerIDs: append([]string(nil), pool[start:end]...),
			Revealed:  make(map[string]bool),
		}}
		r.sets = append(r.sets, s)
		created = append(created, copySet(s.LotSet))
	}
	return created, nil
}

// PickSet selects uniformly among the sets that still have unrevealed
// players and queues its first lot.
func (r *Registry) PickSet() (domain.LotSet, error) {
	open := make([]*lotSet, 0, len(r.sets))
	for _, s := range r.sets {
		if !s.Completed && s.Remaining() > 0 {
			open = append(open, s)
		}
	}
	if len(open) == 0 {
		return domain.LotSet{}, fmt.Errorf("registry: pick set: %w", domain.ErrExhausted)
	}
	s := open[r.rng.IntN(len(open))]
	if s.queued == "" {
		s.queued = r.candidate(s)
	}
	return copySet(s.LotSet), nil
}

// DrawLot reveals the queued player of the set and queues the next one.
// It returns ErrExhausted, and marks the set completed, once every player
// has been revealed.
func (r *Registry) DrawLot(setID string) (domain.Player, error) {
	s := r.set(setID)
	if s == nil {
		return domain.Player{}, fmt.Errorf("registry: draw lot: set %s: %w", setID, domain.ErrNotFound)
	}
	if s.Completed {
		return domain.Player{}, fmt.Errorf("registry: draw lot: set %d: %w", s.Number, domain.ErrExhausted)
	}
	id := s.queued
	if id == "" || s.Revealed[id] {
		id = r.candidate(s)
	}
	if id == "" {
		s.Completed = true
		s.queued = ""
		return domain.Player{}, fmt.Errorf("registry: draw lot: set %d: %w", s.Number, domain.ErrExhausted)
	}
	s.Revealed[id] = true
	p := r.players[id]
	p.Status = domain.PlayerStatusRevealed
	s.queued = r.candidate(s)
	return *p, nil
}

// PeekNext returns the player the next DrawLot on the set will reveal.
func (r *Registry) PeekNext(setID string) (domain.Player, bool) {
	s := r.set(setID)
	if s == nil || s.Completed || s.queued == "" {
		return domain.Player{}, false
	}
	return *r.players[s.queued], true
}

// Unreveal puts a drawn player back at the head of its set. Used when a
// resolution that auto-advanced is undone.
func (r *Registry) Unreveal(setID, playerID string) {
	s := r.set(setID)
	if s == nil || !s.Revealed[playerID] {
		return
	}
	delete(s.Revealed, playerID)
	s.Completed = false
	s.queued = playerID
	if p := r.players[playerID]; p != nil {
		p.Status = domain.PlayerStatusPool
	}
}

// Withdraw takes an unrevealed player out of whichever set holds it.
func (r *Registry) Withdraw(playerID string) {
	for _, s := range r.sets {
		if s.Completed || s.Revealed[playerID] {
			continue
		}
		i := slices.Index(s.PlayerIDs, playerID)
		if i < 0 {
			continue
		}
		s.PlayerIDs = slices.Delete(s.PlayerIDs, i, i+1)
		if s.queued == playerID {
			s.queued = r.candidate(s)
		}
		return
	}
}

// Complete marks a set as fully played.
func (r *Registry) Complete(setID string) (domain.LotSet, bool) {
	s := r.set(setID)
	if s == nil {
		return domain.LotSet{}, false
	}
	s.Completed = true
	s.queued = ""
	return copySet(s.LotSet), true
}

// Retain drops every player for which keep returns false and clears all
// sets.
func (r *Registry) Retain(keep func(domain.Player) bool) []domain.Player {
	var removed []domain.Player
	order := r.order[:0]
	for _, id := range r.order {
		p := r.players[id]
		if keep(*p) {
			order = append(order, id)
			continue
		}
		removed = append(removed, *p)
		delete(r.players, id)
	}
	r.order = order
	r.sets = nil
	r.number = 0
	return removed
}

func (r *Registry) candidate(s *lotSet) string {
	left := make([]string, 0, len(s.PlayerIDs))
	for _, id := range s.PlayerIDs {
		if !s.Revealed[id] {
			left = append(left, id)
		}
	}
	if len(left) == 0 {
		return ""
	}
	return left[r.rng.IntN(len(left))]
}

func copySet(s domain.LotSet) domain.LotSet {
	out := s
	out.PlayerIDs = append([]string(nil), s.PlayerIDs...)
	out.Revealed = make(map[string]bool, len(s.Revealed))
	for k, v := range s.Revealed {
		out.Revealed[k] = v
	}
	return out
}
