package auction

import (
	"context"
	"sync"

	"github.com/alanyoungcy/auctiond/internal/domain"
)

// Broker fans committed events out to subscribers in commit order. Publish
// never blocks: each subscriber owns an unbounded queue drained by its own
// goroutine, so a slow reader delays only itself.
type Broker struct {
	mu     sync.Mutex
	seq    uint64
	nextID uint64
	subs   map[uint64]*subscriber
	done   chan struct{}
	closed bool
}

type subscriber struct {
	mu    sync.Mutex
	queue []domain.Event
	wake  chan struct{}
	out   chan domain.Event
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		subs: make(map[uint64]*subscriber),
		done: make(chan struct{}),
	}
}

// Publish stamps the event with the next sequence number and enqueues it
// for every subscriber.
func (b *Broker) Publish(evt domain.Event) domain.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	evt.Seq = b.seq
	if b.closed {
		return evt
	}
	for _, s := range b.subs {
		s.mu.Lock()
		s.queue = append(s.queue, evt)
		s.mu.Unlock()
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
	return evt
}

// Seq returns the sequence number of the last published event.
func (b *Broker) Seq() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.seq
}

// Subscribe returns a channel receiving every event published from now on.
// The channel closes when ctx is done, or once the events queued before
// Close have been delivered.
func (b *Broker) Subscribe(ctx context.Context) <-chan domain.Event {
	s := &subscriber{
		wake: make(chan struct{}, 1),
		out:  make(chan domain.Event),
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(s.out)
		return s.out
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.mu.Unlock()

	go func() {
		defer func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(s.out)
		}()
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				select {
				case <-s.wake:
					continue
				case <-ctx.Done():
					return
				case <-b.done:
					// Nothing is enqueued after Close; drain what is left.
					s.mu.Lock()
					empty := len(s.queue) == 0
					s.mu.Unlock()
					if empty {
						return
					}
					continue
				}
			}
			evt := s.queue[0]
			s.queue[0] = domain.Event{}
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case s.out <- evt:
			case <-ctx.Done():
				return
			}
		}
	}()
	return s.out
}

// Close stops accepting events. Subscribers still receive what was queued.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
}
