package middleware

import (
	"bytes"
	"net/http"
	"sync"
	"time"
)

// IdempotencyHeader carries the client's retry key for a command.
const IdempotencyHeader = "Idempotency-Key"

// Dedup remembers command responses by idempotency key so a client retry
// after a dropped connection replays the first outcome instead of
// submitting the command twice. It is safe for concurrent use.
type Dedup struct {
	mu      sync.Mutex
	seen    map[string]*reply
	ttl     time.Duration
	now     func() time.Time
	sweepAt time.Time
}

type reply struct {
	at     time.Time
	done   chan struct{}
	status int
	ctype  string
	body   []byte
}

// NewDedup creates a Dedup that keeps each response for ttl.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{seen: make(map[string]*reply), ttl: ttl, now: time.Now}
}

// claim returns the stored reply for key and false, or registers a new
// in-flight reply and returns it with true.
func (d *Dedup) claim(key string) (*reply, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if now.After(d.sweepAt) {
		d.sweepLocked(now)
		d.sweepAt = now.Add(d.ttl)
	}
	if r, ok := d.seen[key]; ok && now.Sub(r.at) < d.ttl {
		return r, false
	}
	r := &reply{at: now, done: make(chan struct{})}
	d.seen[key] = r
	return r, true
}

// Cleanup removes expired entries.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sweepLocked(d.now())
}

func (d *Dedup) sweepLocked(now time.Time) {
	for key, r := range d.seen {
		select {
		case <-r.done:
		default:
			continue // still in flight
		}
		if now.Sub(r.at) >= d.ttl {
			delete(d.seen, key)
		}
	}
}

// Len reports how many keys are remembered.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// Idempotent replays the recorded response for a repeated Idempotency-Key
// from the same caller. Requests without the header pass straight through.
// A retry that arrives while the first attempt is still running waits for it.
func Idempotent(d *Dedup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(IdempotencyHeader)
			if id == "" || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			key := callerKey(r) + "|" + r.Method + " " + r.URL.Path + "|" + id

			rep, first := d.claim(key)
			if !first {
				select {
				case <-rep.done:
				case <-r.Context().Done():
					return
				}
				if rep.ctype != "" {
					w.Header().Set("Content-Type", rep.ctype)
				}
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(rep.status)
				_, _ = w.Write(rep.body)
				return
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			defer func() {
				rep.status = rec.status
				rep.ctype = w.Header().Get("Content-Type")
				rep.body = rec.buf.Bytes()
				close(rep.done)
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

// recorder tees the response body so it can be replayed.
type recorder struct {
	http.ResponseWriter
	status int
	wrote  bool
	buf    bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	if !r.wrote {
		r.status = code
		r.wrote = true
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.wrote = true
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}
