// ABOUTME: Time- and size-bounded window of recently handled update ids
// ABOUTME: Seen atomically reports a repeat and records first sightings

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

type entry struct {
	id      int
	expires time.Time
}

// Window tracks update ids seen within the last ttl, holding at most maxSize
// of them. Entries share one ttl, so the list is ordered by expiry as well
// as by arrival.
type Window struct {
	mu      sync.Mutex
	index   map[int]*list.Element
	order   *list.List
	ttl     time.Duration
	maxSize int
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// Option configures a Window.
type Option func(*Window)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Window) { w.now = now }
}

// New creates a Window and starts its sweeper. Call Close to stop it.
func New(ttl time.Duration, maxSize int, opts ...Option) *Window {
	if maxSize <= 0 {
		maxSize = 1
	}
	w := &Window{
		index:   make(map[int]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.sweep()
	return w
}

// Seen reports whether id was already recorded and unexpired. A first
// sighting is recorded and reports false.
func (w *Window) Seen(id int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	w.expireLocked(now)

	if _, ok := w.index[id]; ok {
		return true
	}

	if w.order.Len() >= w.maxSize {
		w.removeLocked(w.order.Front())
	}
	w.index[id] = w.order.PushBack(entry{id: id, expires: now.Add(w.ttl)})
	return false
}

// Len returns the number of ids currently remembered.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.order.Len()
}

// expireLocked drops entries whose time is up. Must be called with mu held.
func (w *Window) expireLocked(now time.Time) {
	for e := w.order.Front(); e != nil; e = w.order.Front() {
		if now.Before(e.Value.(entry).expires) {
			return
		}
		w.removeLocked(e)
	}
}

func (w *Window) removeLocked(e *list.Element) {
	if e == nil {
		return
	}
	w.order.Remove(e)
	delete(w.index, e.Value.(entry).id)
}

func (w *Window) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.mu.Lock()
			w.expireLocked(w.now())
			w.mu.Unlock()
		case <-w.done:
			return
		}
	}
}

// Close stops the sweeper. Safe to call more than once.
func (w *Window) Close() {
	w.once.Do(func() { close(w.done) })
}
