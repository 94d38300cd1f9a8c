// ABOUTME: In-memory post table with per-post locks and snapshot persistence
// ABOUTME: Sole owner of Post state; all mutation goes through its entry points

package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Store holds every post in memory and persists snapshots through a Snapshotter.
type Store struct {
	mu     sync.RWMutex
	posts  map[string]*Post
	order  []string // ids in creation order
	lastID int64

	locks KeyedMutex

	saveMu  sync.Mutex
	backend Snapshotter
	onSave  func(time.Duration, error)

	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now for id allocation.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSaveObserver registers a callback invoked after every snapshot write.
func WithSaveObserver(fn func(time.Duration, error)) Option {
	return func(s *Store) { s.onSave = fn }
}

// New creates an empty store. A nil backend keeps everything in memory and
// turns Save into a no-op.
func New(backend Snapshotter, opts ...Option) *Store {
	s := &Store{
		posts:   make(map[string]*Post),
		backend: backend,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "store")
	return s
}

// Open creates a store and loads the backend's snapshot into it.
// A snapshot that cannot be read is logged and the store starts empty.
func Open(ctx context.Context, backend Snapshotter, opts ...Option) *Store {
	s := New(backend, opts...)
	if backend == nil {
		return s
	}

	records, err := backend.Load(ctx)
	if err != nil {
		s.logger.Warn("could not load posts, starting empty", "error", err)
		return s
	}
	s.load(records)
	s.logger.Info("posts loaded", "count", len(s.order))
	return s
}

func (s *Store) load(records []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if rec.ID == "" {
			s.logger.Warn("skipping post without id")
			continue
		}
		if _, dup := s.posts[rec.ID]; dup {
			s.logger.Warn("skipping duplicate post id", "post_id", rec.ID)
			continue
		}
		p := rec.post()
		if rec.Likes != p.Likes {
			s.logger.Warn("repaired like counter",
				"post_id", rec.ID,
				"stored", rec.Likes,
				"likers", p.Likes,
			)
		}
		s.posts[p.ID] = p
		s.order = append(s.order, p.ID)
		if n, err := strconv.ParseInt(p.ID, 10, 64); err == nil && n > s.lastID {
			s.lastID = n
		}
	}

	sort.SliceStable(s.order, func(i, j int) bool { return lessID(s.order[i], s.order[j]) })
}

// Create adds a post with no likes and no deliveries and returns a copy.
func (s *Store) Create(photo string, caption *string) Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	s.lastID = id

	p := &Post{
		ID:         strconv.FormatInt(id, 10),
		Photo:      photo,
		LikedUsers: make(map[int64]struct{}),
		MessageIDs: make(map[string]int),
	}
	if caption != nil {
		c := *caption
		p.Caption = &c
	}

	s.posts[p.ID] = p
	s.order = append(s.order, p.ID)

	s.logger.Debug("created post", "post_id", p.ID)
	return p.clone()
}

// Get returns a copy of the post.
func (s *Store) Get(id string) (Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.posts[id]
	if !ok {
		return Post{}, false
	}
	return p.clone(), true
}

// RecordDelivery remembers the message id of the copy delivered to channel.
func (s *Store) RecordDelivery(id, channel string, messageID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return fmt.Errorf("recording delivery of %s: %w", id, ErrNotFound)
	}
	p.MessageIDs[channel] = messageID
	return nil
}

// RemoveChannel forgets the copy delivered to channel.
func (s *Store) RemoveChannel(id, channel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return fmt.Errorf("removing channel from %s: %w", id, ErrNotFound)
	}
	delete(p.MessageIDs, channel)
	return nil
}

// RecordLike adds userID to the post's likers. It returns the resulting like
// count and whether the user was newly added.
func (s *Store) RecordLike(id string, userID int64) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	if !ok {
		return 0, false, fmt.Errorf("recording like on %s: %w", id, ErrNotFound)
	}
	if _, liked := p.LikedUsers[userID]; liked {
		return p.Likes, false, nil
	}
	p.LikedUsers[userID] = struct{}{}
	p.Likes = len(p.LikedUsers)
	return p.Likes, true, nil
}

// Delete removes the post. It reports whether the post existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	_, ok := s.posts[id]
	if ok {
		delete(s.posts, id)
		for i, oid := range s.order {
			if oid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	s.mu.Unlock()

	if ok {
		s.logger.Debug("deleted post", "post_id", id)
	}
	return ok
}

// Recent returns up to limit posts, newest first, together with the total
// number of posts at the time of the call.
func (s *Store) Recent(limit int) ([]Post, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.order)
	if limit <= 0 || limit > total {
		limit = total
	}

	out := make([]Post, 0, limit)
	for i := total - 1; i >= total-limit; i-- {
		out = append(out, s.posts[s.order[i]].clone())
	}
	return out, total
}

// Len returns the number of posts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Stats returns the number of posts and the sum of their likes.
func (s *Store) Stats() (posts, likes int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.posts {
		likes += p.Likes
	}
	return len(s.posts), likes
}

// LockPost locks the post's mutex and returns the unlock function.
// The post does not have to exist; the mutex is dropped once released.
func (s *Store) LockPost(id string) func() {
	return s.locks.Lock(id)
}

// Save writes a full snapshot. Concurrent saves run one at a time and each
// writes the state current when it starts writing.
func (s *Store) Save(ctx context.Context) error {
	if s.backend == nil {
		return nil
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	records := s.snapshot()

	start := time.Now()
	err := s.backend.Save(ctx, records)
	if s.onSave != nil {
		s.onSave(time.Since(start), err)
	}
	if err != nil {
		s.logger.Error("saving posts failed", "error", err)
		return fmt.Errorf("saving posts: %w", err)
	}

	s.logger.Debug("posts saved", "count", len(records))
	return nil
}

func (s *Store) snapshot() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		records = append(records, s.posts[id].record())
	}
	return records
}

// Close releases the backend.
func (s *Store) Close() error {
	if s.backend == nil {
		return nil
	}
	return s.backend.Close()
}
