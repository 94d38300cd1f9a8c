// ABOUTME: Tests for the in-memory post table
// ABOUTME: Covers id allocation, like invariants, deletion, ordering and per-post locking

package store

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

// fixedClock returns the same instant on every call.
func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestStore_Create(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	s := New(nil, WithClock(fixedClock(now)))

	p := s.Create("photo-1", strPtr("Hello"))

	assert.Equal(t, "1700000000000", p.ID)
	assert.Equal(t, "photo-1", p.Photo)
	require.NotNil(t, p.Caption)
	assert.Equal(t, "Hello", *p.Caption)
	assert.Equal(t, 0, p.Likes)
	assert.Empty(t, p.LikedUsers)
	assert.Empty(t, p.MessageIDs)
	assert.Equal(t, now, p.CreatedAt())
}

func TestStore_Create_NoCaption(t *testing.T) {
	s := New(nil)
	p := s.Create("photo-1", nil)
	assert.Nil(t, p.Caption)
}

func TestStore_Create_IDsStrictlyIncreasing(t *testing.T) {
	// Every call lands in the same millisecond.
	s := New(nil, WithClock(fixedClock(time.UnixMilli(1700000000000))))

	var prev int64
	for i := 0; i < 50; i++ {
		p := s.Create("photo", nil)
		id, err := strconv.ParseInt(p.ID, 10, 64)
		require.NoError(t, err)
		assert.Greater(t, id, prev)
		prev = id
	}
	assert.Equal(t, 50, s.Len())
}

func TestStore_Create_ClockGoesBackwards(t *testing.T) {
	clock := time.UnixMilli(1700000000000)
	s := New(nil, WithClock(func() time.Time { return clock }))

	first := s.Create("a", nil)
	clock = clock.Add(-time.Hour)
	second := s.Create("b", nil)

	assert.True(t, lessID(first.ID, second.ID))
}

func TestStore_Create_Concurrent(t *testing.T) {
	s := New(nil, WithClock(fixedClock(time.UnixMilli(1700000000000))))

	const n = 100
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- s.Create("photo", nil).ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestStore_Get_ReturnsCopy(t *testing.T) {
	s := New(nil)
	p := s.Create("photo", strPtr("caption"))
	require.NoError(t, s.RecordDelivery(p.ID, "@a", 10))

	got, ok := s.Get(p.ID)
	require.True(t, ok)
	got.MessageIDs["@b"] = 11
	got.LikedUsers[99] = struct{}{}
	*got.Caption = "changed"

	again, _ := s.Get(p.ID)
	assert.Len(t, again.MessageIDs, 1)
	assert.Empty(t, again.LikedUsers)
	assert.Equal(t, "caption", *again.Caption)
}

func TestStore_Get_NotFound(t *testing.T) {
	s := New(nil)
	_, ok := s.Get("missing")
	assert.False(t, ok)
}

func TestStore_RecordDelivery_RemoveChannel(t *testing.T) {
	s := New(nil)
	p := s.Create("photo", nil)

	require.NoError(t, s.RecordDelivery(p.ID, "@a", 10))
	require.NoError(t, s.RecordDelivery(p.ID, "-100", 11))
	got, _ := s.Get(p.ID)
	assert.Equal(t, map[string]int{"@a": 10, "-100": 11}, got.MessageIDs)

	require.NoError(t, s.RemoveChannel(p.ID, "@a"))
	got, _ = s.Get(p.ID)
	assert.Equal(t, map[string]int{"-100": 11}, got.MessageIDs)

	assert.ErrorIs(t, s.RecordDelivery("missing", "@a", 1), ErrNotFound)
	assert.ErrorIs(t, s.RemoveChannel("missing", "@a"), ErrNotFound)
}

func TestStore_RecordLike_Idempotent(t *testing.T) {
	s := New(nil)
	p := s.Create("photo", nil)

	likes, added, err := s.RecordLike(p.ID, 1)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 1, likes)

	likes, added, err = s.RecordLike(p.ID, 1)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, likes)

	likes, added, err = s.RecordLike(p.ID, 2)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 2, likes)

	got, _ := s.Get(p.ID)
	assert.Equal(t, len(got.LikedUsers), got.Likes)
	assert.Equal(t, []int64{1, 2}, got.Likers())
	assert.True(t, got.HasLiked(1))
	assert.False(t, got.HasLiked(3))

	_, _, err = s.RecordLike("missing", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RecordLike_ConcurrentUsers(t *testing.T) {
	s := New(nil)
	p := s.Create("photo", nil)

	const users = 200
	var wg sync.WaitGroup
	for u := 0; u < users; u++ {
		for repeat := 0; repeat < 3; repeat++ {
			wg.Add(1)
			go func(id int64) {
				defer wg.Done()
				_, _, _ = s.RecordLike(p.ID, id)
			}(int64(u))
		}
	}
	wg.Wait()

	got, _ := s.Get(p.ID)
	assert.Equal(t, users, got.Likes)
	assert.Len(t, got.LikedUsers, users)
}

func TestStore_Delete(t *testing.T) {
	s := New(nil)
	a := s.Create("a", nil)
	b := s.Create("b", nil)

	assert.True(t, s.Delete(a.ID))
	assert.False(t, s.Delete(a.ID))

	_, ok := s.Get(a.ID)
	assert.False(t, ok)

	recent, total := s.Recent(10)
	assert.Equal(t, 1, total)
	require.Len(t, recent, 1)
	assert.Equal(t, b.ID, recent[0].ID)
}

func TestStore_Recent(t *testing.T) {
	clock := time.UnixMilli(1700000000000)
	s := New(nil, WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))

	var ids []string
	for i := 0; i < 15; i++ {
		ids = append(ids, s.Create("photo", nil).ID)
	}

	recent, total := s.Recent(10)
	assert.Equal(t, 15, total)
	require.Len(t, recent, 10)
	assert.Equal(t, ids[14], recent[0].ID)
	assert.Equal(t, ids[5], recent[9].ID)

	all, _ := s.Recent(0)
	assert.Len(t, all, 15)

	empty := New(nil)
	none, total := empty.Recent(10)
	assert.Empty(t, none)
	assert.Equal(t, 0, total)
}

func TestStore_Stats(t *testing.T) {
	s := New(nil)
	a := s.Create("a", nil)
	b := s.Create("b", nil)
	_, _, _ = s.RecordLike(a.ID, 1)
	_, _, _ = s.RecordLike(a.ID, 2)
	_, _, _ = s.RecordLike(b.ID, 1)

	posts, likes := s.Stats()
	assert.Equal(t, 2, posts)
	assert.Equal(t, 3, likes)
}

func TestStore_LockPost_Serializes(t *testing.T) {
	s := New(nil)
	p := s.Create("photo", nil)

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := s.LockPost(p.ID)
			defer unlock()
			n := atomic.AddInt32(&inside, 1)
			if n > atomic.LoadInt32(&maxInside) {
				atomic.StoreInt32(&maxInside, n)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestStore_LockPost_IndependentPosts(t *testing.T) {
	s := New(nil)

	unlockA := s.LockPost("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := s.LockPost("b")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on another post blocked")
	}
}

func TestStore_LockPost_UnknownIDLeavesNothingBehind(t *testing.T) {
	s := New(nil)

	for i := 0; i < 50; i++ {
		unlock := s.LockPost("missing-" + strconv.Itoa(i))
		unlock()
	}

	assert.Equal(t, 0, s.locks.Len())
}

func TestStore_LockPost_SurvivesDelete(t *testing.T) {
	s := New(nil)
	p := s.Create("photo", nil)

	unlock := s.LockPost(p.ID)
	s.Delete(p.ID)

	acquired := make(chan struct{})
	go func() {
		u := s.LockPost(p.ID)
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while still held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired the lock")
	}
	require.Eventually(t, func() bool { return s.locks.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestKeyedMutex_UnlockTwice(t *testing.T) {
	var k KeyedMutex

	unlock := k.Lock("a")
	unlock()
	unlock()

	assert.Equal(t, 0, k.Len())
	again := k.Lock("a")
	again()
}

// memoryBackend is a Snapshotter kept in memory for tests.
type memoryBackend struct {
	mu      sync.Mutex
	records []Record
	saves   int
	loadErr error
	saveErr error
}

func (m *memoryBackend) Load(ctx context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records, m.loadErr
}

func (m *memoryBackend) Save(ctx context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records = records
	return nil
}

func (m *memoryBackend) Close() error { return nil }

func TestStore_Open_LoadFailureStartsEmpty(t *testing.T) {
	backend := &memoryBackend{loadErr: errors.New("corrupt")}
	s := Open(context.Background(), backend)
	assert.Equal(t, 0, s.Len())
}

func TestStore_Open_RepairsLikeCounter(t *testing.T) {
	backend := &memoryBackend{records: []Record{
		{ID: "1700000000002", Photo: "b", Likes: 5, LikedUsers: []int64{1, 2}},
		{ID: "1700000000001", Photo: "a", Likes: 0, LikedUsers: []int64{}},
		{ID: "1700000000001", Photo: "dup"},
		{ID: "", Photo: "no id"},
	}}
	s := Open(context.Background(), backend)

	assert.Equal(t, 2, s.Len())
	p, ok := s.Get("1700000000002")
	require.True(t, ok)
	assert.Equal(t, 2, p.Likes)

	recent, _ := s.Recent(10)
	assert.Equal(t, "1700000000002", recent[0].ID)
	assert.Equal(t, "1700000000001", recent[1].ID)

	// New ids continue after the highest loaded id.
	s.now = fixedClock(time.UnixMilli(1))
	assert.Equal(t, "1700000000003", s.Create("c", nil).ID)
}

func TestStore_Save_FailureKeepsMemoryState(t *testing.T) {
	backend := &memoryBackend{saveErr: errors.New("disk full")}
	var observed error
	s := New(backend, WithSaveObserver(func(_ time.Duration, err error) { observed = err }))

	p := s.Create("photo", nil)
	_, _, _ = s.RecordLike(p.ID, 7)

	err := s.Save(context.Background())
	require.Error(t, err)
	assert.Error(t, observed)

	got, ok := s.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, 1, got.Likes)
}

func TestStore_Save_Concurrent(t *testing.T) {
	backend := &memoryBackend{}
	s := New(backend)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Create("photo", nil)
			_ = s.Save(context.Background())
		}()
	}
	wg.Wait()

	// The last save to finish saw every post.
	require.NoError(t, s.Save(context.Background()))
	assert.Len(t, backend.records, 20)
	assert.Equal(t, 21, backend.saves)
}
