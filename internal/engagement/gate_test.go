// ABOUTME: Tests for the like gate
// ABOUTME: Covers subscription gating, idempotency, concurrency and keyboard refresh

package engagement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/fanpost/internal/store"
	"github.com/2389/fanpost/internal/transport"
)

var channels = []transport.Chat{"@one", "@two"}

func setup(t *testing.T) (*Gate, *store.Store, *transport.MockMessenger, store.Post) {
	t.Helper()
	st := store.New(nil)
	m := transport.NewMockMessenger()

	post := st.Create("photo", nil)
	require.NoError(t, st.RecordDelivery(post.ID, "@one", 10))
	require.NoError(t, st.RecordDelivery(post.ID, "@two", 20))

	g := New(st, m, Options{Channels: channels, SubscribeURL: "https://t.me/one"})
	return g, st, m, post
}

func TestLike_Accepted(t *testing.T) {
	g, st, m, post := setup(t)
	m.Subscribe(1, channels...)

	res := g.Like(context.Background(), post.ID, 1)
	assert.Equal(t, Result{Outcome: Accepted, Likes: 1}, res)

	got, _ := st.Get(post.ID)
	assert.Equal(t, 1, got.Likes)
	assert.True(t, got.HasLiked(1))

	edits := m.Edits()
	require.Len(t, edits, 2)
	for _, e := range edits {
		assert.Equal(t, post.MessageIDs[string(e.Chat)], e.MessageID)
		assert.Equal(t, "❤️ Like (1)", e.Keyboard[0][0].Text)
		assert.Equal(t, "like_"+post.ID, e.Keyboard[0][0].Data)
	}
}

func TestLike_TwiceInSuccession(t *testing.T) {
	g, st, m, post := setup(t)
	m.Subscribe(1, channels...)

	first := g.Like(context.Background(), post.ID, 1)
	second := g.Like(context.Background(), post.ID, 1)

	assert.Equal(t, Accepted, first.Outcome)
	assert.Equal(t, AlreadyLiked, second.Outcome)
	assert.Equal(t, 1, second.Likes)

	got, _ := st.Get(post.ID)
	assert.Equal(t, 1, got.Likes)
	assert.Len(t, m.Edits(), 2, "a repeated like does not refresh keyboards")
}

func TestLike_PostNotFound(t *testing.T) {
	g, _, m, _ := setup(t)
	m.Subscribe(1, channels...)

	res := g.Like(context.Background(), "1", 1)
	assert.Equal(t, PostNotFound, res.Outcome)
	assert.Equal(t, 0, m.StatusCalls(), "no lookups for a missing post")
}

func TestLike_NotSubscribed(t *testing.T) {
	tests := []struct {
		name   string
		status map[transport.Chat]transport.Status
	}{
		{"left first channel", map[transport.Chat]transport.Status{"@one": transport.StatusLeft, "@two": transport.StatusMember}},
		{"left second channel", map[transport.Chat]transport.Status{"@one": transport.StatusMember, "@two": transport.StatusLeft}},
		{"kicked", map[transport.Chat]transport.Status{"@one": transport.StatusKicked, "@two": transport.StatusCreator}},
		{"restricted", map[transport.Chat]transport.Status{"@one": transport.StatusAdministrator, "@two": transport.StatusRestricted}},
		{"unknown everywhere", map[transport.Chat]transport.Status{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, st, m, post := setup(t)
			for ch, s := range tt.status {
				m.SetStatus(ch, 1, s)
			}

			res := g.Like(context.Background(), post.ID, 1)
			assert.Equal(t, NotSubscribed, res.Outcome)

			got, _ := st.Get(post.ID)
			assert.Equal(t, 0, got.Likes)
			assert.Empty(t, m.Edits())
		})
	}
}

func TestLike_NotSubscribed_ShortCircuits(t *testing.T) {
	g, _, m, post := setup(t)
	m.SetStatus("@one", 1, transport.StatusLeft)

	g.Like(context.Background(), post.ID, 1)
	assert.Equal(t, 1, m.StatusCalls())
}

func TestLike_AdminAndCreatorCount(t *testing.T) {
	g, _, m, post := setup(t)
	m.SetStatus("@one", 1, transport.StatusCreator)
	m.SetStatus("@two", 1, transport.StatusAdministrator)

	assert.Equal(t, Accepted, g.Like(context.Background(), post.ID, 1).Outcome)
}

func TestLike_SubscriptionCheckFailed(t *testing.T) {
	g, st, m, post := setup(t)
	m.Subscribe(1, channels...)
	m.FailStatus["@two"] = errors.New("Bad Request: member list is inaccessible")

	res := g.Like(context.Background(), post.ID, 1)
	assert.Equal(t, SubscriptionCheckFailed, res.Outcome)

	got, _ := st.Get(post.ID)
	assert.Equal(t, 0, got.Likes)
}

func TestLike_SubscriptionCheckedBeforeAlreadyLiked(t *testing.T) {
	g, _, m, post := setup(t)
	m.Subscribe(1, channels...)
	require.Equal(t, Accepted, g.Like(context.Background(), post.ID, 1).Outcome)

	// The user leaves a channel after liking.
	m.SetStatus("@two", 1, transport.StatusLeft)
	assert.Equal(t, NotSubscribed, g.Like(context.Background(), post.ID, 1).Outcome)
}

func TestLike_NotModifiedIsBenign(t *testing.T) {
	g, st, m, post := setup(t)
	m.Subscribe(1, channels...)
	m.FailEdit["@one"] = fmt.Errorf("editMessageReplyMarkup @one: %w", transport.ErrNotModified)
	m.FailEdit["@two"] = errors.New("Bad Request: message to edit not found")

	res := g.Like(context.Background(), post.ID, 1)
	assert.Equal(t, Accepted, res.Outcome)

	got, _ := st.Get(post.ID)
	assert.Equal(t, 1, got.Likes, "edit failures never roll back the like")
}

func TestLike_GoneCopyIsForgotten(t *testing.T) {
	g, st, m, post := setup(t)
	m.Subscribe(1, channels...)
	m.FailEdit["@two"] = fmt.Errorf("editMessageReplyMarkup @two: %w", transport.ErrMessageGone)

	res := g.Like(context.Background(), post.ID, 1)
	assert.Equal(t, Accepted, res.Outcome)

	got, _ := st.Get(post.ID)
	assert.Equal(t, map[string]int{"@one": 10}, got.MessageIDs)
	assert.Equal(t, 1, got.Likes)
}

// slowFirstEdit holds the first keyboard edit until release is closed.
type slowFirstEdit struct {
	*transport.MockMessenger

	mu      sync.Mutex
	held    bool
	entered chan struct{}
	release chan struct{}
}

func (s *slowFirstEdit) EditKeyboard(ctx context.Context, chat transport.Chat, messageID int, kb transport.Keyboard) error {
	s.mu.Lock()
	first := !s.held
	s.held = true
	s.mu.Unlock()

	if first {
		close(s.entered)
		<-s.release
	}
	return s.MockMessenger.EditKeyboard(ctx, chat, messageID, kb)
}

func TestLike_SlowEditDoesNotLeaveStaleCount(t *testing.T) {
	st := store.New(nil)
	post := st.Create("photo", nil)
	require.NoError(t, st.RecordDelivery(post.ID, "@one", 10))

	m := &slowFirstEdit{
		MockMessenger: transport.NewMockMessenger(),
		entered:       make(chan struct{}),
		release:       make(chan struct{}),
	}
	only := []transport.Chat{"@one"}
	m.Subscribe(1, only...)
	m.Subscribe(2, only...)
	g := New(st, m, Options{Channels: only})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		g.Like(context.Background(), post.ID, 1)
	}()
	<-m.entered

	go func() {
		defer wg.Done()
		g.Like(context.Background(), post.ID, 2)
	}()
	require.Eventually(t, func() bool {
		p, _ := st.Get(post.ID)
		return p.Likes == 2
	}, time.Second, 5*time.Millisecond)

	close(m.release)
	wg.Wait()

	edits := m.Edits()
	require.NotEmpty(t, edits)
	assert.Equal(t, "❤️ Like (2)", edits[len(edits)-1].Keyboard[0][0].Text)
	assert.Equal(t, 0, g.refreshing.Len())
}

func TestLike_PostWithoutDeliveries(t *testing.T) {
	st := store.New(nil)
	m := transport.NewMockMessenger()
	m.Subscribe(1, channels...)
	post := st.Create("photo", nil)
	g := New(st, m, Options{Channels: channels})

	assert.Equal(t, Accepted, g.Like(context.Background(), post.ID, 1).Outcome)
	assert.Empty(t, m.Edits())
}

func TestLike_ConcurrentUsers(t *testing.T) {
	g, st, m, post := setup(t)

	const users = 50
	for u := int64(1); u <= users; u++ {
		m.Subscribe(u, channels...)
	}

	var mu sync.Mutex
	accepted := map[int64]int{}
	var wg sync.WaitGroup
	for u := int64(1); u <= users; u++ {
		for tap := 0; tap < 3; tap++ {
			wg.Add(1)
			go func(user int64) {
				defer wg.Done()
				if g.Like(context.Background(), post.ID, user).Outcome == Accepted {
					mu.Lock()
					accepted[user]++
					mu.Unlock()
				}
			}(u)
		}
	}
	wg.Wait()

	got, _ := st.Get(post.ID)
	assert.Equal(t, users, got.Likes)
	assert.Len(t, accepted, users)
	for user, n := range accepted {
		assert.Equal(t, 1, n, "user %d accepted more than once", user)
		assert.True(t, got.HasLiked(user))
	}
}

func TestLike_MixedSequence(t *testing.T) {
	g, st, m, post := setup(t)
	m.Subscribe(1, channels...)
	m.Subscribe(2, channels...)
	m.SetStatus("@one", 3, transport.StatusMember) // not in @two

	var acceptedUsers []int64
	for _, u := range []int64{1, 2, 1, 3, 2, 3, 1} {
		if g.Like(context.Background(), post.ID, u).Outcome == Accepted {
			acceptedUsers = append(acceptedUsers, u)
		}
	}

	got, _ := st.Get(post.ID)
	assert.Equal(t, []int64{1, 2}, acceptedUsers)
	assert.Equal(t, len(acceptedUsers), got.Likes)
	assert.Equal(t, acceptedUsers, got.Likers())
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "already_liked", AlreadyLiked.String())
	assert.Equal(t, "not_subscribed", NotSubscribed.String())
	assert.Equal(t, "subscription_check_failed", SubscriptionCheckFailed.String())
	assert.Equal(t, "post_not_found", PostNotFound.String())
	assert.Equal(t, "unknown", Outcome(0).String())
}
