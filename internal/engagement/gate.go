// ABOUTME: Subscription-gated, idempotent like handling
// ABOUTME: Serializes per post through the store lock and refreshes channel keyboards in order

package engagement

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/2389/fanpost/internal/callback"
	"github.com/2389/fanpost/internal/metrics"
	"github.com/2389/fanpost/internal/store"
	"github.com/2389/fanpost/internal/transport"
)

// Outcome is the result of a like attempt.
type Outcome int

const (
	Accepted Outcome = iota + 1
	AlreadyLiked
	NotSubscribed
	SubscriptionCheckFailed
	PostNotFound
)

func (o Outcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case AlreadyLiked:
		return "already_liked"
	case NotSubscribed:
		return "not_subscribed"
	case SubscriptionCheckFailed:
		return "subscription_check_failed"
	case PostNotFound:
		return "post_not_found"
	default:
		return "unknown"
	}
}

// Result is the outcome together with the post's like count after the attempt.
type Result struct {
	Outcome Outcome
	Likes   int
}

// Options configures a Gate.
type Options struct {
	// Channels the user must be subscribed to, checked in order.
	Channels     []transport.Chat
	SubscribeURL string
	FanoutLimit  int
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
}

// Gate decides and records likes.
type Gate struct {
	store        *store.Store
	messenger    transport.Messenger
	channels     []transport.Chat
	subscribeURL string
	fanoutLimit  int
	metrics      *metrics.Metrics
	logger       *slog.Logger

	// refreshing orders keyboard edits per post.
	refreshing store.KeyedMutex
}

// New creates a Gate.
func New(st *store.Store, messenger transport.Messenger, opts Options) *Gate {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.FanoutLimit
	if limit <= 0 {
		limit = 8
	}
	return &Gate{
		store:        st,
		messenger:    messenger,
		channels:     opts.Channels,
		subscribeURL: opts.SubscribeURL,
		fanoutLimit:  limit,
		metrics:      opts.Metrics,
		logger:       logger.With("component", "engagement"),
	}
}

// Like records userID's like on postID if the user is subscribed to every
// channel and has not liked the post before.
func (g *Gate) Like(ctx context.Context, postID string, userID int64) Result {
	res := g.decide(ctx, postID, userID)
	g.metrics.Like(res.Outcome.String())

	if res.Outcome == Accepted {
		g.refresh(ctx, postID)
	}
	return res
}

// decide runs the check-then-write sequence under the post lock.
func (g *Gate) decide(ctx context.Context, postID string, userID int64) Result {
	unlock := g.store.LockPost(postID)
	defer unlock()

	post, ok := g.store.Get(postID)
	if !ok {
		return Result{Outcome: PostNotFound}
	}

	for _, ch := range g.channels {
		status, err := g.messenger.MemberStatus(ctx, ch, userID)
		if err != nil {
			g.logger.Warn("membership lookup failed",
				"post_id", postID,
				"user_id", userID,
				"channel", string(ch),
				"error", err,
			)
			return Result{Outcome: SubscriptionCheckFailed, Likes: post.Likes}
		}
		if !status.Subscribed() {
			g.logger.Debug("like from non-subscriber",
				"post_id", postID,
				"user_id", userID,
				"channel", string(ch),
				"status", string(status),
			)
			return Result{Outcome: NotSubscribed, Likes: post.Likes}
		}
	}

	if post.HasLiked(userID) {
		return Result{Outcome: AlreadyLiked, Likes: post.Likes}
	}

	likes, added, err := g.store.RecordLike(postID, userID)
	if err != nil {
		// Deletion also takes the post lock, so this only happens if the
		// post vanished without it.
		return Result{Outcome: PostNotFound}
	}
	if !added {
		return Result{Outcome: AlreadyLiked, Likes: likes}
	}

	if err := g.store.Save(ctx); err != nil {
		g.logger.Error("like kept in memory only", "post_id", postID, "user_id", userID, "error", err)
	}

	g.logger.Info("like accepted", "post_id", postID, "user_id", userID, "likes", likes)
	return Result{Outcome: Accepted, Likes: likes}
}

// refresh shows the current like count on every channel copy of the post.
// Refreshes of one post run one at a time and each reads the count after
// the previous one finished, so a slow edit never leaves a stale count behind.
func (g *Gate) refresh(ctx context.Context, postID string) {
	ctx = context.WithoutCancel(ctx)

	unlock := g.refreshing.Lock(postID)
	defer unlock()

	post, ok := g.store.Get(postID)
	if !ok {
		return
	}
	kb := callback.LikeKeyboard(post.ID, post.Likes, g.subscribeURL)

	var (
		mu   sync.Mutex
		gone []string
	)
	var eg errgroup.Group
	eg.SetLimit(g.fanoutLimit)
	for ch, msgID := range post.MessageIDs {
		eg.Go(func() error {
			err := g.messenger.EditKeyboard(ctx, transport.Chat(ch), msgID, kb)
			g.metrics.Delivery(metrics.OpEdit, err)
			switch {
			case err == nil:
			case errors.Is(err, transport.ErrNotModified):
				g.logger.Debug("keyboard already current", "post_id", postID, "channel", ch)
			case errors.Is(err, transport.ErrMessageGone):
				g.logger.Warn("channel copy is gone, forgetting it",
					"post_id", postID,
					"channel", ch,
					"message_id", msgID,
				)
				mu.Lock()
				gone = append(gone, ch)
				mu.Unlock()
			default:
				g.logger.Error("refreshing like button failed",
					"post_id", postID,
					"channel", ch,
					"message_id", msgID,
					"error", err,
				)
			}
			return nil
		})
	}
	_ = eg.Wait()

	g.forget(ctx, postID, gone)
}

// forget drops channel copies that no longer exist.
func (g *Gate) forget(ctx context.Context, postID string, channels []string) {
	if len(channels) == 0 {
		return
	}
	for _, ch := range channels {
		if err := g.store.RemoveChannel(postID, ch); err != nil {
			// Deleted meanwhile.
			return
		}
	}
	if err := g.store.Save(ctx); err != nil {
		g.logger.Error("forgotten channels kept in memory only", "post_id", postID, "error", err)
	}
}
