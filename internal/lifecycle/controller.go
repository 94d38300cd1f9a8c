// ABOUTME: Post lifecycle controller: create with fan-out, list, view, delete, stats
// ABOUTME: Per-channel failures are isolated; the store is saved once per operation

package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/fanpost/internal/callback"
	"github.com/2389/fanpost/internal/metrics"
	"github.com/2389/fanpost/internal/store"
	"github.com/2389/fanpost/internal/transport"
)

const defaultFanoutLimit = 8

// Options configures a Controller.
type Options struct {
	Channels     []transport.Chat
	SubscribeURL string
	// FanoutLimit caps concurrent per-channel calls. Zero selects a default.
	FanoutLimit int
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Controller creates, lists and deletes posts.
type Controller struct {
	store        *store.Store
	messenger    transport.Messenger
	channels     []transport.Chat
	subscribeURL string
	fanoutLimit  int
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// New creates a Controller delivering to opts.Channels.
func New(st *store.Store, messenger transport.Messenger, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.FanoutLimit
	if limit <= 0 {
		limit = defaultFanoutLimit
	}
	return &Controller{
		store:        st,
		messenger:    messenger,
		channels:     opts.Channels,
		subscribeURL: opts.SubscribeURL,
		fanoutLimit:  limit,
		metrics:      opts.Metrics,
		logger:       logger.With("component", "lifecycle"),
	}
}

// ChannelFailure is a channel that did not take the post.
type ChannelFailure struct {
	Channel transport.Chat
	Err     error
}

// Report describes the outcome of CreatePost.
type Report struct {
	Post      store.Post
	Delivered int
	Total     int
	Failures  []ChannelFailure
	// SaveErr is set when the post could not be persisted. The post still
	// exists in memory.
	SaveErr error
}

// CreatePost stores a new post and delivers it to every channel.
func (c *Controller) CreatePost(ctx context.Context, photoRef string, caption *string) Report {
	// Fan-out runs to completion even if the triggering request goes away.
	ctx = context.WithoutCancel(ctx)

	post := c.store.Create(photoRef, caption)
	kb := callback.LikeKeyboard(post.ID, 0, c.subscribeURL)

	errs := make([]error, len(c.channels))
	var g errgroup.Group
	g.SetLimit(c.fanoutLimit)
	for i, ch := range c.channels {
		g.Go(func() error {
			msgID, err := c.messenger.SendPhoto(ctx, ch, post.Photo, post.Caption, kb)
			if err == nil {
				err = c.store.RecordDelivery(post.ID, string(ch), msgID)
			}
			c.metrics.Delivery(metrics.OpSend, err)
			if err != nil {
				c.logger.Error("delivering post failed",
					"post_id", post.ID,
					"channel", string(ch),
					"error", err,
				)
			}
			errs[i] = err
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Total: len(c.channels)}
	for i, err := range errs {
		if err != nil {
			report.Failures = append(report.Failures, ChannelFailure{Channel: c.channels[i], Err: err})
			continue
		}
		report.Delivered++
	}

	report.SaveErr = c.store.Save(ctx)

	report.Post = post
	if latest, ok := c.store.Get(post.ID); ok {
		report.Post = latest
	}

	c.logger.Info("post created",
		"post_id", post.ID,
		"delivered", report.Delivered,
		"channels", report.Total,
	)
	return report
}

// Summary is a list entry for the manage screen.
type Summary struct {
	ID string
	// Position is the 1-based index of the post in creation order.
	Position  int
	Likes     int
	CreatedAt time.Time
}

// ListRecent returns up to limit posts, newest first.
func (c *Controller) ListRecent(limit int) []Summary {
	posts, total := c.store.Recent(limit)
	out := make([]Summary, 0, len(posts))
	for i, p := range posts {
		out = append(out, Summary{
			ID:        p.ID,
			Position:  total - i,
			Likes:     p.Likes,
			CreatedAt: p.CreatedAt(),
		})
	}
	return out
}

// ViewPost looks a post up.
func (c *Controller) ViewPost(id string) (store.Post, bool) {
	return c.store.Get(id)
}

// DeletePost removes every delivered copy and then the post itself.
// Unknown ids report false and no error. The returned error is a save failure;
// the post is gone from memory either way.
func (c *Controller) DeletePost(ctx context.Context, id string) (bool, error) {
	ctx = context.WithoutCancel(ctx)

	unlock := c.store.LockPost(id)
	defer unlock()

	post, ok := c.store.Get(id)
	if !ok {
		return false, nil
	}

	var g errgroup.Group
	g.SetLimit(c.fanoutLimit)
	for ch, msgID := range post.MessageIDs {
		g.Go(func() error {
			err := c.messenger.DeleteMessage(ctx, transport.Chat(ch), msgID)
			c.metrics.Delivery(metrics.OpDelete, err)
			switch {
			case err == nil:
			case errors.Is(err, transport.ErrMessageGone):
				c.logger.Debug("channel message already gone", "post_id", id, "channel", ch)
			default:
				c.logger.Error("deleting channel message failed",
					"post_id", id,
					"channel", ch,
					"message_id", msgID,
					"error", err,
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	c.store.Delete(id)
	c.logger.Info("post deleted", "post_id", id, "channels", len(post.MessageIDs))

	return true, c.store.Save(ctx)
}

// Stats is the statistics screen content.
type Stats struct {
	PostCount  int
	TotalLikes int
}

// Stats counts posts and likes.
func (c *Controller) Stats() Stats {
	posts, likes := c.store.Stats()
	return Stats{PostCount: posts, TotalLikes: likes}
}
