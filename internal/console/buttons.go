// ABOUTME: Button press handlers for the admin console and the public like button
// ABOUTME: Each handler returns the notice shown when the press is acknowledged

package console

import (
	"context"
	"log/slog"

	"github.com/2389/fanpost/internal/callback"
	"github.com/2389/fanpost/internal/engagement"
	"github.com/2389/fanpost/internal/transport"
)

func (c *Console) onButton(ctx context.Context, ev transport.Event, logger *slog.Logger) transport.Notice {
	p := callback.Parse(ev.Data)
	logger = logger.With("action", string(p.Action))
	if p.PostID != "" {
		logger = logger.With("post_id", p.PostID)
	}

	if p.Action == callback.ActionLike {
		return c.onLike(ctx, p.PostID, ev.SenderID, logger)
	}
	if !c.isOperator(ev.SenderID) {
		logger.Debug("ignoring admin action from non-operator")
		return transport.Notice{}
	}

	var err error
	switch p.Action {
	case callback.ActionNewPost:
		c.sessions.Begin(ev.SenderID)
		_, err = c.messenger.SendMessage(ctx, c.operatorChat(), msgAskPhoto, callback.CancelKeyboard())
	case callback.ActionCancel:
		c.sessions.Clear(ev.SenderID)
		_, err = c.messenger.SendMessage(ctx, c.operatorChat(), msgCancelled, nil)
		if err == nil {
			c.showMenu(ctx, c.operatorChat(), logger)
		}
	case callback.ActionStats:
		_, err = c.messenger.SendMessage(ctx, c.operatorChat(), statsText(c.posts.Stats()), nil)
	case callback.ActionManage:
		err = c.showRecent(ctx)
	case callback.ActionBackToMenu:
		c.showMenu(ctx, c.operatorChat(), logger)
	case callback.ActionViewPost:
		return c.onView(ctx, p.PostID, logger)
	case callback.ActionDeletePost:
		return c.onDelete(ctx, p.PostID, logger)
	default:
		logger.Debug("unknown button payload", "data", ev.Data)
		return transport.Notice{}
	}

	if err != nil {
		logger.Error("button handler failed", "error", err)
		return errorNotice
	}
	return transport.Notice{}
}

func (c *Console) showRecent(ctx context.Context) error {
	recent := c.posts.ListRecent(c.recentLimit)
	if len(recent) == 0 {
		_, err := c.messenger.SendMessage(ctx, c.operatorChat(), msgNoPosts, nil)
		return err
	}

	kb := make(transport.Keyboard, 0, len(recent)+1)
	for _, s := range recent {
		kb = append(kb, []transport.Button{{
			Text: summaryLabel(s, c.loc),
			Data: callback.ViewPost(s.ID),
		}})
	}
	kb = append(kb, callback.BackTo(callback.BackToMenu())...)

	_, err := c.messenger.SendMessage(ctx, c.operatorChat(), msgRecentPosts, kb)
	return err
}

func (c *Console) onView(ctx context.Context, postID string, logger *slog.Logger) transport.Notice {
	post, ok := c.posts.ViewPost(postID)
	if !ok {
		return postNotFound
	}

	details := postDetails(post, c.loc)
	kb := transport.Keyboard{
		{{Text: "🗑 Delete", Data: callback.DeletePost(post.ID)}},
		{{Text: "◀️ Back", Data: callback.Manage()}},
	}
	if _, err := c.messenger.SendPhoto(ctx, c.operatorChat(), post.Photo, &details, kb); err != nil {
		logger.Error("sending post details failed", "error", err)
		return errorNotice
	}
	return transport.Notice{}
}

func (c *Console) onDelete(ctx context.Context, postID string, logger *slog.Logger) transport.Notice {
	found, err := c.posts.DeletePost(ctx, postID)
	if !found {
		return postNotFound
	}
	if err != nil {
		logger.Error("deletion not persisted", "error", err)
		c.reply(ctx, saveWarning(err), nil, logger)
	}

	if _, err := c.messenger.SendMessage(ctx, c.operatorChat(), msgDeleted, callback.BackTo(callback.Manage())); err != nil {
		logger.Error("confirming deletion failed", "error", err)
	}
	return transport.Notice{}
}

func (c *Console) onLike(ctx context.Context, postID string, userID int64, logger *slog.Logger) transport.Notice {
	res := c.likes.Like(ctx, postID, userID)
	logger.Debug("like handled", "outcome", res.Outcome.String(), "likes", res.Likes)
	return likeNotice(res.Outcome)
}

func likeNotice(o engagement.Outcome) transport.Notice {
	switch o {
	case engagement.Accepted:
		return transport.Notice{Text: "❤️ Like counted!"}
	case engagement.AlreadyLiked:
		return transport.Notice{Text: "❗ You have already liked this post!", Alert: true}
	case engagement.NotSubscribed:
		return transport.Notice{Text: "❗ Subscribe to all channels to like posts!", Alert: true}
	case engagement.SubscriptionCheckFailed:
		return transport.Notice{Text: "❗ Could not check your subscription.", Alert: true}
	case engagement.PostNotFound:
		return postNotFound
	default:
		return errorNotice
	}
}
