// ABOUTME: Single dispatcher for inbound bot events
// ABOUTME: Drops redelivered updates, gates admin actions on the operator and recovers handler panics

package console

import (
	"context"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/2389/fanpost/internal/callback"
	"github.com/2389/fanpost/internal/dedupe"
	"github.com/2389/fanpost/internal/engagement"
	"github.com/2389/fanpost/internal/lifecycle"
	"github.com/2389/fanpost/internal/metrics"
	"github.com/2389/fanpost/internal/session"
	"github.com/2389/fanpost/internal/transport"
)

const defaultRecentLimit = 10

// Options configures a Console.
type Options struct {
	// OperatorID is the only user allowed to use the admin console.
	OperatorID int64
	// RecentLimit is the number of posts on the manage screen.
	RecentLimit int
	// Dedupe drops updates that were already handled. Nil disables it.
	Dedupe *dedupe.Window
	// Location is used to render post dates. Defaults to time.Local.
	Location *time.Location
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Console routes every inbound event to exactly one handler.
type Console struct {
	operator    int64
	recentLimit int
	sessions    *session.Manager
	posts       *lifecycle.Controller
	likes       *engagement.Gate
	messenger   transport.Messenger
	dedupe      *dedupe.Window
	loc         *time.Location
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// New creates a Console.
func New(sessions *session.Manager, posts *lifecycle.Controller, likes *engagement.Gate, messenger transport.Messenger, opts Options) *Console {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := opts.RecentLimit
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	return &Console{
		operator:    opts.OperatorID,
		recentLimit: limit,
		sessions:    sessions,
		posts:       posts,
		likes:       likes,
		messenger:   messenger,
		dedupe:      opts.Dedupe,
		loc:         loc,
		metrics:     opts.Metrics,
		logger:      logger.With("component", "console"),
	}
}

// Handle processes one inbound event. It never panics and never returns an
// error; failures are logged and, for button presses, reported to the user.
func (c *Console) Handle(ctx context.Context, ev transport.Event) {
	c.metrics.Update(ev.Kind.String())

	if c.dedupe != nil && c.dedupe.Seen(ev.UpdateID) {
		c.logger.Debug("dropping redelivered update", "update_id", ev.UpdateID)
		return
	}

	logger := c.logger.With(
		"trace_id", uuid.NewString(),
		"update_id", ev.UpdateID,
		"kind", ev.Kind.String(),
		"sender_id", ev.SenderID,
	)

	acked := false
	defer func() {
		if r := recover(); r != nil {
			logger.Error("handler panicked", "panic", r, "stack", string(debug.Stack()))
			if ev.Kind == transport.EventButton && !acked {
				c.acknowledge(ctx, ev.InteractionID, errorNotice, logger)
			}
		}
	}()

	switch ev.Kind {
	case transport.EventCommand:
		c.onCommand(ctx, ev, logger)
	case transport.EventButton:
		notice := c.onButton(ctx, ev, logger)
		acked = true
		c.acknowledge(ctx, ev.InteractionID, notice, logger)
	case transport.EventPhoto:
		c.onPhoto(ctx, ev, logger)
	case transport.EventText:
		c.onText(ctx, ev, logger)
	default:
		logger.Debug("ignoring event")
	}
}

func (c *Console) isOperator(userID int64) bool {
	return userID == c.operator
}

func (c *Console) onCommand(ctx context.Context, ev transport.Event, logger *slog.Logger) {
	if !c.isOperator(ev.SenderID) {
		logger.Debug("ignoring command from non-operator", "command", ev.Command)
		return
	}
	if ev.Command != "start" {
		logger.Debug("ignoring unknown command", "command", ev.Command)
		return
	}
	c.sessions.Clear(ev.SenderID)
	c.showMenu(ctx, transport.ChatID(ev.ChatID), logger)
}

func (c *Console) onPhoto(ctx context.Context, ev transport.Event, logger *slog.Logger) {
	if !c.isOperator(ev.SenderID) {
		return
	}
	if err := c.sessions.OnPhoto(ev.SenderID, ev.PhotoRef); err != nil {
		c.reply(ctx, msgNewPostFirst, nil, logger)
		return
	}
	logger.Info("photo received, awaiting caption")
	c.reply(ctx, msgAskCaption, callback.CancelKeyboard(), logger)
}

func (c *Console) onText(ctx context.Context, ev transport.Event, logger *slog.Logger) {
	if !c.isOperator(ev.SenderID) || strings.HasPrefix(ev.Text, "/") {
		return
	}
	photo, caption, err := c.sessions.OnText(ev.SenderID, ev.Text)
	if err != nil {
		logger.Debug("text outside caption step")
		return
	}

	report := c.posts.CreatePost(ctx, photo, caption)
	for _, f := range report.Failures {
		c.reply(ctx, deliveryFailed(f), nil, logger)
	}
	if report.SaveErr != nil {
		logger.Error("post not persisted", "post_id", report.Post.ID, "error", report.SaveErr)
		c.reply(ctx, saveWarning(report.SaveErr), nil, logger)
	}
	c.reply(ctx, deliverySummary(report.Delivered, report.Total), anotherPostKeyboard(), logger)
	c.showMenu(ctx, c.operatorChat(), logger)
}

func (c *Console) operatorChat() transport.Chat {
	return transport.ChatID(c.operator)
}

// reply sends a message to the operator. Send failures are logged only.
func (c *Console) reply(ctx context.Context, text string, kb transport.Keyboard, logger *slog.Logger) {
	if _, err := c.messenger.SendMessage(ctx, c.operatorChat(), text, kb); err != nil {
		logger.Error("replying to operator failed", "error", err)
	}
}

func (c *Console) showMenu(ctx context.Context, chat transport.Chat, logger *slog.Logger) {
	if _, err := c.messenger.SendMessage(ctx, chat, msgMenu, callback.MainMenu()); err != nil {
		logger.Error("sending menu failed", "error", err)
	}
}

func (c *Console) acknowledge(ctx context.Context, interactionID string, notice transport.Notice, logger *slog.Logger) {
	if err := c.messenger.Acknowledge(ctx, interactionID, notice); err != nil {
		logger.Warn("acknowledging button press failed", "error", err)
	}
}
