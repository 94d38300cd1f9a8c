// ABOUTME: Telegram Bot API adapter implementing Messenger
// ABOUTME: Long-polls updates, converts them to Events and dispatches each on its own goroutine

package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultPollTimeout    = 60
)

// TelegramOptions tunes the adapter. Zero values select defaults.
type TelegramOptions struct {
	// RequestTimeout bounds every Bot API call. getUpdates gets PollTimeout
	// on top of it.
	RequestTimeout time.Duration
	// PollTimeout is the getUpdates long-poll timeout in seconds.
	PollTimeout int
	// Endpoint is the Bot API URL format. Defaults to tgbotapi.APIEndpoint.
	Endpoint string
}

// Telegram talks to the Bot API.
type Telegram struct {
	api         *tgbotapi.BotAPI
	pollTimeout int
	logger      *slog.Logger
}

// NewTelegram authenticates with the Bot API using token.
func NewTelegram(token string, opts TelegramOptions, logger *slog.Logger) (*Telegram, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "telegram")

	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = defaultPollTimeout
	}
	if opts.Endpoint == "" {
		opts.Endpoint = tgbotapi.APIEndpoint
	}

	client := &http.Client{
		Transport: deadlineTransport{
			request: opts.RequestTimeout,
			poll:    time.Duration(opts.PollTimeout) * time.Second,
		},
	}

	// The library logs polling failures itself; route them through slog.
	if err := tgbotapi.SetLogger(botLogger{logger}); err != nil {
		return nil, fmt.Errorf("setting bot api logger: %w", err)
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, opts.Endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connecting to bot api: %w", err)
	}

	logger.Info("authorized on telegram", "username", api.Self.UserName)

	return &Telegram{
		api:         api,
		pollTimeout: opts.PollTimeout,
		logger:      logger,
	}, nil
}

// Username returns the bot's own username.
func (t *Telegram) Username() string {
	return t.api.Self.UserName
}

// Run polls for updates and calls handle for each one on its own goroutine.
// It blocks until ctx is cancelled, then waits for in-flight handlers.
func (t *Telegram) Run(ctx context.Context, handle func(context.Context, Event)) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.pollTimeout
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := t.api.GetUpdatesChan(u)

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("stopping update polling")
			t.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("update channel closed")
			}
			ev, ok := toEvent(update)
			if !ok {
				t.logger.Debug("ignoring update", "update_id", update.UpdateID)
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				handle(ctx, ev)
			}()
		}
	}
}

// toEvent converts a Bot API update. Updates the console has no use for
// (channel posts, edits, stickers) report false.
func toEvent(update tgbotapi.Update) (Event, bool) {
	if cq := update.CallbackQuery; cq != nil {
		if cq.From == nil {
			return Event{}, false
		}
		ev := Event{
			Kind:          EventButton,
			UpdateID:      update.UpdateID,
			SenderID:      cq.From.ID,
			InteractionID: cq.ID,
			Data:          cq.Data,
		}
		if cq.Message != nil && cq.Message.Chat != nil {
			ev.ChatID = cq.Message.Chat.ID
		}
		return ev, true
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return Event{}, false
	}

	ev := Event{
		UpdateID: update.UpdateID,
		SenderID: msg.From.ID,
		ChatID:   msg.Chat.ID,
	}

	switch {
	case msg.IsCommand():
		ev.Kind = EventCommand
		ev.Command = msg.Command()
	case len(msg.Photo) > 0:
		ev.Kind = EventPhoto
		ev.PhotoRef = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Text != "":
		ev.Kind = EventText
		ev.Text = msg.Text
	default:
		return Event{}, false
	}
	return ev, true
}

func (t *Telegram) SendMessage(ctx context.Context, chat Chat, text string, kb Keyboard) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var cfg tgbotapi.MessageConfig
	if chat.IsHandle() {
		cfg = tgbotapi.NewMessageToChannel(string(chat), text)
	} else {
		id, err := parseChatID(chat)
		if err != nil {
			return 0, err
		}
		cfg = tgbotapi.NewMessage(id, text)
	}
	if len(kb) > 0 {
		cfg.ReplyMarkup = inlineKeyboard(kb)
	}

	sent, err := t.api.Send(cfg)
	if err != nil {
		return 0, mapError("sendMessage", chat, err)
	}
	return sent.MessageID, nil
}

func (t *Telegram) SendPhoto(ctx context.Context, chat Chat, photoRef string, caption *string, kb Keyboard) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	file := tgbotapi.FileID(photoRef)
	var cfg tgbotapi.PhotoConfig
	if chat.IsHandle() {
		cfg = tgbotapi.NewPhotoToChannel(string(chat), file)
	} else {
		id, err := parseChatID(chat)
		if err != nil {
			return 0, err
		}
		cfg = tgbotapi.NewPhoto(id, file)
	}
	if caption != nil {
		cfg.Caption = *caption
	}
	if len(kb) > 0 {
		cfg.ReplyMarkup = inlineKeyboard(kb)
	}

	sent, err := t.api.Send(cfg)
	if err != nil {
		return 0, mapError("sendPhoto", chat, err)
	}
	return sent.MessageID, nil
}

func (t *Telegram) EditKeyboard(ctx context.Context, chat Chat, messageID int, kb Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	markup := inlineKeyboard(kb)
	edit := tgbotapi.BaseEdit{MessageID: messageID, ReplyMarkup: &markup}
	if chat.IsHandle() {
		edit.ChannelUsername = string(chat)
	} else {
		id, err := parseChatID(chat)
		if err != nil {
			return err
		}
		edit.ChatID = id
	}

	if _, err := t.api.Request(tgbotapi.EditMessageReplyMarkupConfig{BaseEdit: edit}); err != nil {
		return mapError("editMessageReplyMarkup", chat, err)
	}
	return nil
}

func (t *Telegram) DeleteMessage(ctx context.Context, chat Chat, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := tgbotapi.DeleteMessageConfig{MessageID: messageID}
	if chat.IsHandle() {
		cfg.ChannelUsername = string(chat)
	} else {
		id, err := parseChatID(chat)
		if err != nil {
			return err
		}
		cfg.ChatID = id
	}

	if _, err := t.api.Request(cfg); err != nil {
		return mapError("deleteMessage", chat, err)
	}
	return nil
}

func (t *Telegram) MemberStatus(ctx context.Context, chat Chat, userID int64) (Status, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := tgbotapi.ChatConfigWithUser{UserID: userID}
	if chat.IsHandle() {
		target.SuperGroupUsername = string(chat)
	} else {
		id, err := parseChatID(chat)
		if err != nil {
			return "", err
		}
		target.ChatID = id
	}

	member, err := t.api.GetChatMember(tgbotapi.GetChatMemberConfig{ChatConfigWithUser: target})
	if err != nil {
		return "", mapError("getChatMember", chat, err)
	}
	return Status(member.Status), nil
}

func (t *Telegram) Acknowledge(ctx context.Context, interactionID string, notice Notice) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := tgbotapi.NewCallback(interactionID, notice.Text)
	cfg.ShowAlert = notice.Alert
	if _, err := t.api.Request(cfg); err != nil {
		return fmt.Errorf("answerCallbackQuery: %w", err)
	}
	return nil
}

func inlineKeyboard(kb Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func parseChatID(chat Chat) (int64, error) {
	id, err := strconv.ParseInt(string(chat), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat %q: %w", chat, err)
	}
	return id, nil
}

// mapError wraps a Bot API error, translating the "not modified" and
// "not found" rejections into ErrNotModified and ErrMessageGone.
func mapError(method string, chat Chat, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "message is not modified"):
		return fmt.Errorf("%s %s: %w", method, chat, ErrNotModified)
	case strings.Contains(msg, "message to edit not found"),
		strings.Contains(msg, "message to delete not found"):
		return fmt.Errorf("%s %s: %w", method, chat, ErrMessageGone)
	}
	return fmt.Errorf("%s %s: %w", method, chat, err)
}

// deadlineTransport gives each Bot API request its own deadline. Long polls
// get the poll timeout on top.
type deadlineTransport struct {
	base    http.RoundTripper
	request time.Duration
	poll    time.Duration
}

func (d deadlineTransport) timeout(path string) time.Duration {
	if strings.HasSuffix(path, "/getUpdates") {
		return d.request + d.poll
	}
	return d.request
}

func (d deadlineTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := d.base
	if base == nil {
		base = http.DefaultTransport
	}

	ctx, cancel := context.WithTimeout(req.Context(), d.timeout(req.URL.Path))
	resp, err := base.RoundTrip(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases the request deadline once the body is consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

// botLogger adapts slog to the library's BotLogger interface.
type botLogger struct {
	logger *slog.Logger
}

func (l botLogger) Println(v ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l botLogger) Printf(format string, v ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
