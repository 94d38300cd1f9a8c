// ABOUTME: Messenger interface and inbound Event types shared by the bot core
// ABOUTME: Keeps the console, lifecycle and engagement packages free of Telegram types

package transport

import (
	"context"
	"errors"
	"strconv"
	"strings"
)

// ErrNotModified is returned when an edit would leave the message unchanged.
var ErrNotModified = errors.New("message is not modified")

// ErrMessageGone is returned when the target message no longer exists.
var ErrMessageGone = errors.New("message not found")

// Chat identifies a delivery target: "@handle" or a numeric chat id.
type Chat string

// ChatID renders a numeric chat id as a Chat.
func ChatID(id int64) Chat {
	return Chat(strconv.FormatInt(id, 10))
}

// IsHandle reports whether the chat is addressed by its public username.
func (c Chat) IsHandle() bool {
	return strings.HasPrefix(string(c), "@")
}

// Button is a single inline keyboard button. Exactly one of Data or URL is set.
type Button struct {
	Text string
	Data string
	URL  string
}

// Keyboard is an inline keyboard laid out as rows of buttons.
type Keyboard [][]Button

// Status is a user's membership status in a channel.
type Status string

// Membership statuses reported by the platform.
const (
	StatusCreator       Status = "creator"
	StatusAdministrator Status = "administrator"
	StatusMember        Status = "member"
	StatusRestricted    Status = "restricted"
	StatusLeft          Status = "left"
	StatusKicked        Status = "kicked"
)

// Subscribed reports whether the status counts as a channel subscription.
func (s Status) Subscribed() bool {
	switch s {
	case StatusMember, StatusAdministrator, StatusCreator:
		return true
	default:
		return false
	}
}

// Notice is the short text shown to a user when a button press is acknowledged.
// Alert shows it as a modal dialog instead of a toast.
type Notice struct {
	Text  string
	Alert bool
}

// Messenger is the outbound surface of the chat platform.
type Messenger interface {
	SendMessage(ctx context.Context, chat Chat, text string, kb Keyboard) (int, error)
	SendPhoto(ctx context.Context, chat Chat, photoRef string, caption *string, kb Keyboard) (int, error)
	EditKeyboard(ctx context.Context, chat Chat, messageID int, kb Keyboard) error
	DeleteMessage(ctx context.Context, chat Chat, messageID int) error
	MemberStatus(ctx context.Context, chat Chat, userID int64) (Status, error)
	Acknowledge(ctx context.Context, interactionID string, notice Notice) error
}

// EventKind classifies an inbound update.
type EventKind int

const (
	EventCommand EventKind = iota + 1
	EventButton
	EventPhoto
	EventText
)

func (k EventKind) String() string {
	switch k {
	case EventCommand:
		return "command"
	case EventButton:
		return "button"
	case EventPhoto:
		return "photo"
	case EventText:
		return "text"
	default:
		return "unknown"
	}
}

// Event is an inbound update normalized for the console.
type Event struct {
	Kind     EventKind
	UpdateID int
	SenderID int64
	ChatID   int64

	// InteractionID identifies a button press for acknowledgement.
	InteractionID string

	Command  string // without the leading slash
	Data     string // button payload
	PhotoRef string // largest photo size
	Text     string
}
