// ABOUTME: In-memory Messenger implementation for tests
// ABOUTME: Records every outbound call and fails on demand per chat

package transport

import (
	"context"
	"fmt"
	"sync"
)

// SentMessage is a recorded SendMessage or SendPhoto call.
type SentMessage struct {
	Chat      Chat
	MessageID int
	Text      string
	PhotoRef  string
	Caption   *string
	Keyboard  Keyboard
}

// Edit is a recorded EditKeyboard call.
type Edit struct {
	Chat      Chat
	MessageID int
	Keyboard  Keyboard
}

// Deletion is a recorded DeleteMessage call.
type Deletion struct {
	Chat      Chat
	MessageID int
}

// Ack is a recorded Acknowledge call.
type Ack struct {
	InteractionID string
	Notice        Notice
}

// MockMessenger is a Messenger that keeps everything in memory.
// Set the Fail* maps and Statuses before use; they are not guarded.
type MockMessenger struct {
	FailSend   map[Chat]error
	FailEdit   map[Chat]error
	FailDelete map[Chat]error
	FailStatus map[Chat]error

	// Statuses maps chat -> user -> status. Users not listed are StatusLeft.
	Statuses map[Chat]map[int64]Status

	mu          sync.Mutex
	nextID      int
	messages    []SentMessage
	edits       []Edit
	deletions   []Deletion
	acks        []Ack
	statusCalls int
}

// NewMockMessenger creates an empty MockMessenger.
func NewMockMessenger() *MockMessenger {
	return &MockMessenger{
		FailSend:   make(map[Chat]error),
		FailEdit:   make(map[Chat]error),
		FailDelete: make(map[Chat]error),
		FailStatus: make(map[Chat]error),
		Statuses:   make(map[Chat]map[int64]Status),
		nextID:     100,
	}
}

// SetStatus records the membership status of a user in a chat.
func (m *MockMessenger) SetStatus(chat Chat, userID int64, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Statuses[chat] == nil {
		m.Statuses[chat] = make(map[int64]Status)
	}
	m.Statuses[chat][userID] = status
}

// Subscribe marks the user as a member of every given chat.
func (m *MockMessenger) Subscribe(userID int64, chats ...Chat) {
	for _, c := range chats {
		m.SetStatus(c, userID, StatusMember)
	}
}

func (m *MockMessenger) SendMessage(ctx context.Context, chat Chat, text string, kb Keyboard) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailSend[chat]; err != nil {
		return 0, err
	}
	m.nextID++
	m.messages = append(m.messages, SentMessage{Chat: chat, MessageID: m.nextID, Text: text, Keyboard: kb})
	return m.nextID, nil
}

func (m *MockMessenger) SendPhoto(ctx context.Context, chat Chat, photoRef string, caption *string, kb Keyboard) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailSend[chat]; err != nil {
		return 0, err
	}
	m.nextID++
	m.messages = append(m.messages, SentMessage{
		Chat:      chat,
		MessageID: m.nextID,
		PhotoRef:  photoRef,
		Caption:   caption,
		Keyboard:  kb,
	})
	return m.nextID, nil
}

func (m *MockMessenger) EditKeyboard(ctx context.Context, chat Chat, messageID int, kb Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailEdit[chat]; err != nil {
		return err
	}
	m.edits = append(m.edits, Edit{Chat: chat, MessageID: messageID, Keyboard: kb})
	return nil
}

func (m *MockMessenger) DeleteMessage(ctx context.Context, chat Chat, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailDelete[chat]; err != nil {
		return err
	}
	m.deletions = append(m.deletions, Deletion{Chat: chat, MessageID: messageID})
	return nil
}

func (m *MockMessenger) MemberStatus(ctx context.Context, chat Chat, userID int64) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCalls++
	if err := m.FailStatus[chat]; err != nil {
		return "", fmt.Errorf("getChatMember %s: %w", chat, err)
	}
	if s, ok := m.Statuses[chat][userID]; ok {
		return s, nil
	}
	return StatusLeft, nil
}

func (m *MockMessenger) Acknowledge(ctx context.Context, interactionID string, notice Notice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acks = append(m.acks, Ack{InteractionID: interactionID, Notice: notice})
	return nil
}

// Messages returns every recorded send, in call order.
func (m *MockMessenger) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.messages...)
}

// MessagesTo returns the recorded sends to one chat.
func (m *MockMessenger) MessagesTo(chat Chat) []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SentMessage
	for _, msg := range m.messages {
		if msg.Chat == chat {
			out = append(out, msg)
		}
	}
	return out
}

// Edits returns every recorded keyboard edit.
func (m *MockMessenger) Edits() []Edit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Edit(nil), m.edits...)
}

// Deletions returns every recorded message deletion.
func (m *MockMessenger) Deletions() []Deletion {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Deletion(nil), m.deletions...)
}

// Acks returns every recorded acknowledgement.
func (m *MockMessenger) Acks() []Ack {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Ack(nil), m.acks...)
}

// StatusCalls returns how many membership lookups were made.
func (m *MockMessenger) StatusCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusCalls
}
