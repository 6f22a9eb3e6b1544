// Package session persists multi-conversation research history and the
// selection handoff between conversations.
package session

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"deepscout/internal/logging"
	"deepscout/internal/storage"
	"deepscout/internal/timeline"
	"deepscout/internal/transport"
)

// Storage keys.
const (
	conversationsKey = "research-conversations"
	selectedKey      = "selected-conversation-id"
)

const maxTitleLen = 30

// Conversation is one persisted research thread: its message log plus
// the frozen activity timeline of every finished exchange.
type Conversation struct {
	ID          string                      `json:"id"`
	Title       string                      `json:"title"`
	LastMessage string                      `json:"last_message"`
	UpdatedAt   time.Time                   `json:"updated_at"`
	Messages    []transport.Message         `json:"messages"`
	Activities  map[string][]timeline.Entry `json:"activities,omitempty"`
}

// Manager owns the conversation collection. Like the rest of the client
// state it is only touched from the single update goroutine.
type Manager struct {
	store         storage.Store
	conversations []Conversation
	currentID     string
}

// NewManager returns a manager over the given store with an empty
// collection; call Load to hydrate it.
func NewManager(store storage.Store) *Manager {
	return &Manager{store: store}
}

// Load hydrates the collection from storage. An absent or corrupt record
// yields an empty collection; persistence problems never block startup.
func (m *Manager) Load() {
	raw, ok, err := m.store.Get(conversationsKey)
	if err != nil || !ok {
		if err != nil {
			logging.Get(logging.CategorySession).Warn("load conversations: %v", err)
		}
		m.conversations = nil
		return
	}
	var convs []Conversation
	if err := json.Unmarshal([]byte(raw), &convs); err != nil {
		logging.Get(logging.CategorySession).Warn("corrupt conversation record, starting fresh: %v", err)
		m.conversations = nil
		return
	}
	m.conversations = convs
	logging.Get(logging.CategorySession).Info("loaded %d conversations", len(convs))
}

// Persist writes the collection to storage.
func (m *Manager) Persist() error {
	data, err := json.Marshal(m.conversations)
	if err != nil {
		return err
	}
	if err := m.store.Set(conversationsKey, string(data)); err != nil {
		logging.Get(logging.CategorySession).Error("persist conversations: %v", err)
		return err
	}
	return nil
}

// Conversations returns the collection, most recently created first.
func (m *Manager) Conversations() []Conversation {
	out := make([]Conversation, len(m.conversations))
	copy(out, m.conversations)
	return out
}

// CurrentID returns the selected conversation id, empty when none.
func (m *Manager) CurrentID() string { return m.currentID }

// Current returns the selected conversation.
func (m *Manager) Current() (Conversation, bool) {
	for _, c := range m.conversations {
		if c.ID == m.currentID {
			return c, true
		}
	}
	return Conversation{}, false
}

// CreateFromFirstMessage starts a new conversation titled after the
// first message, inserts it at the front of the collection, selects it,
// and persists. Returns the created conversation.
func (m *Manager) CreateFromFirstMessage(text string) (Conversation, error) {
	conv := Conversation{
		ID:          uuid.NewString(),
		Title:       DeriveTitle(text),
		LastMessage: text,
		UpdatedAt:   time.Now(),
	}
	m.conversations = append([]Conversation{conv}, m.conversations...)
	m.currentID = conv.ID
	logging.Get(logging.CategorySession).Info("created conversation %s (%q)", conv.ID, conv.Title)
	return conv, m.Persist()
}

// Activate sets the current conversation without recording a handoff or
// snapshotting, used at startup to resume the previous selection.
func (m *Manager) Activate(id string) (Conversation, bool) {
	c, ok := m.byID(id)
	if ok {
		m.currentID = id
	}
	return c, ok
}

// Select snapshots the in-flight state of the current conversation back
// into the collection, switches to id, and records the one-shot handoff
// key the transport re-initialization reads. messages and activities are
// the live state of the conversation being left.
func (m *Manager) Select(id string, messages []transport.Message, activities map[string][]timeline.Entry) (Conversation, bool) {
	m.snapshotCurrent(messages, activities)

	target, ok := m.byID(id)
	if !ok {
		return Conversation{}, false
	}
	m.currentID = id
	if err := m.store.Set(selectedKey, id); err != nil {
		logging.Get(logging.CategorySession).Warn("record selection handoff: %v", err)
	}
	if err := m.Persist(); err != nil {
		logging.Get(logging.CategorySession).Warn("persist on select: %v", err)
	}
	logging.Get(logging.CategorySession).Info("selected conversation %s", id)
	return target, true
}

// Deselect snapshots the current conversation back and clears the
// selection, used when starting a fresh conversation.
func (m *Manager) Deselect(messages []transport.Message, activities map[string][]timeline.Entry) {
	m.snapshotCurrent(messages, activities)
	m.currentID = ""
	if err := m.Persist(); err != nil {
		logging.Get(logging.CategorySession).Warn("persist on deselect: %v", err)
	}
}

// TakeSelected reads and clears the selection handoff key. The key is
// one-shot: a second read before another Select finds nothing.
func (m *Manager) TakeSelected() (string, bool) {
	id, ok, err := m.store.Get(selectedKey)
	if err != nil || !ok || id == "" {
		return "", false
	}
	if err := m.store.Delete(selectedKey); err != nil {
		logging.Get(logging.CategorySession).Warn("clear selection handoff: %v", err)
	}
	return id, true
}

// Delete removes a conversation. Deleting the current conversation
// clears the selection; the caller resets the dependent stores.
func (m *Manager) Delete(id string) error {
	kept := m.conversations[:0]
	for _, c := range m.conversations {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	m.conversations = kept
	if m.currentID == id {
		m.currentID = ""
	}
	logging.Get(logging.CategorySession).Info("deleted conversation %s", id)
	return m.Persist()
}

// FinalizeExchange records a finished exchange on the current
// conversation: the updated message log, the frozen timeline under the
// final message's id, and a recomputed preview line.
func (m *Manager) FinalizeExchange(messages []transport.Message, messageID string, entries []timeline.Entry) error {
	i, ok := m.indexOf(m.currentID)
	if !ok {
		return nil
	}
	c := &m.conversations[i]
	c.Messages = append([]transport.Message(nil), messages...)
	if c.Activities == nil {
		c.Activities = make(map[string][]timeline.Entry)
	}
	c.Activities[messageID] = append([]timeline.Entry(nil), entries...)
	if h, ok := transport.LastHumanMessage(messages); ok {
		c.LastMessage = h.Content
	}
	c.UpdatedAt = time.Now()
	return m.Persist()
}

// DeriveTitle truncates a first message into a sidebar title.
func DeriveTitle(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= maxTitleLen {
		return text
	}
	return string(runes[:maxTitleLen]) + "..."
}

func (m *Manager) snapshotCurrent(messages []transport.Message, activities map[string][]timeline.Entry) {
	// An empty live log means there is nothing newer than what is already
	// persisted; overwriting would erase the conversation's exchanges.
	if len(messages) == 0 {
		return
	}
	i, ok := m.indexOf(m.currentID)
	if !ok {
		return
	}
	c := &m.conversations[i]
	c.Messages = append([]transport.Message(nil), messages...)
	c.Activities = make(map[string][]timeline.Entry, len(activities))
	for id, entries := range activities {
		c.Activities[id] = append([]timeline.Entry(nil), entries...)
	}
	c.UpdatedAt = time.Now()
}

func (m *Manager) byID(id string) (Conversation, bool) {
	i, ok := m.indexOf(id)
	if !ok {
		return Conversation{}, false
	}
	return m.conversations[i], true
}

func (m *Manager) indexOf(id string) (int, bool) {
	if id == "" {
		return 0, false
	}
	for i, c := range m.conversations {
		if c.ID == id {
			return i, true
		}
	}
	return 0, false
}
