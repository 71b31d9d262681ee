// Package conversation keeps multi-turn review sessions in memory.
package conversation

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/garnizeh/devcompanion/pkg/models"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// State is the analysis state carried across turns.
type State struct {
	OriginalCode     string         `json:"original_code,omitempty"`
	CurrentCode      string         `json:"current_code,omitempty"`
	DetectedIssues   []models.Issue `json:"detected_issues"`
	PendingIssues    []string       `json:"pending_issues"`
	AppliedFixes     []string       `json:"applied_fixes"`
	AwaitingDecision bool           `json:"awaiting_decision"`
}

// StateUpdate is a partial State. Nil fields leave the stored value alone;
// a non-nil empty slice clears it.
type StateUpdate struct {
	OriginalCode     *string
	CurrentCode      *string
	DetectedIssues   []models.Issue
	PendingIssues    []string
	AppliedFixes     []string
	AwaitingDecision *bool
}

type Conversation struct {
	ID        string    `json:"conversation_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
	State     State     `json:"state"`
}

// Summary is the listing form of a conversation.
type Summary struct {
	ID           string    `json:"conversation_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Context is the read-only projection handed to the analysis backend.
type Context struct {
	ConversationID string    `json:"conversation_id"`
	Messages       []Message `json:"messages"`
	State          State     `json:"state"`
}

// Manager owns every conversation. One mutex guards the whole store and
// callers only ever see copies.
type Manager struct {
	now func() time.Time

	mu            sync.Mutex
	conversations map[string]*Conversation
}

type Option func(*Manager)

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		now:           time.Now,
		conversations: make(map[string]*Conversation),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Create stores an empty conversation and returns its ID.
func (m *Manager) Create() string {
	id := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.conversations[id] = &Conversation{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []Message{},
		State:     emptyState(),
	}
	return id
}

// Get returns a deep copy of the conversation.
func (m *Manager) Get(id string) (Conversation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[id]
	if !ok {
		return Conversation{}, false
	}
	return Conversation{
		ID:        c.ID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Messages:  copyMessages(c.Messages),
		State:     copyState(c.State),
	}, true
}

// Exists reports whether id names a stored conversation.
func (m *Manager) Exists(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.conversations[id]
	return ok
}

// AddMessage appends a message. Unknown IDs are ignored.
func (m *Manager) AddMessage(id string, role Role, content string, metadata map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[id]
	if !ok {
		return
	}
	now := m.now()
	c.Messages = append(c.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: now,
		Metadata:  maps.Clone(metadata),
	})
	m.touch(c, now)
}

// UpdateState merges the non-nil fields of u into the stored state.
// Unknown IDs are ignored.
func (m *Manager) UpdateState(id string, u StateUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[id]
	if !ok {
		return
	}
	if u.OriginalCode != nil {
		c.State.OriginalCode = *u.OriginalCode
	}
	if u.CurrentCode != nil {
		c.State.CurrentCode = *u.CurrentCode
	}
	if u.DetectedIssues != nil {
		c.State.DetectedIssues = slices.Clone(u.DetectedIssues)
	}
	if u.PendingIssues != nil {
		c.State.PendingIssues = slices.Clone(u.PendingIssues)
	}
	if u.AppliedFixes != nil {
		c.State.AppliedFixes = slices.Clone(u.AppliedFixes)
	}
	if u.AwaitingDecision != nil {
		c.State.AwaitingDecision = *u.AwaitingDecision
	}
	m.touch(c, m.now())
}

// ResetState wipes the analysis state while keeping identity and history.
func (m *Manager) ResetState(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[id]
	if !ok {
		return
	}
	c.State = emptyState()
	m.touch(c, m.now())
}

// Context returns the projection used for follow-up questions.
func (m *Manager) Context(id string) (Context, bool) {
	c, ok := m.Get(id)
	if !ok {
		return Context{}, false
	}
	return Context{ConversationID: c.ID, Messages: c.Messages, State: c.State}, true
}

// Delete removes a conversation and reports whether it existed.
func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conversations[id]; !ok {
		return false
	}
	delete(m.conversations, id)
	return true
}

// List returns a summary of every conversation, most recently updated first.
func (m *Manager) List() []Summary {
	m.mu.Lock()
	out := make([]Summary, 0, len(m.conversations))
	for _, c := range m.conversations {
		out = append(out, Summary{
			ID:           c.ID,
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
			MessageCount: len(c.Messages),
		})
	}
	m.mu.Unlock()

	slices.SortFunc(out, func(a, b Summary) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	return out
}

// ClearAll removes every conversation and returns how many there were.
func (m *Manager) ClearAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.conversations)
	m.conversations = make(map[string]*Conversation)
	return n
}

// touch advances UpdatedAt, never moving it backwards.
func (m *Manager) touch(c *Conversation, now time.Time) {
	if now.After(c.UpdatedAt) {
		c.UpdatedAt = now
	}
}

func emptyState() State {
	return State{
		DetectedIssues: []models.Issue{},
		PendingIssues:  []string{},
		AppliedFixes:   []string{},
	}
}

func copyState(s State) State {
	s.DetectedIssues = slices.Clone(s.DetectedIssues)
	s.PendingIssues = slices.Clone(s.PendingIssues)
	s.AppliedFixes = slices.Clone(s.AppliedFixes)
	return s
}

func copyMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, msg := range msgs {
		msg.Metadata = maps.Clone(msg.Metadata)
		out[i] = msg
	}
	return out
}
