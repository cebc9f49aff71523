package store

import (
	"errors"
	"time"
)

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Status tracks an assistant message through generation. User messages are
// always complete.
type Status string

const (
	StatusPending   Status = "pending"   // placeholder, no fragment yet
	StatusStreaming Status = "streaming" // placeholder, fragments arriving
	StatusComplete  Status = "complete"
	StatusError     Status = "error"
)

// DefaultTitle is held by a session until its first user message.
const DefaultTitle = "New Conversation"

// titleMaxLen is the number of runes kept from the first user message.
const titleMaxLen = 30

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrMessageNotFound   = errors.New("message not found")
	ErrPlaceholderActive = errors.New("session already has a generation in progress")
	ErrNotPlaceholder    = errors.New("message is not an active placeholder")
)

// Message is one entry in a session's timeline.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Status    Status    `json:"status"`
	Model     string    `json:"model,omitempty"`
	ErrorKind string    `json:"errorKind,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// IsPlaceholder reports whether the message is an in-flight assistant reply.
func (m Message) IsPlaceholder() bool {
	return m.Sender == SenderAssistant && (m.Status == StatusPending || m.Status == StatusStreaming)
}

// Session is one conversation thread.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	Messages  []Message `json:"messages"`
}

// Placeholder returns the session's active placeholder, if any.
func (s Session) Placeholder() (Message, bool) {
	for _, m := range s.Messages {
		if m.IsPlaceholder() {
			return m, true
		}
	}
	return Message{}, false
}

// Clone returns a copy that shares nothing mutable with s.
func (s Session) Clone() Session {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return out
}

// SessionSummary is a list-view entry.
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	MessageCount int       `json:"messageCount"`
}

// SessionStore owns all conversation state. Every mutation is one atomic
// reducer transition.
type SessionStore interface {
	Create() (Session, error)
	Get(id string) (Session, error)
	List() []SessionSummary
	Delete(id string) error
	Rename(id, title string) error

	AppendUserMessage(sessionID string, msg Message, titleSource string) (Session, error)
	AppendPlaceholder(sessionID string, msg Message) (Session, error)
	FoldFragment(sessionID, messageID, accumulated string) (Session, error)
	SetTerminalText(sessionID, messageID, text string, status Status, errorKind string) (Session, error)

	// Subscribe registers fn to receive every changed session, in commit
	// order. fn may read the store but must not write to it. The returned
	// func removes the subscription.
	Subscribe(fn func(Session)) (cancel func())
}
