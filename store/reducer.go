package store

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// The transitions below are pure: each returns a new session list and never
// modifies its input. Only the addressed session is copied.

// NewSession returns an empty session with the default title.
func NewSession(now time.Time) Session {
	return Session{
		ID:        uuid.New().String(),
		Title:     DefaultTitle,
		CreatedAt: now,
		Messages:  []Message{},
	}
}

// PrependSession puts s at the front of the list.
func PrependSession(sessions []Session, s Session) []Session {
	out := make([]Session, 0, len(sessions)+1)
	out = append(out, s)
	return append(out, sessions...)
}

// RemoveSession drops the session with id.
func RemoveSession(sessions []Session, id string) ([]Session, error) {
	i := indexOf(sessions, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	out := make([]Session, 0, len(sessions)-1)
	out = append(out, sessions[:i]...)
	return append(out, sessions[i+1:]...), nil
}

// TitleFrom derives a session title from the first user message.
func TitleFrom(text string) string {
	if utf8.RuneCountInString(text) <= titleMaxLen {
		return text
	}
	runes := []rune(text)
	return string(runes[:titleMaxLen]) + "..."
}

// AppendUserMessage appends msg and, while the session still has the default
// title, sets the title from titleSource.
func AppendUserMessage(sessions []Session, sessionID string, msg Message, titleSource string) ([]Session, error) {
	msg.Sender = SenderUser
	msg.Status = StatusComplete
	return update(sessions, sessionID, func(s *Session) error {
		s.Messages = append(s.Messages, msg)
		if s.Title == DefaultTitle && titleSource != "" {
			s.Title = TitleFrom(titleSource)
		}
		return nil
	})
}

// AppendPlaceholder appends an empty pending assistant message. A session
// holds at most one placeholder.
func AppendPlaceholder(sessions []Session, sessionID string, msg Message) ([]Session, error) {
	msg.Sender = SenderAssistant
	msg.Status = StatusPending
	msg.Text = ""
	return update(sessions, sessionID, func(s *Session) error {
		if _, ok := s.Placeholder(); ok {
			return fmt.Errorf("%w: %s", ErrPlaceholderActive, sessionID)
		}
		s.Messages = append(s.Messages, msg)
		return nil
	})
}

// FoldFragment replaces the placeholder's text with the full accumulated text
// so far. Applying the same accumulated value twice is a no-op.
func FoldFragment(sessions []Session, sessionID, messageID, accumulated string) ([]Session, error) {
	return update(sessions, sessionID, func(s *Session) error {
		i, err := placeholderIndex(s, messageID)
		if err != nil {
			return err
		}
		s.Messages[i].Text = accumulated
		s.Messages[i].Status = StatusStreaming
		return nil
	})
}

// SetTerminalText settles the placeholder with its final text and status.
func SetTerminalText(sessions []Session, sessionID, messageID, text string, status Status, errorKind string) ([]Session, error) {
	if status != StatusComplete && status != StatusError {
		return nil, fmt.Errorf("invalid terminal status %q", status)
	}
	return update(sessions, sessionID, func(s *Session) error {
		i, err := placeholderIndex(s, messageID)
		if err != nil {
			return err
		}
		s.Messages[i].Text = text
		s.Messages[i].Status = status
		if status == StatusError {
			s.Messages[i].ErrorKind = errorKind
		}
		return nil
	})
}

// RenameSession sets an explicit title.
func RenameSession(sessions []Session, sessionID, title string) ([]Session, error) {
	return update(sessions, sessionID, func(s *Session) error {
		s.Title = title
		return nil
	})
}

func indexOf(sessions []Session, id string) int {
	for i := range sessions {
		if sessions[i].ID == id {
			return i
		}
	}
	return -1
}

func placeholderIndex(s *Session, messageID string) (int, error) {
	for i := range s.Messages {
		if s.Messages[i].ID != messageID {
			continue
		}
		if !s.Messages[i].IsPlaceholder() {
			return -1, fmt.Errorf("%w: %s", ErrNotPlaceholder, messageID)
		}
		return i, nil
	}
	return -1, fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
}

// update copies the list and the addressed session, then applies fn to the copy.
func update(sessions []Session, sessionID string, fn func(*Session) error) ([]Session, error) {
	i := indexOf(sessions, sessionID)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s := sessions[i].Clone()
	if err := fn(&s); err != nil {
		return nil, err
	}
	out := make([]Session, len(sessions))
	copy(out, sessions)
	out[i] = s
	return out, nil
}
