package store

import (
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps every session in process memory. It is the single writer
// for conversation state: each method applies one reducer transition under the
// lock and swaps in the resulting list.
type MemoryStore struct {
	// writeMu serializes publishing writes so subscribers see snapshots in
	// commit order. It is taken before mu.
	writeMu  sync.Mutex
	mu       sync.Mutex
	sessions []Session
	now      func() time.Time

	subMu   sync.Mutex
	subs    map[int]func(Session)
	nextSub int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		now:  time.Now,
		subs: make(map[int]func(Session)),
	}
}

var _ SessionStore = (*MemoryStore)(nil)

func (s *MemoryStore) Create() (Session, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	sess := NewSession(s.now())
	s.sessions = PrependSession(s.sessions, sess)
	s.mu.Unlock()

	s.publish(sess)
	return sess.Clone(), nil
}

func (s *MemoryStore) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := indexOf(s.sessions, id)
	if i < 0 {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.sessions[i].Clone(), nil
}

func (s *MemoryStore) List() []SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SessionSummary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, SessionSummary{
			ID:           sess.ID,
			Title:        sess.Title,
			CreatedAt:    sess.CreatedAt,
			MessageCount: len(sess.Messages),
		})
	}
	return out
}

func (s *MemoryStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := RemoveSession(s.sessions, id)
	if err != nil {
		return err
	}
	s.sessions = next
	return nil
}

func (s *MemoryStore) Rename(id, title string) error {
	_, err := s.apply(id, func(list []Session) ([]Session, error) {
		return RenameSession(list, id, title)
	})
	return err
}

func (s *MemoryStore) AppendUserMessage(sessionID string, msg Message, titleSource string) (Session, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	return s.apply(sessionID, func(list []Session) ([]Session, error) {
		return AppendUserMessage(list, sessionID, msg, titleSource)
	})
}

func (s *MemoryStore) AppendPlaceholder(sessionID string, msg Message) (Session, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	return s.apply(sessionID, func(list []Session) ([]Session, error) {
		return AppendPlaceholder(list, sessionID, msg)
	})
}

func (s *MemoryStore) FoldFragment(sessionID, messageID, accumulated string) (Session, error) {
	return s.apply(sessionID, func(list []Session) ([]Session, error) {
		return FoldFragment(list, sessionID, messageID, accumulated)
	})
}

func (s *MemoryStore) SetTerminalText(sessionID, messageID, text string, status Status, errorKind string) (Session, error) {
	return s.apply(sessionID, func(list []Session) ([]Session, error) {
		return SetTerminalText(list, sessionID, messageID, text, status, errorKind)
	})
}

func (s *MemoryStore) Subscribe(fn func(Session)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

// apply runs one transition atomically and notifies subscribers with the
// changed session before the next write commits.
func (s *MemoryStore) apply(sessionID string, transition func([]Session) ([]Session, error)) (Session, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	next, err := transition(s.sessions)
	if err != nil {
		s.mu.Unlock()
		return Session{}, err
	}
	s.sessions = next
	changed := next[indexOf(next, sessionID)].Clone()
	s.mu.Unlock()

	s.publish(changed)
	return changed, nil
}

func (s *MemoryStore) publish(sess Session) {
	s.subMu.Lock()
	fns := make([]func(Session), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(sess.Clone())
	}
}
