// Package conversation runs chat turns for a session: it routes each
// utterance, tracks the pending quiz, and keeps the transcript.
package conversation

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/garyellow/tamly-chatbot-go/internal/emotion"
	apperrors "github.com/garyellow/tamly-chatbot-go/internal/errors"
	"github.com/garyellow/tamly-chatbot-go/internal/history"
	"github.com/garyellow/tamly-chatbot-go/internal/quiz"
)

// Session is the per-user conversation state. A session must be processed
// by one turn at a time; see Locks.
type Session struct {
	ID          string            `json:"id"`
	Name        string            `json:"name,omitempty"`
	Transcript  []history.Message `json:"transcript"`
	Quiz        quiz.Tracker      `json:"quiz"`
	LastEmotion emotion.Tag       `json:"last_emotion,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewSession returns an empty session.
func NewSession(id string, now time.Time) *Session {
	return &Session{ID: id, UpdatedAt: now}
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	c := *s
	c.Transcript = make([]history.Message, len(s.Transcript))
	for i, m := range s.Transcript {
		m.Options = append([]string(nil), m.Options...)
		c.Transcript[i] = m
	}
	if s.Quiz.Pending != nil {
		q := *s.Quiz.Pending
		q.Options = append([]string(nil), q.Options...)
		c.Quiz.Pending = &q
	}
	return &c
}

// reset clears everything but the id.
func (s *Session) reset(now time.Time) {
	s.Name = ""
	s.Transcript = nil
	s.Quiz.Reset()
	s.LastEmotion = ""
	s.UpdatedAt = now
}

// append records a message and names the conversation after its first one.
func (s *Session) append(m history.Message) {
	if len(s.Transcript) == 0 && s.Name == "" {
		s.Name = history.NameFor(m.Content)
	}
	s.Transcript = append(s.Transcript, m)
}

// MarshalSession encodes a session for the sqlite and redis stores.
func MarshalSession(s *Session) ([]byte, error) {
	return json.Marshal(s)
}

// UnmarshalSession decodes a session written by MarshalSession.
func UnmarshalSession(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SessionStore persists sessions between turns. Get returns an error
// matching errors.ErrNotFound for unknown ids.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// MemoryStore keeps sessions in process memory. Sessions are lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*Session
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*Session)}
}

// Get returns a copy of the stored session.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.data[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return s.Clone(), nil
}

// Save stores a copy of s.
func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[s.ID] = s.Clone()
	return nil
}

// Delete removes id. Deleting an unknown id is not an error.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, id)
	return nil
}

// Count returns the number of stored sessions.
func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data), nil
}

// Locks hands out one mutex per session id so turns on the same session
// run sequentially while different sessions proceed in parallel.
type Locks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewLocks creates an empty lock table.
func NewLocks() *Locks {
	return &Locks{locks: make(map[string]*lockEntry)}
}

// Lock blocks until id is free and returns the unlock function.
func (l *Locks) Lock(id string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.locks[id]
	if !ok {
		e = &lockEntry{}
		l.locks[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
