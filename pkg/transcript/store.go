// Package transcript holds the ordered, append-only message log of one
// chat session.
package transcript

import (
	"sync"
	"time"

	"KBAssist/models"
)

// Store is safe for concurrent use. Entries are never removed or reordered;
// Feedback is the only field that changes after Append.
type Store struct {
	mu   sync.RWMutex
	msgs []models.Message
	byID map[string]int
}

func NewStore() *Store {
	return &Store{byID: make(map[string]int)}
}

// Append adds m to the end of the log. A timestamp earlier than the last
// entry's is raised to it so display order and time order agree.
func (s *Store) Append(m models.Message) {
	m = m.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	if n := len(s.msgs); n > 0 && m.Timestamp.Before(s.msgs[n-1].Timestamp) {
		m.Timestamp = s.msgs[n-1].Timestamp
	}
	s.msgs = append(s.msgs, m)
	if m.ID != "" {
		s.byID[m.ID] = len(s.msgs) - 1
	}
}

// SetFeedback tags the message with the given id. It reports whether a
// message matched; a miss changes nothing.
func (s *Store) SetFeedback(id string, v models.Feedback) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.byID[id]
	if !ok {
		return false
	}
	s.msgs[i].Feedback = v
	return true
}

// Get returns a copy of the message with the given id.
func (s *Store) Get(id string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return models.Message{}, false
	}
	return s.msgs[i].Clone(), true
}

// Snapshot returns the full ordered log. The result shares nothing with the
// store, so later appends or feedback changes do not show through.
func (s *Store) Snapshot() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.msgs))
	for i, m := range s.msgs {
		out[i] = m.Clone()
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.msgs)
}
