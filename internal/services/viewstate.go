package services

import "sync"

// ViewStateStore tracks which notifications a session has expanded. Purely
// presentation state: session-local, never persisted, no effect on read flags.
type ViewStateStore struct {
	mu       sync.Mutex
	sessions map[string]map[string]struct{} // session id -> expanded notification ids
}

// NewViewStateStore constructs an empty ViewStateStore.
func NewViewStateStore() *ViewStateStore {
	return &ViewStateStore{sessions: make(map[string]map[string]struct{})}
}

// Toggle flips the expanded state for a notification and returns the new state.
func (s *ViewStateStore) Toggle(sessionID, notificationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expanded, ok := s.sessions[sessionID]
	if !ok {
		expanded = make(map[string]struct{})
		s.sessions[sessionID] = expanded
	}

	if _, open := expanded[notificationID]; open {
		delete(expanded, notificationID)
		return false
	}
	expanded[notificationID] = struct{}{}
	return true
}

// IsExpanded reports whether the session has a notification expanded.
func (s *ViewStateStore) IsExpanded(sessionID, notificationID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expanded, ok := s.sessions[sessionID]
	if !ok {
		return false
	}
	_, open := expanded[notificationID]
	return open
}

// Reset discards all expand state for a session, e.g. on session end.
func (s *ViewStateStore) Reset(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
