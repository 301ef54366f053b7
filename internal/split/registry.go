package split

import "sync"

// Registry maps announcement-message IDs to active sessions. It is
// process-scoped and passed by reference into every handler that needs it;
// there is no persistence, so in-flight splits are discarded on restart.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	// order holds keys oldest-first so owner lookups are deterministic.
	order []string
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) put(key string, s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[key]; !ok {
		r.order = append(r.order, key)
	}
	r.sessions[key] = s
}

// Get looks up the session announced by the given message ID.
func (r *Registry) Get(key string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	return s, ok
}

func (r *Registry) delete(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[key]; !ok {
		return
	}
	delete(r.sessions, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// FindByOwner returns the key and session of the split organized by the
// given member, if any. The !add/!remove text commands locate the session
// this way; if an organizer somehow has several splits open, the oldest
// one wins.
func (r *Registry) FindByOwner(ownerID string) (string, *Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, key := range r.order {
		if s := r.sessions[key]; s.OwnerID == ownerID {
			return key, s, true
		}
	}
	return "", nil, false
}

// Len reports the number of active sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
