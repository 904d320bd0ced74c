package state

import (
	"sync"
	"time"
)

// Session is the in-progress questionnaire of one user.
type Session struct {
	UserID    int64
	Answers   []string
	Step      int
	StartedAt time.Time
}

// Registry tracks which users own a live session. Its key set is the
// ActiveSet: an id is a member exactly while a session exists for it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	now      func() time.Time
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
		now:      time.Now,
	}
}

// Admit creates a session for userID. It returns false, leaving the
// existing session untouched, when the user is already active.
func (r *Registry) Admit(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[userID]; ok {
		return false
	}
	r.sessions[userID] = &Session{UserID: userID, StartedAt: r.now()}
	return true
}

// Release destroys the session of userID. Releasing an idle user is a no-op.
func (r *Registry) Release(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// Contains reports whether userID currently owns a session.
func (r *Registry) Contains(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[userID]
	return ok
}

// Record appends an answer and advances the step. It returns false when the
// user has no live session.
func (r *Registry) Record(userID int64, answer string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[userID]
	if !ok {
		return false
	}
	sess.Answers = append(sess.Answers, answer)
	sess.Step++
	return true
}

// Get returns a copy of the session of userID.
func (r *Registry) Get(userID int64) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[userID]
	if !ok {
		return Session{}, false
	}
	cp := *sess
	cp.Answers = append([]string(nil), sess.Answers...)
	return cp, true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
