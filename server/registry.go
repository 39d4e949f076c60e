package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Siri-Mahalaxmi/Aarani/liveness"
)

// Session is the per-connection state: a stable identifier and the liveness
// tracker whose lifetime is bound to the connection. The tracker is only
// ever touched by the goroutine processing that connection's current frame;
// the registry lock guards only the table itself.
type Session struct {
	ID          string
	Tracker     *liveness.Tracker
	ConnectedAt time.Time
}

// Registry owns the session table. Insert on connect, remove on disconnect;
// nothing else mutates it.
type Registry struct {
	mu           sync.Mutex
	sessions     map[string]*Session
	earThreshold float64
	blinkTarget  int
}

func NewRegistry(earThreshold float64, blinkTarget int) *Registry {
	return &Registry{
		sessions:     make(map[string]*Session),
		earThreshold: earThreshold,
		blinkTarget:  blinkTarget,
	}
}

// Register creates a fresh session with zeroed liveness state.
func (r *Registry) Register() *Session {
	sess := &Session{
		ID:          uuid.NewString(),
		Tracker:     liveness.NewTracker(r.earThreshold, r.blinkTarget),
		ConnectedAt: time.Now(),
	}
	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()
	return sess
}

// Remove discards the session's state. Safe to call for an unknown id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	return sess, ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
