package server

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	contractx "github.com/warin-t/salesforce-next-best-action/agent/contract"
	salesforcex "github.com/warin-t/salesforce-next-best-action/pkg/salesforce"
)

var ErrSessionNotFound = errors.New("session not found")

// Session is one dashboard workflow: load an account, analyze it, pick a
// recommendation, plan, execute. All state lives here and dies with the
// session.
type Session struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt time.Time

	mu        sync.Mutex
	crm       CRM
	engine    contractx.EngineName
	accountID string
	bundle    *salesforcex.AccountBundle
	analyses  map[contractx.EngineName]contractx.Analysis
	recs      []contractx.Recommendation
	selected  *contractx.Recommendation
	plan      *contractx.ActionPlan
	report    *contractx.ExecutionReport
}

// Update runs fn while holding the session lock.
func (s *Session) Update(fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

// Store is the in-memory session registry. Expired sessions are evicted
// lazily on lookup and swept on create.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewStore(ttl time.Duration, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      now,
	}
}

func (st *Store) Create() *Session {
	now := st.now()
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(st.ttl),
		analyses:  make(map[contractx.EngineName]contractx.Analysis),
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	for id, existing := range st.sessions {
		if !existing.ExpiresAt.After(now) {
			delete(st.sessions, id)
		}
	}
	st.sessions[s.ID] = s
	return s
}

// Get returns a live session and slides its expiry forward.
func (st *Store) Get(id string) (*Session, error) {
	now := st.now()

	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !s.ExpiresAt.After(now) {
		delete(st.sessions, id)
		return nil, ErrSessionNotFound
	}
	s.ExpiresAt = now.Add(st.ttl)
	return s, nil
}

func (st *Store) Delete(id string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(st.sessions, id)
	return nil
}

// Len reports the number of stored sessions, expired included.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
