package dialog

import (
	"context"
	"sync"
	"time"

	"github.com/zhouzirui/sanatorium/backend/internal/model/dialog"
)

// entry guards one session. The semaphore serializes turns for the same id
// while letting a waiting caller give up when its context ends.
type entry struct {
	sem     chan struct{}
	session *dialog.Session
}

func (e *entry) lock(ctx context.Context) error {
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *entry) unlock() {
	<-e.sem
}

// Store owns every session kept in process memory. Sessions never leave the
// Store: callers work on them inside Do or read deep copies.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	now      func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*entry),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// getOrCreate returns the entry for id, creating a welcome-stage session on
// first use.
func (s *Store) getOrCreate(id string) (*entry, bool) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		return e, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.sessions[id]; ok {
		return e, false
	}
	e = &entry{
		sem:     make(chan struct{}, 1),
		session: dialog.NewSession(id, s.now()),
	}
	s.sessions[id] = e
	return e, true
}

func (s *Store) get(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	return e, ok
}

// GetOrCreate makes sure a session exists for id and returns a copy of it
// and whether it was created by this call.
func (s *Store) GetOrCreate(ctx context.Context, id string) (*dialog.Session, bool, error) {
	if id == "" {
		return nil, false, ErrSessionRequired
	}
	e, created := s.getOrCreate(id)
	if err := e.lock(ctx); err != nil {
		return nil, false, err
	}
	defer e.unlock()
	return e.session.Clone(), created, nil
}

// Do runs fn with exclusive access to the session for id, creating it when
// needed. Calls for the same id run one at a time; different ids run in
// parallel.
func (s *Store) Do(ctx context.Context, id string, fn func(*dialog.Session) error) error {
	if id == "" {
		return ErrSessionRequired
	}
	e, _ := s.getOrCreate(id)
	if err := e.lock(ctx); err != nil {
		return err
	}
	defer e.unlock()
	return fn(e.session)
}

// DoExisting is Do for sessions that must already exist.
func (s *Store) DoExisting(ctx context.Context, id string, fn func(*dialog.Session) error) error {
	e, ok := s.get(id)
	if !ok {
		return ErrSessionNotFound
	}
	if err := e.lock(ctx); err != nil {
		return err
	}
	defer e.unlock()
	return fn(e.session)
}

// Snapshot returns a deep copy of the session for id.
func (s *Store) Snapshot(ctx context.Context, id string) (*dialog.Session, error) {
	var snapshot *dialog.Session
	err := s.DoExisting(ctx, id, func(sess *dialog.Session) error {
		snapshot = sess.Clone()
		return nil
	})
	return snapshot, err
}

// Len reports how many sessions are held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
