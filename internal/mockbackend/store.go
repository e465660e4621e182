package mockbackend

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrStoreFull = errors.New("session store is full")
)

// DefaultCapacity bounds how many sessions the store keeps in memory.
const DefaultCapacity = 10000

// upload is one stored image.
type upload struct {
	UploadID    string
	FileName    string
	ContentType string
	Data        []byte
	At          time.Time
}

// session is the stored state of one verification. The pipeline state is
// not stored; it is derived from PipelineStart on every read.
type session struct {
	ID             string
	UserID         string
	ClientPlatform string
	Created        time.Time
	Updated        time.Time
	Document       *upload
	Face           *upload
	PipelineStart  time.Time
	// FailingStage is the index of the stage that fails, or -1.
	FailingStage int
	// Reported is set once the terminal outcome was counted.
	Reported bool
}

// Store keeps sessions in memory.
type Store struct {
	mu       sync.RWMutex
	capacity int
	sessions map[string]*session
}

// NewStore constructs an empty store holding at most capacity sessions.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{capacity: capacity, sessions: make(map[string]*session)}
}

func (s *Store) Create(sess session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) >= s.capacity {
		return ErrStoreFull
	}
	copySession := sess
	s.sessions[sess.ID] = &copySession
	return nil
}

// Get returns a copy of the session.
func (s *Store) Get(id string) (session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return session{}, ErrNotFound
	}
	return *sess, nil
}

// Update applies fn to the stored session under the write lock. The change
// is kept only when fn succeeds.
func (s *Store) Update(id string, fn func(*session) error) (session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return session{}, ErrNotFound
	}
	updated := *sess
	if err := fn(&updated); err != nil {
		return session{}, err
	}
	s.sessions[id] = &updated
	return updated, nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, id)
	return nil
}

// All returns copies of every session, newest first.
func (s *Store) All() []session {
	s.mu.RLock()
	out := make([]session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.After(out[j].Created)
	})
	return out
}

// FindUpload returns the stored upload with the given id.
func (s *Store) FindUpload(uploadID string) (upload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sess := range s.sessions {
		for _, u := range []*upload{sess.Document, sess.Face} {
			if u != nil && u.UploadID == uploadID {
				return *u, nil
			}
		}
	}
	return upload{}, ErrNotFound
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// CheckCapacity is a readiness check failing once the store is full.
func (s *Store) CheckCapacity() error {
	if s.Len() >= s.capacity {
		return ErrStoreFull
	}
	return nil
}
