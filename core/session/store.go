package session

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/siherrmann/handbot/model"
)

// DefaultChatTurns is the number of turns kept per sender for /chat
const DefaultChatTurns = 5

// Store keeps the verification state and chat history of senders in memory.
// A ttl of zero keeps entries for the lifetime of the process.
type Store struct {
	sessions *cache.Cache
	history  *cache.Cache
	// Guards read modify write of histories, the caches guard themselves
	mu        sync.Mutex
	chatTurns int
}

// NewStore creates a store. chatTurns <= 0 uses DefaultChatTurns.
func NewStore(ttl time.Duration, chatTurns int) *Store {
	expiration := cache.NoExpiration
	var cleanup time.Duration
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl
	}
	if chatTurns <= 0 {
		chatTurns = DefaultChatTurns
	}

	return &Store{
		sessions:  cache.New(expiration, cleanup),
		history:   cache.New(expiration, cleanup),
		chatTurns: chatTurns,
	}
}

// Get returns the session of a sender. ok is false for unknown senders.
func (s *Store) Get(sender string) (model.Session, bool) {
	v, ok := s.sessions.Get(sender)
	if !ok {
		return model.Session{}, false
	}
	return v.(model.Session), true
}

// Start returns the session of a sender, creating an unverified one on the first message
func (s *Store) Start(sender string) model.Session {
	if current, ok := s.Get(sender); ok {
		return current
	}

	session := model.Session{CreatedAt: time.Now()}
	if err := s.sessions.Add(sender, session, cache.DefaultExpiration); err != nil {
		// Created concurrently
		if current, ok := s.Get(sender); ok {
			return current
		}
	}
	return session
}

// Verify marks the sender as verified for the employee.
// A verified session is never downgraded or reassigned.
func (s *Store) Verify(sender string, employeeID string) model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	createdAt := now
	if current, ok := s.Get(sender); ok {
		if current.Verified {
			return current
		}
		createdAt = current.CreatedAt
	}

	session := model.Session{
		EmployeeID: employeeID,
		Verified:   true,
		CreatedAt:  createdAt,
		VerifiedAt: now,
	}
	s.sessions.SetDefault(sender, session)
	return session
}

// Count returns the number of sessions, verified or not
func (s *Store) Count() int {
	return s.sessions.ItemCount()
}

// History returns the last turns of a sender, oldest first
func (s *Store) History(sender string) []model.Turn {
	v, ok := s.history.Get(sender)
	if !ok {
		return nil
	}
	turns := v.([]model.Turn)
	return append([]model.Turn(nil), turns...)
}

// AppendTurn adds a turn and drops the oldest beyond the configured number of turns
func (s *Store) AppendTurn(sender string, turn model.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var turns []model.Turn
	if v, ok := s.history.Get(sender); ok {
		turns = v.([]model.Turn)
	}

	next := make([]model.Turn, 0, len(turns)+1)
	next = append(next, turns...)
	next = append(next, turn)
	if len(next) > s.chatTurns {
		next = next[len(next)-s.chatTurns:]
	}

	s.history.SetDefault(sender, next)
}

// ClearHistory forgets the chat history of a sender
func (s *Store) ClearHistory(sender string) {
	s.history.Delete(sender)
}
