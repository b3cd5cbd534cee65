package session

import "sync"

// Store holds at most one Session per chat.
//
// Get, Set and Clear are individually atomic. A caller that reads a session,
// computes the next one and writes it back must hold the chat's Lock for the
// whole sequence; different chats never contend on it.
type Store struct {
	mu    sync.Mutex // guards slots and slot.session/waiters
	slots map[int64]*slot
}

type slot struct {
	lock    sync.Mutex
	waiters int
	session *Session
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{slots: make(map[int64]*slot)}
}

// Lock enters the exclusive section for chatID and returns its release func.
func (s *Store) Lock(chatID int64) (unlock func()) {
	s.mu.Lock()
	sl := s.slotLocked(chatID)
	sl.waiters++
	s.mu.Unlock()

	sl.lock.Lock()
	return func() {
		s.mu.Lock()
		sl.waiters--
		s.dropIfUnusedLocked(chatID, sl)
		s.mu.Unlock()
		sl.lock.Unlock()
	}
}

// Get returns a copy of the chat's session; ok is false when the chat is Idle
// with no stored session.
func (s *Store) Get(chatID int64) (sess Session, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, found := s.slots[chatID]
	if !found || sl.session == nil {
		return Session{}, false
	}
	return sl.session.clone(), true
}

// Set replaces the chat's session.
func (s *Store) Set(chatID int64, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := sess.clone()
	s.slotLocked(chatID).session = &cp
}

// Clear removes the chat's session, returning it to Idle.
func (s *Store) Clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, found := s.slots[chatID]
	if !found {
		return
	}
	sl.session = nil
	s.dropIfUnusedLocked(chatID, sl)
}

// Len returns the number of chats with a stored session.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, sl := range s.slots {
		if sl.session != nil {
			n++
		}
	}
	return n
}

func (s *Store) slotLocked(chatID int64) *slot {
	sl, ok := s.slots[chatID]
	if !ok {
		sl = &slot{}
		s.slots[chatID] = sl
	}
	return sl
}

func (s *Store) dropIfUnusedLocked(chatID int64, sl *slot) {
	if sl.waiters == 0 && sl.session == nil && s.slots[chatID] == sl {
		delete(s.slots, chatID)
	}
}
