package client

import (
	"sync"

	"github.com/halcyon-app/halcyon/internal/models"
)

// Store is the client-side conversation cache: a map from conversation
// id to the locally known Conversation, plus a staleness mark and a
// notify-on-change hook. Only the dispatcher and refetch results write
// to it. It never performs network calls; callers decide when to refetch
// after an Invalidate.
type Store struct {
	mu            sync.Mutex
	conversations map[string]*models.Conversation
	stale         map[string]struct{}
	watchers      []func(conversationID string)
}

func NewStore() *Store {
	return &Store{
		conversations: make(map[string]*models.Conversation),
		stale:         make(map[string]struct{}),
	}
}

// Get returns a deep copy of the cached conversation, so readers never
// alias the store's state.
func (s *Store) Get(id string) (*models.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, false
	}
	return conv.Clone(), true
}

// Set replaces the cached conversation and clears any staleness mark.
func (s *Store) Set(id string, conv *models.Conversation) {
	s.mu.Lock()
	s.conversations[id] = conv.Clone()
	delete(s.stale, id)
	watchers := s.watchers
	s.mu.Unlock()
	notify(watchers, id)
}

// Append adds a message in place. A miss is a no-op: there is nothing to
// show optimistically for a conversation the client has never loaded.
func (s *Store) Append(id string, msg models.Message) {
	s.mu.Lock()
	conv, ok := s.conversations[id]
	if ok {
		conv.Messages = append(conv.Messages, msg)
	}
	watchers := s.watchers
	s.mu.Unlock()
	if ok {
		notify(watchers, id)
	}
}

// Invalidate marks the entry stale so the next interested reader
// refetches. Valid for ids with no cached entry yet, e.g. a conversation
// the server just created.
func (s *Store) Invalidate(id string) {
	s.mu.Lock()
	s.stale[id] = struct{}{}
	watchers := s.watchers
	s.mu.Unlock()
	notify(watchers, id)
}

func (s *Store) IsStale(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.stale[id]
	return ok
}

// Watch registers a change listener. Listeners run outside the store
// lock and must not block.
func (s *Store) Watch(fn func(conversationID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

func (s *Store) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = make(map[string]*models.Conversation)
	s.stale = make(map[string]struct{})
	s.watchers = nil
}

func notify(watchers []func(string), id string) {
	for _, fn := range watchers {
		fn(id)
	}
}
