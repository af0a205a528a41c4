package client

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/halcyon-app/halcyon/internal/models"
)

// Session owns the client-side chat state for one signed-in user:
// the conversation cache and the dispatcher, with an explicit lifecycle.
// Construct it at session start and Close it at session end; nothing
// here is process-global.
type Session struct {
	Store      *Store
	Dispatcher *Dispatcher

	remote    Remote
	logger    *zap.Logger
	closeOnce sync.Once
}

func NewSession(remote Remote, logger *zap.Logger) *Session {
	store := NewStore()
	return &Session{
		Store:      store,
		Dispatcher: NewDispatcher(store, remote, logger),
		remote:     remote,
		logger:     logger,
	}
}

// Refresh fetches the server's view of a conversation into the cache.
// Callers invoke it after an Invalidate notification, typically for the
// conversation currently on screen.
func (s *Session) Refresh(ctx context.Context, conversationID string) (*models.Conversation, error) {
	conv, err := s.remote.Conversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	s.Store.Set(conversationID, conv)
	return conv.Clone(), nil
}

// Close abandons in-flight sends and drops cached state. In-flight
// network calls settle on their own without touching the store.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.Dispatcher.abandonAll()
		s.Store.clear()
	})
}
