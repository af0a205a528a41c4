package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/halcyon-app/halcyon/internal/chat"
	"github.com/halcyon-app/halcyon/internal/models"
)

// ErrSendInFlight is returned when a send is requested for a
// conversation that already has one pending. Interleaving two optimistic
// appends on one conversation would corrupt ordering and snapshot
// semantics, so the second send is refused rather than queued.
var ErrSendInFlight = errors.New("a send is already in flight for this conversation")

// Sends with no conversation id yet serialize under this key, so two
// concurrent first sends cannot both create conversations.
const newConversationKey = "\x00new"

type SendResult struct {
	ConversationID string
	Reply          string
	Timestamp      time.Time
}

// Dispatcher coordinates one send: validate, snapshot, optimistic
// append, remote call, then commit (invalidate for refetch) or revert
// (exact restore). Per conversation there is at most one in-flight send,
// tracked by a token so a late settlement for an abandoned send never
// mutates the store.
type Dispatcher struct {
	store  *Store
	remote Remote
	logger *zap.Logger

	mu        sync.Mutex
	inflight  map[string]uint64
	lastToken uint64
}

func NewDispatcher(store *Store, remote Remote, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		remote:   remote,
		logger:   logger,
		inflight: make(map[string]uint64),
	}
}

// Send runs one exchange. An empty conversationID asks the server to
// create a new conversation; its assigned id is adopted from the
// response. On any failure after dispatch the optimistic user message is
// rolled back and, because the server may have durably persisted the
// exchange before the failure reached us, the entry is also marked stale
// so the next read reconciles against durable state.
func (d *Dispatcher) Send(ctx context.Context, conversationID, text string) (*SendResult, error) {
	trimmed, err := chat.ValidateMessage(text)
	if err != nil {
		return nil, err
	}

	key := conversationID
	if key == "" {
		key = newConversationKey
	}

	d.mu.Lock()
	if _, busy := d.inflight[key]; busy {
		d.mu.Unlock()
		return nil, ErrSendInFlight
	}
	d.lastToken++
	token := d.lastToken
	d.inflight[key] = token
	d.mu.Unlock()

	txn := beginSend(d.store, conversationID)
	txn.apply(models.Message{
		ConvID:    conversationID,
		Role:      models.RoleUser,
		Content:   trimmed,
		CreatedAt: time.Now().UTC(),
	})

	resp, err := d.remote.Send(ctx, chat.Request{ConversationID: conversationID, Message: trimmed})

	if !d.settle(key, token) {
		// Abandoned while in flight: the snapshot decision for this send
		// is dead. Let the call's outcome surface, touch nothing.
		d.logger.Debug("discarding settlement for abandoned send",
			zap.String("conversation_id", conversationID))
		if err != nil {
			return nil, err
		}
		return &SendResult{ConversationID: resp.ConversationID, Reply: resp.Response, Timestamp: resp.Timestamp}, nil
	}

	if err != nil {
		txn.revert()
		d.logger.Warn("send failed, optimistic message rolled back",
			zap.String("conversation_id", conversationID),
			zap.Error(err))
		return nil, err
	}

	txn.commit(resp.ConversationID)
	return &SendResult{ConversationID: resp.ConversationID, Reply: resp.Response, Timestamp: resp.Timestamp}, nil
}

// settle reports whether this send still owns its in-flight slot, and
// releases it if so.
func (d *Dispatcher) settle(key string, token uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	current, ok := d.inflight[key]
	if !ok || current != token {
		return false
	}
	delete(d.inflight, key)
	return true
}

// Abandon drops the in-flight claim for a conversation, e.g. when the
// subscriber navigated away. The pending network call settles on its
// own; its late result will not be applied to the store. The entry is
// marked stale here, while the caller is still attached: the optimistic
// message stays cached without a rollback decision, and the next reader
// reconciles it against durable state.
func (d *Dispatcher) Abandon(conversationID string) {
	key := conversationID
	if key == "" {
		key = newConversationKey
	}
	d.mu.Lock()
	_, wasInFlight := d.inflight[key]
	delete(d.inflight, key)
	d.mu.Unlock()

	if wasInFlight && conversationID != "" {
		d.store.Invalidate(conversationID)
	}
}

func (d *Dispatcher) abandonAll() {
	d.mu.Lock()
	d.inflight = make(map[string]uint64)
	d.mu.Unlock()
}
