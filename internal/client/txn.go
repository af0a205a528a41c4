package client

import "github.com/halcyon-app/halcyon/internal/models"

// sendTxn is the three-phase transaction around one optimistic send:
// snapshot at begin, apply the optimistic append, then exactly one of
// commit or revert. It holds the only copy of the pre-send state and
// lives for the duration of a single in-flight send.
type sendTxn struct {
	store    *Store
	convID   string
	snapshot *models.Conversation
	had      bool
	applied  bool
}

// beginSend snapshots the current conversation state. A send with no
// conversation id has nothing to snapshot: there is no local entry a
// failure could corrupt.
func beginSend(store *Store, convID string) *sendTxn {
	txn := &sendTxn{store: store, convID: convID}
	if convID != "" {
		txn.snapshot, txn.had = store.Get(convID)
	}
	return txn
}

func (t *sendTxn) apply(msg models.Message) {
	if t.convID == "" {
		return
	}
	t.store.Append(t.convID, msg)
	t.applied = true
}

// commit discards the snapshot and marks the confirmed entry stale so
// the next read refetches the server's view, which includes the
// assistant reply.
func (t *sendTxn) commit(assignedID string) {
	t.snapshot = nil
	id := t.convID
	if id == "" {
		id = assignedID
	}
	if id != "" {
		t.store.Invalidate(id)
	}
}

// revert restores the entry to the pre-send snapshot exactly, then marks
// it stale: the failure may have happened after the server durably
// persisted the exchange, and the next read reconciles that.
func (t *sendTxn) revert() {
	if !t.applied {
		return
	}
	if t.had {
		t.store.Set(t.convID, t.snapshot)
	}
	t.store.Invalidate(t.convID)
	t.snapshot = nil
}
