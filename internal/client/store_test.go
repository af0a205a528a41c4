package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-app/halcyon/internal/models"
)

func conversation(id string, contents ...string) *models.Conversation {
	conv := &models.Conversation{ID: id, OwnerID: "alice", Messages: []models.Message{}}
	for i, content := range contents {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		conv.Messages = append(conv.Messages, models.Message{Role: role, Content: content, CreatedAt: time.Now()})
	}
	return conv
}

func TestStoreGetMiss(t *testing.T) {
	store := NewStore()
	_, ok := store.Get("nope")
	assert.False(t, ok)
}

func TestStoreSetThenGetReturnsCopy(t *testing.T) {
	store := NewStore()
	store.Set("c1", conversation("c1", "hello"))

	got, ok := store.Get("c1")
	require.True(t, ok)
	got.Messages[0].Content = "mutated"
	got.Messages = append(got.Messages, models.Message{Role: models.RoleUser, Content: "extra"})

	again, ok := store.Get("c1")
	require.True(t, ok)
	require.Len(t, again.Messages, 1)
	assert.Equal(t, "hello", again.Messages[0].Content)
}

func TestStoreAppend(t *testing.T) {
	store := NewStore()
	store.Set("c1", conversation("c1", "hello"))
	store.Append("c1", models.Message{Role: models.RoleAssistant, Content: "hi"})

	got, _ := store.Get("c1")
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "hi", got.Messages[1].Content)
}

func TestStoreAppendMissIsNoop(t *testing.T) {
	store := NewStore()
	store.Append("absent", models.Message{Role: models.RoleUser, Content: "lost"})
	_, ok := store.Get("absent")
	assert.False(t, ok)
}

func TestStoreInvalidateMarksStaleUntilSet(t *testing.T) {
	store := NewStore()
	store.Set("c1", conversation("c1", "hello"))

	store.Invalidate("c1")
	assert.True(t, store.IsStale("c1"))
	// The cached value stays readable while stale.
	_, ok := store.Get("c1")
	assert.True(t, ok)

	store.Set("c1", conversation("c1", "hello", "hi"))
	assert.False(t, store.IsStale("c1"))
}

func TestStoreInvalidateWorksForUnknownID(t *testing.T) {
	store := NewStore()
	store.Invalidate("new-from-server")
	assert.True(t, store.IsStale("new-from-server"))
}

func TestStoreWatchSeesChanges(t *testing.T) {
	store := NewStore()
	var seen []string
	store.Watch(func(id string) { seen = append(seen, id) })

	store.Set("c1", conversation("c1"))
	store.Append("c1", models.Message{Role: models.RoleUser, Content: "x"})
	store.Append("absent", models.Message{Role: models.RoleUser, Content: "y"})
	store.Invalidate("c2")

	assert.Equal(t, []string{"c1", "c1", "c2"}, seen)
}
