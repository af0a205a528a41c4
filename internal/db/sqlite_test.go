package db

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-app/halcyon/internal/models"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestAppendExchangeCreatesConversation(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	convID, ts, err := database.AppendExchange(ctx, "", "alice", "How do I start my manifestation journey?", "Begin with a single clear intention.")
	require.NoError(t, err)
	require.NotEmpty(t, convID)
	require.False(t, ts.IsZero())

	conv, err := database.GetConversation(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, "alice", conv.OwnerID)
	assert.Equal(t, "How do I start my manifestation journey?", conv.Title)
	require.Len(t, conv.Messages, 2)
	assert.Equal(t, models.RoleUser, conv.Messages[0].Role)
	assert.Equal(t, "How do I start my manifestation journey?", conv.Messages[0].Content)
	assert.Equal(t, models.RoleAssistant, conv.Messages[1].Role)
	assert.NotEmpty(t, conv.Messages[1].Content)
}

func TestAppendExchangePreservesSendOrder(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	convID, _, err := database.AppendExchange(ctx, "", "alice", "first question", "first answer")
	require.NoError(t, err)
	_, _, err = database.AppendExchange(ctx, convID, "alice", "second question", "second answer")
	require.NoError(t, err)

	conv, err := database.GetConversation(ctx, convID)
	require.NoError(t, err)
	require.Len(t, conv.Messages, 4)
	contents := []string{"first question", "first answer", "second question", "second answer"}
	for i, want := range contents {
		assert.Equal(t, want, conv.Messages[i].Content)
	}
	for i := 0; i < len(conv.Messages); i += 2 {
		assert.Equal(t, models.RoleUser, conv.Messages[i].Role)
		assert.Equal(t, models.RoleAssistant, conv.Messages[i+1].Role)
	}
}

func TestAppendExchangeUnknownConversation(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	_, _, err := database.AppendExchange(ctx, "no-such-id", "alice", "hello", "hi")
	require.ErrorIs(t, err, ErrConversationNotFound)

	// Nothing may leak out of the aborted transaction.
	_, err = database.GetConversation(ctx, "no-such-id")
	require.ErrorIs(t, err, ErrConversationNotFound)
}

func TestAppendExchangeWrongOwner(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	convID, _, err := database.AppendExchange(ctx, "", "alice", "hello", "hi")
	require.NoError(t, err)

	_, _, err = database.AppendExchange(ctx, convID, "mallory", "mine now", "no")
	require.ErrorIs(t, err, ErrConversationNotFound)

	conv, err := database.GetConversation(ctx, convID)
	require.NoError(t, err)
	assert.Len(t, conv.Messages, 2)
}

func TestHistoryChronologicalWithLimit(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	convID, _, err := database.AppendExchange(ctx, "", "alice", "q1", "a1")
	require.NoError(t, err)
	_, _, err = database.AppendExchange(ctx, convID, "alice", "q2", "a2")
	require.NoError(t, err)
	_, _, err = database.AppendExchange(ctx, convID, "alice", "q3", "a3")
	require.NoError(t, err)

	history, err := database.History(ctx, convID, "alice", 4)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "q2", history[0].Content)
	assert.Equal(t, "a2", history[1].Content)
	assert.Equal(t, "q3", history[2].Content)
	assert.Equal(t, "a3", history[3].Content)
}

func TestHistoryReportsUnknownOrForeignConversation(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	_, err := database.History(ctx, "no-such-id", "alice", 10)
	require.ErrorIs(t, err, ErrConversationNotFound)

	convID, _, err := database.AppendExchange(ctx, "", "alice", "hello", "hi")
	require.NoError(t, err)
	_, err = database.History(ctx, convID, "mallory", 10)
	require.ErrorIs(t, err, ErrConversationNotFound)
}

func TestListConversationsByRecency(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	first, _, err := database.AppendExchange(ctx, "", "alice", "older topic", "ok")
	require.NoError(t, err)
	second, _, err := database.AppendExchange(ctx, "", "alice", "newer topic", "ok")
	require.NoError(t, err)
	_, _, err = database.AppendExchange(ctx, "", "bob", "someone else", "ok")
	require.NoError(t, err)

	// Touch the older conversation so it becomes the most recent.
	_, _, err = database.AppendExchange(ctx, first, "alice", "follow-up", "ok")
	require.NoError(t, err)

	conversations, err := database.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, first, conversations[0].ID)
	assert.Equal(t, second, conversations[1].ID)
}

func TestDeleteAndRenameConversation(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	convID, _, err := database.AppendExchange(ctx, "", "alice", "hello", "hi")
	require.NoError(t, err)

	require.NoError(t, database.RenameConversation(ctx, convID, "alice", "Morning check-in"))
	conv, err := database.GetConversation(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, "Morning check-in", conv.Title)

	require.NoError(t, database.DeleteConversation(ctx, convID, "alice"))
	_, err = database.GetConversation(ctx, convID)
	require.ErrorIs(t, err, ErrConversationNotFound)

	require.ErrorIs(t, database.DeleteConversation(ctx, convID, "alice"), ErrConversationNotFound)
	require.ErrorIs(t, database.RenameConversation(ctx, convID, "alice", "x"), ErrConversationNotFound)
}

func TestDeleteAndRenameScopeToOwner(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	convID, _, err := database.AppendExchange(ctx, "", "alice", "hello", "hi")
	require.NoError(t, err)

	require.ErrorIs(t, database.RenameConversation(ctx, convID, "mallory", "hijacked"), ErrConversationNotFound)
	require.ErrorIs(t, database.DeleteConversation(ctx, convID, "mallory"), ErrConversationNotFound)

	// Alice's conversation is intact.
	conv, err := database.GetConversation(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, "hello", conv.Title)
	assert.Len(t, conv.Messages, 2)
}

func TestKnowledgeRoundTripAndFilter(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	rec := &models.EmbeddingRecord{
		Content:  "The 3-6-9 method pairs written intention with repetition.",
		Corpus:   models.CorpusGuides,
		Vector:   []float32{0.1, 0.2, 0.3},
		Metadata: map[string]string{"source": "guides/369.md"},
	}
	require.NoError(t, database.AddKnowledge(ctx, rec))
	require.NotZero(t, rec.ID)

	other := &models.EmbeddingRecord{
		Content: "Breathe in for four counts.",
		Corpus:  models.CorpusMeditations,
		Vector:  []float32{0.9, 0.1, 0.0},
	}
	require.NoError(t, database.AddKnowledge(ctx, other))

	all, err := database.LoadCorpus(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, all[0].Vector)
	assert.Equal(t, "guides/369.md", all[0].Metadata["source"])

	guides, err := database.LoadCorpus(ctx, models.CorpusGuides)
	require.NoError(t, err)
	require.Len(t, guides, 1)
	assert.Equal(t, rec.Content, guides[0].Content)
}

func TestDeriveTitle(t *testing.T) {
	assert.Equal(t, "short", deriveTitle("  short  "))
	long := "this opening message is quite a bit longer than sixty characters in total"
	title := deriveTitle(long)
	assert.LessOrEqual(t, len(title), 64)
	assert.Contains(t, title, "this opening message")
}

func TestDeriveTitleCutsAtRuneBoundary(t *testing.T) {
	// No spaces, all multi-byte runes: the cut must not split one.
	long := strings.Repeat("愛", 80)
	title := deriveTitle(long)
	assert.True(t, utf8.ValidString(title))
	assert.Equal(t, strings.Repeat("愛", 60)+"…", title)

	mixed := strings.Repeat("héllo wörld ", 10)
	assert.True(t, utf8.ValidString(deriveTitle(mixed)))
}
