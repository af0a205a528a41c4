package retrieve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/halcyon-app/halcyon/internal/models"
)

type staticCorpus struct {
	records []models.EmbeddingRecord
	err     error
}

func (c *staticCorpus) LoadCorpus(_ context.Context, _ ...string) ([]models.EmbeddingRecord, error) {
	return c.records, c.err
}

func record(id int64, content string, vec ...float32) models.EmbeddingRecord {
	return models.EmbeddingRecord{ID: id, Content: content, Vector: vec, Corpus: models.CorpusGuides}
}

func TestRetrieveRanksByDescendingSimilarity(t *testing.T) {
	engine := New(&staticCorpus{records: []models.EmbeddingRecord{
		record(1, "orthogonal", 0, 1, 0),
		record(2, "exact", 1, 0, 0),
		record(3, "close", 0.9, 0.1, 0),
	}}, zap.NewNop())

	got, err := engine.Retrieve(context.Background(), []float32{1, 0, 0}, 3, 0.1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "exact", got[0].Record.Content)
	assert.Equal(t, "close", got[1].Record.Content)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestRetrieveAppliesTopK(t *testing.T) {
	engine := New(&staticCorpus{records: []models.EmbeddingRecord{
		record(1, "a", 1, 0),
		record(2, "b", 0.9, 0.1),
		record(3, "c", 0.8, 0.2),
	}}, zap.NewNop())

	got, err := engine.Retrieve(context.Background(), []float32{1, 0}, 2, 0)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestRetrieveEmptyCorpusIsNotAnError(t *testing.T) {
	engine := New(&staticCorpus{}, zap.NewNop())

	got, err := engine.Retrieve(context.Background(), []float32{1, 0, 0}, 5, 0.3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrieveUnrelatedQueryReturnsEmpty(t *testing.T) {
	engine := New(&staticCorpus{records: []models.EmbeddingRecord{
		record(1, "unrelated", 0, 1, 0),
	}}, zap.NewNop())

	got, err := engine.Retrieve(context.Background(), []float32{1, 0, 0}, 5, 0.3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRetrievePropagatesCorpusError(t *testing.T) {
	engine := New(&staticCorpus{err: errors.New("disk gone")}, zap.NewNop())

	_, err := engine.Retrieve(context.Background(), []float32{1}, 5, 0)
	require.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	// Mismatched dimensions and zero vectors score zero instead of NaN.
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{1, 0, 0}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 0}))
}
