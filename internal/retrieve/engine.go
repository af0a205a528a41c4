// Package retrieve ranks knowledge passages by cosine similarity to a
// query vector. An empty result is a valid outcome, not an error: the
// pipeline then answers from conversation context and the persona alone.
package retrieve

import (
	"context"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/halcyon-app/halcyon/internal/models"
)

// CorpusSource supplies the candidate records. Satisfied by *db.Database.
type CorpusSource interface {
	LoadCorpus(ctx context.Context, corpora ...string) ([]models.EmbeddingRecord, error)
}

type Engine struct {
	corpus CorpusSource
	logger *zap.Logger
}

func New(corpus CorpusSource, logger *zap.Logger) *Engine {
	return &Engine{corpus: corpus, logger: logger}
}

// Retrieve returns at most topK passages scoring at or above threshold,
// sorted by descending score. Ties break on record id so ranking is
// deterministic.
func (e *Engine) Retrieve(ctx context.Context, query []float32, topK int, threshold float64) ([]models.ScoredPassage, error) {
	if topK <= 0 {
		return []models.ScoredPassage{}, nil
	}

	records, err := e.corpus.LoadCorpus(ctx)
	if err != nil {
		return nil, err
	}

	scored := make([]models.ScoredPassage, 0, len(records))
	for _, rec := range records {
		score := cosineSimilarity(query, rec.Vector)
		if score >= threshold {
			scored = append(scored, models.ScoredPassage{Record: rec, Score: score})
		}
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Record.ID < scored[j].Record.ID
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}

	e.logger.Debug("retrieved passages",
		zap.Int("candidates", len(records)),
		zap.Int("matches", len(scored)))
	return scored, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
