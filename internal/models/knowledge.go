package models

import "time"

// Knowledge corpora the retrieval engine draws from. Records are written
// by the ingestion path only; the chat pipeline never mutates them.
const (
	CorpusAffirmations = "affirmations"
	CorpusMeditations  = "meditations"
	CorpusWorksheets   = "worksheets"
	CorpusGuides       = "guides"
)

type EmbeddingRecord struct {
	ID        int64             `json:"id"`
	Content   string            `json:"content"`
	Vector    []float32         `json:"-"`
	Corpus    string            `json:"corpus"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// ScoredPassage pairs a corpus record with its similarity to a query.
// Results are always handed around sorted by descending score.
type ScoredPassage struct {
	Record EmbeddingRecord `json:"record"`
	Score  float64         `json:"score"`
}
