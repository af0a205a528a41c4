package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/halcyon-app/halcyon/internal/models"
)

// AddKnowledge inserts one embedding record into the corpus. This is the
// ingestion path only; the chat pipeline reads the corpus and never
// writes it.
func (d *Database) AddKnowledge(ctx context.Context, rec *models.EmbeddingRecord) error {
	vec, err := json.Marshal(rec.Vector)
	if err != nil {
		return fmt.Errorf("encode vector: %w", err)
	}
	meta := []byte("{}")
	if len(rec.Metadata) > 0 {
		if meta, err = json.Marshal(rec.Metadata); err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
	}

	now := time.Now().UTC()
	err = d.db.QueryRowContext(ctx, `
        INSERT INTO knowledge (content, corpus, vector, metadata, created_at)
        VALUES (?, ?, ?, ?, ?)
        RETURNING id`,
		rec.Content, rec.Corpus, string(vec), string(meta), now).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("insert knowledge: %w", err)
	}
	rec.CreatedAt = now
	return nil
}

// LoadCorpus returns every embedding record, optionally restricted to the
// given corpus tags. Vectors are decoded from their stored JSON form.
func (d *Database) LoadCorpus(ctx context.Context, corpora ...string) ([]models.EmbeddingRecord, error) {
	query := `
        SELECT id, content, corpus, vector, metadata, created_at
        FROM knowledge`
	args := make([]any, 0, len(corpora))
	if len(corpora) > 0 {
		query += ` WHERE corpus IN (?` + repeatPlaceholder(len(corpora)-1) + `)`
		for _, c := range corpora {
			args = append(args, c)
		}
	}
	query += ` ORDER BY id ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]models.EmbeddingRecord, 0)
	for rows.Next() {
		var rec models.EmbeddingRecord
		var vec, meta string
		if err := rows.Scan(&rec.ID, &rec.Content, &rec.Corpus, &vec, &meta, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(vec), &rec.Vector); err != nil {
			return nil, fmt.Errorf("decode vector for knowledge %d: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(meta), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for knowledge %d: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}
