// Package embed turns raw text into fixed-size vectors via the
// configured embedding provider. Policy on failure (fail the request vs.
// degrade to a context-free prompt) belongs to the caller; this package
// only reports typed success or failure.
package embed

import (
	"context"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"go.uber.org/zap"

	"github.com/halcyon-app/halcyon/internal/chat"
)

type Service struct {
	embedder embeddings.Embedder
	timeout  time.Duration
	logger   *zap.Logger
}

// New wraps a provider client (anything langchaingo can embed with, e.g.
// the openai client) with a per-call timeout.
func New(client embeddings.EmbedderClient, timeout time.Duration, logger *zap.Logger) (*Service, error) {
	embedder, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, err
	}
	return &Service{embedder: embedder, timeout: timeout, logger: logger}, nil
}

func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	vec, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, chat.Transient("embed_failed", "embedding provider call failed", err)
	}
	if len(vec) == 0 {
		return nil, chat.Transient("embed_empty", "embedding provider returned an empty vector", nil)
	}

	s.logger.Debug("embedded query",
		zap.Int("dimensions", len(vec)),
		zap.Duration("elapsed", time.Since(start)))
	return vec, nil
}
