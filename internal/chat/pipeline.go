// Package chat orchestrates the assistant pipeline: embed the user
// message, retrieve similar knowledge passages, assemble a bounded
// prompt, invoke the model, and persist the exchange. Each request runs
// to completion or typed failure; the only shared state is the read-only
// corpus and the durable store behind the Store interface.
package chat

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/halcyon-app/halcyon/internal/models"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query []float32, topK int, threshold float64) ([]models.ScoredPassage, error)
}

type PromptBuilder interface {
	Assemble(passages []models.ScoredPassage, history []models.Message, current string) string
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Store interface {
	AppendExchange(ctx context.Context, convID, ownerID, userText, assistantText string) (string, time.Time, error)
	History(ctx context.Context, convID, ownerID string, limit int) ([]models.Message, error)
}

type Request struct {
	ConversationID string `json:"conversationId,omitempty"`
	Message        string `json:"message"`
}

type Response struct {
	ConversationID string    `json:"conversationId"`
	Response       string    `json:"response"`
	Timestamp      time.Time `json:"timestamp"`
}

type Options struct {
	HistoryTurns   int
	TopK           int
	ScoreThreshold float64
}

type Pipeline struct {
	embedder  Embedder
	retriever Retriever
	prompts   PromptBuilder
	model     Generator
	store     Store
	opts      Options
	logger    *zap.Logger
}

func NewPipeline(embedder Embedder, retriever Retriever, prompts PromptBuilder, model Generator, store Store, opts Options, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		embedder:  embedder,
		retriever: retriever,
		prompts:   prompts,
		model:     model,
		store:     store,
		opts:      opts,
		logger:    logger,
	}
}

// ValidateMessage applies the shared input constraint: non-empty after
// trimming and at most MaxMessageChars. Returns the trimmed text.
func ValidateMessage(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", Validation("empty_message", "message must not be empty")
	}
	if utf8.RuneCountInString(trimmed) > MaxMessageChars {
		return "", Validation("message_too_long", "message exceeds the maximum length")
	}
	return trimmed, nil
}

// Send runs one exchange for the given owner. An empty ConversationID
// creates a new conversation. Embedding or retrieval failure degrades to
// a context-free prompt rather than failing the request; model and
// persistence failures are terminal and typed.
func (p *Pipeline) Send(ctx context.Context, ownerID string, req Request) (*Response, error) {
	text, err := ValidateMessage(req.Message)
	if err != nil {
		return nil, err
	}

	// The history read doubles as the existence and ownership check, so
	// an unknown or foreign conversation fails here before any provider
	// call is spent on it.
	var history []models.Message
	if req.ConversationID != "" {
		history, err = p.store.History(ctx, req.ConversationID, ownerID, p.opts.HistoryTurns)
		if err != nil {
			return nil, Persistence("history_failed", "could not load conversation history", err)
		}
	}

	passages := p.retrievePassages(ctx, text)
	promptText := p.prompts.Assemble(passages, history, text)

	reply, err := p.model.Generate(ctx, promptText)
	if err != nil {
		return nil, err
	}

	convID, ts, err := p.store.AppendExchange(ctx, req.ConversationID, ownerID, text, reply)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) {
			return nil, err
		}
		return nil, Persistence("persist_failed", "could not persist the exchange", err)
	}

	p.logger.Info("exchange completed",
		zap.String("conversation_id", convID),
		zap.Int("passages", len(passages)))

	return &Response{ConversationID: convID, Response: reply, Timestamp: ts}, nil
}

// retrievePassages embeds the message and ranks corpus passages against
// it. Any failure here degrades to no retrieved context; the exchange
// still proceeds on conversation history and the persona alone.
func (p *Pipeline) retrievePassages(ctx context.Context, text string) []models.ScoredPassage {
	vec, err := p.embedder.Embed(ctx, text)
	if err != nil {
		p.logger.Warn("embedding failed, continuing without retrieved context", zap.Error(err))
		return nil
	}

	passages, err := p.retriever.Retrieve(ctx, vec, p.opts.TopK, p.opts.ScoreThreshold)
	if err != nil {
		p.logger.Warn("retrieval failed, continuing without retrieved context", zap.Error(err))
		return nil
	}
	return passages
}
