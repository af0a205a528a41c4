package llm

import (
	"context"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/halcyon-app/halcyon/internal/chat"
)

// Service wraps the generative model provider. A reply is either
// non-empty text or a typed failure; empty or whitespace provider output
// is never passed off as success.
type Service struct {
	model   llms.Model
	retry   RetryConfig
	timeout time.Duration
	logger  *zap.Logger
}

func New(model llms.Model, retry RetryConfig, timeout time.Duration, logger *zap.Logger) *Service {
	return &Service{model: model, retry: retry, timeout: timeout, logger: logger}
}

// Generate sends the prompt to the provider, retrying transient failures
// with exponential backoff up to the configured attempt bound.
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	delay := s.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		reply, err := s.generateOnce(ctx, prompt)
		if err == nil {
			s.logger.Debug("completion generated",
				zap.Int("attempts", attempt+1),
				zap.Duration("elapsed", time.Since(start)))
			return reply, nil
		}
		lastErr = err

		if !retryableError(err) {
			return "", chat.Provider("model_failed", "model provider returned a non-retryable error", err)
		}
		if attempt == s.retry.MaxRetries {
			break
		}

		s.logger.Debug("retrying model call",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return "", chat.Transient("model_cancelled", "model call cancelled", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > s.retry.MaxInterval {
			delay = s.retry.MaxInterval
		}
	}

	return "", chat.Provider("model_retries_exhausted", "model provider failed after all retries", lastErr)
}

func (s *Service) generateOnce(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	completion, err := llms.GenerateFromSinglePrompt(ctx, s.model, prompt)
	if err != nil {
		return "", err
	}
	completion = strings.TrimSpace(completion)
	if completion == "" {
		return "", errEmptyCompletion
	}
	return completion, nil
}
