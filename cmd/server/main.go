package main

import (
	"net/http"

	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/halcyon-app/halcyon/internal/api"
	"github.com/halcyon-app/halcyon/internal/auth"
	"github.com/halcyon-app/halcyon/internal/chat"
	"github.com/halcyon-app/halcyon/internal/config"
	"github.com/halcyon-app/halcyon/internal/db"
	"github.com/halcyon-app/halcyon/internal/embed"
	"github.com/halcyon-app/halcyon/internal/llm"
	"github.com/halcyon-app/halcyon/internal/prompt"
	"github.com/halcyon-app/halcyon/internal/retrieve"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize database",
			zap.Error(err),
			zap.String("dbPath", cfg.DBPath))
	}
	defer database.Close()

	provider, err := openai.New(
		openai.WithToken(cfg.LLM.APIKey),
		openai.WithBaseURL(cfg.LLM.BaseURL),
		openai.WithModel(cfg.LLM.Model),
		openai.WithEmbeddingModel(cfg.LLM.EmbedModel),
	)
	if err != nil {
		logger.Fatal("failed to initialize model provider", zap.Error(err))
	}

	embedder, err := embed.New(provider, cfg.Chat.EmbedTimeout, logger)
	if err != nil {
		logger.Fatal("failed to initialize embedder", zap.Error(err))
	}

	assembler, err := prompt.NewAssembler(prompt.Persona, cfg.Chat.PromptBudget)
	if err != nil {
		logger.Fatal("failed to initialize prompt assembler", zap.Error(err))
	}

	retryCfg := llm.DefaultRetryConfig()
	retryCfg.MaxRetries = cfg.Chat.MaxRetries
	invoker := llm.New(provider, retryCfg, cfg.Chat.ModelTimeout, logger)

	pipeline := chat.NewPipeline(
		embedder,
		retrieve.New(database, logger),
		assembler,
		invoker,
		database,
		chat.Options{
			HistoryTurns:   cfg.Chat.HistoryTurns,
			TopK:           cfg.Chat.TopK,
			ScoreThreshold: cfg.Chat.ScoreThreshold,
		},
		logger,
	)

	mux := http.NewServeMux()
	api.NewHandler(pipeline, database, logger).Routes(mux)

	logger.Info("starting server", zap.String("addr", cfg.ListenAddr))
	if err := http.ListenAndServe(cfg.ListenAddr, auth.Static(cfg.OwnerID, mux)); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
