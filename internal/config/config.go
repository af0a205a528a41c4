package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries every tunable the server needs. Values come from
// HALCYON_* environment variables with the defaults below, e.g.
// HALCYON_LLM_BASE_URL overrides llm.base_url.
type Config struct {
	ListenAddr string
	DBPath     string
	OwnerID    string

	LLM struct {
		BaseURL    string
		APIKey     string
		Model      string
		EmbedModel string
	}

	Chat struct {
		HistoryTurns   int
		TopK           int
		ScoreThreshold float64
		PromptBudget   int
		EmbedTimeout   time.Duration
		ModelTimeout   time.Duration
		MaxRetries     int
	}
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HALCYON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", ":8100")
	v.SetDefault("db_path", "halcyon.db")
	v.SetDefault("owner_id", "local")

	v.SetDefault("llm.base_url", "http://localhost:11434/v1/")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "llama3.1:8b")
	v.SetDefault("llm.embed_model", "nomic-embed-text")

	v.SetDefault("chat.history_turns", 10)
	v.SetDefault("chat.top_k", 4)
	v.SetDefault("chat.score_threshold", 0.3)
	v.SetDefault("chat.prompt_budget", 3000)
	v.SetDefault("chat.embed_timeout", 10*time.Second)
	v.SetDefault("chat.model_timeout", 30*time.Second)
	v.SetDefault("chat.max_retries", 3)

	cfg := &Config{}
	cfg.ListenAddr = v.GetString("listen_addr")
	cfg.DBPath = v.GetString("db_path")
	cfg.OwnerID = v.GetString("owner_id")

	cfg.LLM.BaseURL = v.GetString("llm.base_url")
	cfg.LLM.APIKey = v.GetString("llm.api_key")
	cfg.LLM.Model = v.GetString("llm.model")
	cfg.LLM.EmbedModel = v.GetString("llm.embed_model")

	cfg.Chat.HistoryTurns = v.GetInt("chat.history_turns")
	cfg.Chat.TopK = v.GetInt("chat.top_k")
	cfg.Chat.ScoreThreshold = v.GetFloat64("chat.score_threshold")
	cfg.Chat.PromptBudget = v.GetInt("chat.prompt_budget")
	cfg.Chat.EmbedTimeout = v.GetDuration("chat.embed_timeout")
	cfg.Chat.ModelTimeout = v.GetDuration("chat.model_timeout")
	cfg.Chat.MaxRetries = v.GetInt("chat.max_retries")

	return cfg, nil
}
