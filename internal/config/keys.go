package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rhizhq/rhiz/internal/trust"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
	// check validates a raw value before it is written with SetKey.
	check func(raw string) error
}

func envName(key string) string {
	return "RHIZ_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: envName("server.port"),
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.owner_id", typ: kString, env: envName("server.owner_id"),
		apply:   func(cfg *Config, v any) { cfg.Server.OwnerID = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.OwnerID },
	},
	{
		key: "ollama.base_url", typ: kString, env: envName("ollama.base_url"),
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.chat_model", typ: kString, env: envName("ollama.chat_model"),
		apply:   func(cfg *Config, v any) { cfg.Ollama.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.ChatModel },
	},
	{
		key: "ollama.embed_model", typ: kString, env: envName("ollama.embed_model"),
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "storage.data_dir", typ: kString, env: envName("storage.data_dir"),
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: envName("log.level"),
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "trust.response_window_days", typ: kInt, env: envName("trust.response_window_days"),
		apply:   func(cfg *Config, v any) { cfg.Trust.ResponseWindowDays = v.(int) },
		extract: func(cfg Config) any { return cfg.Trust.ResponseWindowDays },
	},
	{
		key: "trust.frequency_window_days", typ: kInt, env: envName("trust.frequency_window_days"),
		apply:   func(cfg *Config, v any) { cfg.Trust.FrequencyWindowDays = v.(int) },
		extract: func(cfg Config) any { return cfg.Trust.FrequencyWindowDays },
	},
	{
		key: "trust.reciprocity_window_days", typ: kInt, env: envName("trust.reciprocity_window_days"),
		apply:   func(cfg *Config, v any) { cfg.Trust.ReciprocityWindowDays = v.(int) },
		extract: func(cfg Config) any { return cfg.Trust.ReciprocityWindowDays },
	},
	{
		key: "trust.sentiment_window_days", typ: kInt, env: envName("trust.sentiment_window_days"),
		apply:   func(cfg *Config, v any) { cfg.Trust.SentimentWindowDays = v.(int) },
		extract: func(cfg Config) any { return cfg.Trust.SentimentWindowDays },
	},
	{
		key: "trust.max_response_gap_hours", typ: kInt, env: envName("trust.max_response_gap_hours"),
		apply:   func(cfg *Config, v any) { cfg.Trust.MaxResponseGapHours = v.(int) },
		extract: func(cfg Config) any { return cfg.Trust.MaxResponseGapHours },
	},
	{
		key: "trust.recompute_schedule", typ: kString, env: envName("trust.recompute_schedule"),
		apply:   func(cfg *Config, v any) { cfg.Trust.RecomputeSchedule = v.(string) },
		extract: func(cfg Config) any { return cfg.Trust.RecomputeSchedule },
		check:   trust.ValidateSchedule,
	},
	{
		key: "trust.recompute_concurrency", typ: kInt, env: envName("trust.recompute_concurrency"),
		apply:   func(cfg *Config, v any) { cfg.Trust.RecomputeConcurrency = v.(int) },
		extract: func(cfg Config) any { return cfg.Trust.RecomputeConcurrency },
	},
	{
		key: "matching.top_k", typ: kInt, env: envName("matching.top_k"),
		apply:   func(cfg *Config, v any) { cfg.Matching.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Matching.TopK },
	},
	{
		key: "matching.cache_ttl", typ: kString, env: envName("matching.cache_ttl"),
		apply:   func(cfg *Config, v any) { cfg.Matching.CacheTTL = v.(string) },
		extract: func(cfg Config) any { return cfg.Matching.CacheTTL },
		check: func(raw string) error {
			_, err := time.ParseDuration(raw)
			return err
		},
	},
	{
		key: "outreach.quiet_days", typ: kInt, env: envName("outreach.quiet_days"),
		apply:   func(cfg *Config, v any) { cfg.Outreach.QuietDays = v.(int) },
		extract: func(cfg Config) any { return cfg.Outreach.QuietDays },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				slog.Warn("ignoring non-integer environment override", "env", s.env, "value", raw, "error", err)
			}
		}
	}
}
