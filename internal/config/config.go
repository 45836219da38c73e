package config

import (
	"fmt"
	"time"

	"github.com/rhizhq/rhiz/internal/scoring"
	"github.com/rhizhq/rhiz/internal/trust"
)

type Config struct {
	Server   ServerConfig
	Ollama   OllamaConfig
	Storage  StorageConfig
	Log      LogConfig
	Trust    TrustConfig
	Matching MatchingConfig
	Outreach OutreachConfig
}

type ServerConfig struct {
	Port    int
	OwnerID string
}

type OllamaConfig struct {
	BaseURL    string
	ChatModel  string
	EmbedModel string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

// TrustConfig holds the scoring windows in whole days or hours, as they are
// written in config files.
type TrustConfig struct {
	ResponseWindowDays    int
	FrequencyWindowDays   int
	ReciprocityWindowDays int
	SentimentWindowDays   int
	MaxResponseGapHours   int
	RecomputeSchedule     string
	RecomputeConcurrency  int
}

type MatchingConfig struct {
	TopK     int
	CacheTTL string
}

type OutreachConfig struct {
	QuietDays int
}

const day = 24 * time.Hour

// Scoring converts the configured windows into a scoring configuration.
func (t TrustConfig) Scoring() scoring.Config {
	return scoring.Config{
		ResponseWindow:    time.Duration(t.ResponseWindowDays) * day,
		FrequencyWindow:   time.Duration(t.FrequencyWindowDays) * day,
		ReciprocityWindow: time.Duration(t.ReciprocityWindowDays) * day,
		SentimentWindow:   time.Duration(t.SentimentWindowDays) * day,
		MaxResponseGap:    time.Duration(t.MaxResponseGapHours) * time.Hour,
	}
}

// CacheDuration parses CacheTTL. Validate has already rejected bad values.
func (m MatchingConfig) CacheDuration() time.Duration {
	d, err := time.ParseDuration(m.CacheTTL)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

func defaults() Config {
	sc := scoring.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Port:    4100,
			OwnerID: "local",
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			ChatModel:  "llama3.2",
			EmbedModel: "nomic-embed-text",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Trust: TrustConfig{
			ResponseWindowDays:    int(sc.ResponseWindow / day),
			FrequencyWindowDays:   int(sc.FrequencyWindow / day),
			ReciprocityWindowDays: int(sc.ReciprocityWindow / day),
			SentimentWindowDays:   int(sc.SentimentWindow / day),
			MaxResponseGapHours:   int(sc.MaxResponseGap / time.Hour),
			RecomputeSchedule:     trust.DefaultSchedule,
			RecomputeConcurrency:  4,
		},
		Matching: MatchingConfig{
			TopK:     10,
			CacheTTL: "10m",
		},
		Outreach: OutreachConfig{
			QuietDays: 21,
		},
	}
}

// Load reads configuration from the platform-native backend, then applies
// RHIZ_* environment overrides.
//
// On macOS the backend is UserDefaults (domain: com.rhiz.app).
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/rhiz/config.json.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	}
	if c.Server.OwnerID == "" {
		return fmt.Errorf("invalid config: server.owner_id must not be empty")
	}
	for key, v := range map[string]int{
		"trust.response_window_days":    c.Trust.ResponseWindowDays,
		"trust.frequency_window_days":   c.Trust.FrequencyWindowDays,
		"trust.reciprocity_window_days": c.Trust.ReciprocityWindowDays,
		"trust.sentiment_window_days":   c.Trust.SentimentWindowDays,
		"trust.max_response_gap_hours":  c.Trust.MaxResponseGapHours,
		"trust.recompute_concurrency":   c.Trust.RecomputeConcurrency,
		"matching.top_k":                c.Matching.TopK,
	} {
		if v <= 0 {
			return fmt.Errorf("invalid config: %s must be positive, got %d", key, v)
		}
	}
	if c.Outreach.QuietDays < 0 {
		return fmt.Errorf("invalid config: outreach.quiet_days must not be negative")
	}
	if err := trust.ValidateSchedule(c.Trust.RecomputeSchedule); err != nil {
		return fmt.Errorf("invalid config: trust.recompute_schedule: %w", err)
	}
	if _, err := time.ParseDuration(c.Matching.CacheTTL); err != nil {
		return fmt.Errorf("invalid config: matching.cache_ttl: %w", err)
	}
	return nil
}
