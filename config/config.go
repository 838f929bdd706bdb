package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the deep-analysis engine.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address       string `mapstructure:"address"`
	MaxConcurrent int    `mapstructure:"max_concurrent"`
}

// LLMConfig contains planner backend configurations.
type LLMConfig struct {
	// Backend selects the primary planner backend: structured, cli or text.
	Backend string `mapstructure:"backend"`
	// FallbackBackend is constructed instead when the primary cannot be built.
	FallbackBackend string           `mapstructure:"fallback_backend"`
	Structured      CompletionConfig `mapstructure:"structured"`
	Text            CompletionConfig `mapstructure:"text"`
	CLI             CLIBackendConfig `mapstructure:"cli"`
}

// CompletionConfig describes a chat-completion style backend.
type CompletionConfig struct {
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	BaseURL     string        `mapstructure:"base_url"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// CLIBackendConfig describes the subprocess reasoning backend.
type CLIBackendConfig struct {
	Binary  string        `mapstructure:"binary"`
	Args    []string      `mapstructure:"args"`
	WorkDir string        `mapstructure:"work_dir"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AnalysisConfig controls the orchestration graph.
type AnalysisConfig struct {
	MaxToolCalls    int      `mapstructure:"max_tool_calls"`
	DailyToolBudget int      `mapstructure:"daily_tool_budget"`
	NeverSearch     []string `mapstructure:"never_search"`
	ForceSearch     []string `mapstructure:"force_search"`
	MemoryLimit     int      `mapstructure:"memory_limit"`
}

// ToolsConfig contains evidence tool credentials and endpoints.
type ToolsConfig struct {
	Search   SearchToolConfig   `mapstructure:"search"`
	Price    PriceToolConfig    `mapstructure:"price"`
	Macro    MacroToolConfig    `mapstructure:"macro"`
	Onchain  OnchainToolConfig  `mapstructure:"onchain"`
	Protocol ProtocolToolConfig `mapstructure:"protocol"`
}

type SearchToolConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Endpoint   string `mapstructure:"endpoint"`
	MaxResults int    `mapstructure:"max_results"`
}

type PriceToolConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
}

type MacroToolConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
}

type OnchainToolConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
}

type ProtocolToolConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

// StorageConfig contains signal persistence settings.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN assembles a postgres connection string from the configured parts.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig reads configuration from file and environment.
// Environment variables use the DEEPSIGNAL_ prefix (DEEPSIGNAL_LLM_TEXT_API_KEY etc).
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("general.default_timeout", 60*time.Second)
	v.SetDefault("server.address", ":10020")
	v.SetDefault("server.max_concurrent", 8)
	v.SetDefault("llm.backend", "structured")
	v.SetDefault("llm.fallback_backend", "text")
	v.SetDefault("llm.structured.temperature", 0.2)
	v.SetDefault("llm.text.temperature", 0.1)
	v.SetDefault("llm.cli.timeout", 120*time.Second)
	v.SetDefault("analysis.max_tool_calls", 3)
	v.SetDefault("analysis.daily_tool_budget", 200)
	v.SetDefault("analysis.never_search", []string{"governance", "airdrop", "other"})
	v.SetDefault("analysis.force_search", []string{"hack", "depeg", "regulation", "listing"})
	v.SetDefault("analysis.memory_limit", 5)
	v.SetDefault("tools.search.max_results", 8)
	v.SetDefault("tools.protocol.endpoint", "https://api.llama.fi")

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("DEEPSIGNAL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine: defaults plus environment carry the config.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applyEnvCredentials(&cfg)
	return &cfg, nil
}

// applyEnvCredentials fills well-known credential env vars when the file left them empty.
func applyEnvCredentials(cfg *Config) {
	if cfg.LLM.Structured.APIKey == "" {
		cfg.LLM.Structured.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.LLM.Text.APIKey == "" {
		cfg.LLM.Text.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Tools.Search.APIKey == "" {
		cfg.Tools.Search.APIKey = os.Getenv("SERPER_API_KEY")
	}
	if cfg.Tools.Price.APIKey == "" {
		cfg.Tools.Price.APIKey = os.Getenv("COINGECKO_API_KEY")
	}
}
