package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the assistant
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Tools     ToolsConfig     `mapstructure:"tools"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// PipelineConfig tunes the router/planner/retriever/reconciler stages.
type PipelineConfig struct {
	// Lexical cues that flip Intent.NeedsLiveData on.
	LiveTriggerPhrases []string `mapstructure:"live_trigger_phrases"`
	// ForceLiveData overrides the trigger-phrase policy: "on", "off" or "".
	ForceLiveData string `mapstructure:"force_live_data"`

	TopN           int           `mapstructure:"top_n"`
	CatalogLimit   int           `mapstructure:"catalog_limit"`
	WebLimit       int           `mapstructure:"web_limit"`
	CatalogTimeout time.Duration `mapstructure:"catalog_timeout"`
	WebTimeout     time.Duration `mapstructure:"web_timeout"`
}

func (p PipelineConfig) Validate() error {
	if p.TopN <= 0 {
		return fmt.Errorf("pipeline.top_n must be > 0")
	}
	if p.WebLimit >= p.CatalogLimit {
		return fmt.Errorf("pipeline.web_limit must be smaller than pipeline.catalog_limit")
	}
	switch p.ForceLiveData {
	case "", "on", "off":
	default:
		return fmt.Errorf("pipeline.force_live_data must be \"on\", \"off\" or empty")
	}
	return nil
}

// ToolsConfig configures the two registered search tools.
type ToolsConfig struct {
	Catalog CatalogToolConfig `mapstructure:"catalog"`
	Web     WebToolConfig     `mapstructure:"web"`
}

// CatalogToolConfig points rag.search at the private product index.
type CatalogToolConfig struct {
	ProductsPath string `mapstructure:"products_path"`
}

// WebToolConfig configures the live web.search provider.
type WebToolConfig struct {
	Provider    string        `mapstructure:"provider"` // serper or brave
	APIKey      string        `mapstructure:"api_key"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	MinInterval time.Duration `mapstructure:"min_interval"`
}

func (w WebToolConfig) Validate() error {
	switch w.Provider {
	case "", "serper", "brave":
		return nil
	default:
		return fmt.Errorf("tools.web.provider must be serper or brave")
	}
}

// LLMConfig contains LLM provider configuration for the model-backed stages.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"` // openai; empty disables model-backed stages
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// StorageConfig contains optional Postgres (turn log) and Redis (web cache) settings.
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

func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) != ""
}

// DSN builds a connection string from either the url or the discrete fields.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.DBName, ssl)
}

type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
	DB   int    `mapstructure:"db"`
}

func (r RedisConfig) Enabled() bool { return strings.TrimSpace(r.Host) != "" }

func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

// TelemetryConfig contains monitoring settings
type TelemetryConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MetricsPort int  `mapstructure:"metrics_port"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

// LoadConfig loads config from file; a missing file falls back to defaults
// plus VOICESHOP_* environment overrides.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", 30*time.Second)
	viper.SetDefault("server.address", ":10010")
	viper.SetDefault("pipeline.live_trigger_phrases", []string{
		"latest", "current", "right now", "today's price", "today", "now",
	})
	viper.SetDefault("pipeline.top_n", 5)
	viper.SetDefault("pipeline.catalog_limit", 5)
	viper.SetDefault("pipeline.web_limit", 3)
	viper.SetDefault("pipeline.catalog_timeout", 3*time.Second)
	viper.SetDefault("pipeline.web_timeout", 2500*time.Millisecond)
	viper.SetDefault("tools.catalog.products_path", "data/products.json")
	viper.SetDefault("tools.web.provider", "serper")
	viper.SetDefault("tools.web.cache_ttl", 180*time.Second)
	viper.SetDefault("tools.web.min_interval", time.Second)
	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.0)
	viper.SetDefault("llm.max_tokens", 2048)
	viper.SetDefault("llm.timeout", 30*time.Second)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("VOICESHOP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Pipeline.Validate(); err != nil {
		panic(err)
	}
	if err := config.Tools.Web.Validate(); err != nil {
		panic(err)
	}
	if err := config.Telemetry.Validate(); err != nil {
		panic(err)
	}
	return &config
}
