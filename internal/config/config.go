package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      App      `mapstructure:"app"`
	AI       AI       `mapstructure:"ai"`
	Search   Search   `mapstructure:"search"`
	Research Research `mapstructure:"research"`
	Cache    Cache    `mapstructure:"cache"`
	Logging  Logging  `mapstructure:"logging"`
}

// App holds general application configuration
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// AI holds AI/LLM configuration
type AI struct {
	Gemini GeminiConfig `mapstructure:"gemini"`
}

// GeminiConfig holds Google Gemini configuration
type GeminiConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Timeout     string  `mapstructure:"timeout"`
	MaxTokens   int32   `mapstructure:"max_tokens"`
	Temperature float32 `mapstructure:"temperature"`
}

// Search holds search provider configuration
type Search struct {
	DefaultProvider string          `mapstructure:"default_provider"`
	MaxResults      int             `mapstructure:"max_results"`
	Timeout         string          `mapstructure:"timeout"`
	Language        string          `mapstructure:"language"`
	Providers       SearchProviders `mapstructure:"providers"`
}

// SearchProviders holds configuration for all search providers
type SearchProviders struct {
	Google     GoogleSearchConfig `mapstructure:"google"`
	SerpAPI    SerpAPIConfig      `mapstructure:"serpapi"`
	DuckDuckGo DuckDuckGoConfig   `mapstructure:"duckduckgo"`
}

// GoogleSearchConfig holds Google Custom Search configuration
type GoogleSearchConfig struct {
	APIKey   string `mapstructure:"api_key"`
	SearchID string `mapstructure:"search_id"`
}

// SerpAPIConfig holds SerpAPI configuration
type SerpAPIConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// DuckDuckGoConfig holds DuckDuckGo configuration
type DuckDuckGoConfig struct {
	RateLimit string `mapstructure:"rate_limit"`
}

// Research holds research orchestration configuration
type Research struct {
	ResultsPerQuery       int    `mapstructure:"results_per_query"`
	RetryAttempts         int    `mapstructure:"retry_attempts"`
	Timeout               string `mapstructure:"timeout"`
	ConcurrentCompetitors int    `mapstructure:"concurrent_competitors"`
	FetchTopSources       int    `mapstructure:"fetch_top_sources"`
}

// Cache holds report cache configuration
type Cache struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	TTL       string `mapstructure:"ttl"`
}

// Logging holds logging configuration
type Logging struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var globalConfig *Config

// Load loads the configuration from a config file, environment
// variables, and defaults, in that order of precedence.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".rivalscope")
		viper.SetConfigType("yaml")
	}

	setDefaults()
	bindEnvironmentVariables()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// Reset clears the cached global configuration. Intended for tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".rivalscope-cache")

	// AI defaults
	viper.SetDefault("ai.gemini.model", "gemini-flash-lite-latest")
	viper.SetDefault("ai.gemini.timeout", "30s")
	viper.SetDefault("ai.gemini.max_tokens", 8192)
	viper.SetDefault("ai.gemini.temperature", 0.3)

	// Search defaults
	viper.SetDefault("search.default_provider", "duckduckgo")
	viper.SetDefault("search.max_results", 5)
	viper.SetDefault("search.timeout", "15s")
	viper.SetDefault("search.language", "en")
	viper.SetDefault("search.providers.duckduckgo.rate_limit", "1s")

	// Research defaults
	viper.SetDefault("research.results_per_query", 5)
	viper.SetDefault("research.retry_attempts", 2)
	viper.SetDefault("research.timeout", "5m")
	viper.SetDefault("research.concurrent_competitors", 3)
	viper.SetDefault("research.fetch_top_sources", 0)

	// Cache defaults
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.directory", ".rivalscope-cache")
	viper.SetDefault("cache.ttl", "24h")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// bindEnvironmentVariables binds environment variables to config keys
func bindEnvironmentVariables() {
	_ = viper.BindEnv("ai.gemini.api_key", "GEMINI_API_KEY", "GOOGLE_GEMINI_API_KEY", "GOOGLE_AI_API_KEY")
	_ = viper.BindEnv("search.providers.google.api_key", "GOOGLE_CSE_API_KEY")
	_ = viper.BindEnv("search.providers.google.search_id", "GOOGLE_CSE_ID")
	_ = viper.BindEnv("search.providers.serpapi.api_key", "SERPAPI_API_KEY")
}

// validateConfig validates configuration values
func validateConfig(config *Config) error {
	if config.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive, got %d", config.Search.MaxResults)
	}
	if config.Research.ConcurrentCompetitors <= 0 {
		return fmt.Errorf("research.concurrent_competitors must be positive, got %d", config.Research.ConcurrentCompetitors)
	}
	if _, err := time.ParseDuration(config.Cache.TTL); err != nil {
		return fmt.Errorf("cache.ttl is not a valid duration: %w", err)
	}
	if _, err := time.ParseDuration(config.Research.Timeout); err != nil {
		return fmt.Errorf("research.timeout is not a valid duration: %w", err)
	}
	return nil
}

// GetCacheTTL returns the parsed cache TTL duration.
func (c *Config) GetCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// GetResearchTimeout returns the parsed research timeout duration.
func (c *Config) GetResearchTimeout() time.Duration {
	d, err := time.ParseDuration(c.Research.Timeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// GetGeminiTimeout returns the parsed LLM call timeout duration.
func (c *Config) GetGeminiTimeout() time.Duration {
	d, err := time.ParseDuration(c.AI.Gemini.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
