package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the pipeline and chat subsystems.
type Config struct {
	General     GeneralConfig     `mapstructure:"general"`
	Server      ServerConfig      `mapstructure:"server"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Browser     BrowserConfig     `mapstructure:"browser"`
	Acquisition AcquisitionConfig `mapstructure:"acquisition"`
	Funnel      FunnelConfig      `mapstructure:"funnel"`
	Chat        ChatConfig        `mapstructure:"chat"`
	Search      SearchConfig      `mapstructure:"search"`
	Wikipedia   WikipediaConfig   `mapstructure:"wikipedia"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig contains LLM provider configuration.
type LLMConfig struct {
	APIKey  string              `mapstructure:"api_key"`
	BaseURL string              `mapstructure:"base_url"`
	Timeout time.Duration       `mapstructure:"timeout"`
	Models  map[string]LLMModel `mapstructure:"models"`
	Routing LLMRoutingConfig    `mapstructure:"routing"`
}

// LLMModel describes one configured model.
type LLMModel struct {
	Name            string  `mapstructure:"name"`
	APIName         string  `mapstructure:"api_name"`
	MaxTokens       int     `mapstructure:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature"`
	CostPer1K       float64 `mapstructure:"cost_per_1k_input"`
	CostPer1KOutput float64 `mapstructure:"cost_per_1k_output"`
}

// LLMRoutingConfig maps pipeline roles onto configured models.
type LLMRoutingConfig struct {
	Utility    string `mapstructure:"utility"`    // pre-classification, entity cleanup
	Assessment string `mapstructure:"assessment"` // headline + article assessment
	Synthesis  string `mapstructure:"synthesis"`  // event synthesis, opportunities
	Chat       string `mapstructure:"chat"`       // RAG planning/generation
	Embedding  string `mapstructure:"embedding"`
}

func (l LLMConfig) Validate() error {
	if strings.TrimSpace(l.APIKey) == "" && os.Getenv("OPENAI_API_KEY") == "" {
		return fmt.Errorf("llm.api_key required (or OPENAI_API_KEY)")
	}
	if len(l.Models) == 0 {
		return fmt.Errorf("llm.models must configure at least one model")
	}
	return nil
}

// CacheConfig configures the agent result cache. Redis (TCP) and REST (HTTP)
// transports are both optional; the in-memory cache is always available.
type CacheConfig struct {
	RESTEndpoint string        `mapstructure:"rest_endpoint"`
	RESTToken    string        `mapstructure:"rest_token"`
	RedisHost    string        `mapstructure:"redis_host"`
	RedisPort    string        `mapstructure:"redis_port"`
	RedisPass    string        `mapstructure:"redis_password"`
	RedisDB      int           `mapstructure:"redis_db"`
	TTL          time.Duration `mapstructure:"ttl"`
	MemoryMax    int           `mapstructure:"memory_max_entries"`
	Required     bool          `mapstructure:"required"` // preflight-fatal when no backend reachable
}

// Normalize applies cache defaults.
func (c CacheConfig) Normalize() CacheConfig {
	if c.TTL <= 0 {
		c.TTL = 24 * time.Hour
	}
	if c.MemoryMax <= 0 {
		c.MemoryMax = 4096
	}
	return c
}

// BrowserConfig configures the pooled headless browser.
type BrowserConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	UserAgent   string        `mapstructure:"user_agent"`
	PageTimeout time.Duration `mapstructure:"page_timeout"`
	MaxPages    int           `mapstructure:"max_pages"`
}

// Normalize applies browser defaults.
func (b BrowserConfig) Normalize() BrowserConfig {
	if b.PageTimeout <= 0 {
		b.PageTimeout = 25 * time.Second
	}
	if b.MaxPages <= 0 {
		b.MaxPages = 2
	}
	if strings.TrimSpace(b.UserAgent) == "" {
		b.UserAgent = "ProsperoBot/1.0 (+https://prospero-intel.example)"
	}
	return b
}

// AcquisitionConfig tunes scraping and content enrichment.
type AcquisitionConfig struct {
	Concurrency     int           `mapstructure:"concurrency"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout"`
	MinContentChars int           `mapstructure:"min_content_chars"`
	PreviewChars    int           `mapstructure:"preview_chars"`
	DebugSinkDir    string        `mapstructure:"debug_sink_dir"`
	SourcesFile     string        `mapstructure:"sources_file"`
	WatchlistFile   string        `mapstructure:"watchlist_file"`
}

// Normalize applies acquisition defaults.
func (a AcquisitionConfig) Normalize() AcquisitionConfig {
	if a.Concurrency <= 0 {
		a.Concurrency = 4
	}
	if a.FetchTimeout <= 0 {
		a.FetchTimeout = 20 * time.Second
	}
	if a.MinContentChars <= 0 {
		a.MinContentChars = 400
	}
	if a.PreviewChars <= 0 {
		a.PreviewChars = 500
	}
	return a
}

// FunnelConfig tunes the assessment funnel thresholds.
type FunnelConfig struct {
	HeadlineThreshold   int     `mapstructure:"headline_threshold"`    // below: dropped after headline stage
	HighSignalThreshold int     `mapstructure:"high_signal_threshold"` // at/above: salvage instead of drop on failure
	ArticleThreshold    int     `mapstructure:"article_threshold"`     // below: dropped after content assessment
	BatchSize           int     `mapstructure:"batch_size"`
	MinWealthMM         float64 `mapstructure:"min_wealth_mm"`
	MaxRetries          int     `mapstructure:"max_retries"` // agent validation retries
}

// Normalize applies funnel defaults.
func (f FunnelConfig) Normalize() FunnelConfig {
	if f.HeadlineThreshold <= 0 {
		f.HeadlineThreshold = 40
	}
	if f.HighSignalThreshold <= 0 {
		f.HighSignalThreshold = 75
	}
	if f.ArticleThreshold <= 0 {
		f.ArticleThreshold = 50
	}
	if f.BatchSize <= 0 {
		f.BatchSize = 8
	}
	if f.MinWealthMM <= 0 {
		f.MinWealthMM = 5
	}
	if f.MaxRetries <= 0 {
		f.MaxRetries = 1
	}
	return f
}

// ChatConfig tunes the RAG chat orchestrator.
type ChatConfig struct {
	TopK               int     `mapstructure:"top_k"`
	SimilarityMin      float64 `mapstructure:"similarity_min"`       // retain matches at/above
	ConfidenceShortcut float64 `mapstructure:"confidence_shortcut"`  // skip external retrieval at/above
	QueryExpansions    int     `mapstructure:"query_expansions"`
}

// Normalize applies chat defaults.
func (c ChatConfig) Normalize() ChatConfig {
	if c.TopK <= 0 {
		c.TopK = 6
	}
	if c.SimilarityMin <= 0 {
		c.SimilarityMin = 0.55
	}
	if c.ConfidenceShortcut <= 0 {
		c.ConfidenceShortcut = 0.85
	}
	if c.QueryExpansions <= 0 {
		c.QueryExpansions = 3
	}
	return c
}

// SearchConfig holds web-search provider keys. Empty keys disable the
// provider; the chat path treats that as a no-op source.
type SearchConfig struct {
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	MaxResults   int           `mapstructure:"max_results"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// WikipediaConfig holds Wikipedia summary API settings.
type WikipediaConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Normalize applies Wikipedia defaults.
func (w WikipediaConfig) Normalize() WikipediaConfig {
	if strings.TrimSpace(w.Endpoint) == "" {
		w.Endpoint = "https://en.wikipedia.org/api/rest_v1/page/summary"
	}
	if w.Timeout <= 0 {
		w.Timeout = 10 * time.Second
	}
	return w
}

// StorageConfig contains persistence settings.
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig contains Postgres connection settings.
type PostgresConfig struct {
	URL     string        `mapstructure:"url"`
	Host    string        `mapstructure:"host"`
	Port    string        `mapstructure:"port"`
	User    string        `mapstructure:"user"`
	Pass    string        `mapstructure:"password"`
	DBName  string        `mapstructure:"dbname"`
	SSLMode string        `mapstructure:"sslmode"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

// DSN builds the connection string from the configured fields.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Pass, p.Host, port, p.DBName, ssl)
}

// TelemetryConfig contains metrics settings.
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	MetricsPort  int  `mapstructure:"metrics_port"`
	CostTracking bool `mapstructure:"cost_tracking"`
}

func (t TelemetryConfig) Validate() error {
	if t.Enabled && t.MetricsPort <= 0 {
		return fmt.Errorf("telemetry.metrics_port must be > 0 when telemetry is enabled")
	}
	return nil
}

// ScheduleConfig enables periodic pipeline runs in serve mode.
type ScheduleConfig struct {
	CronSpec string `mapstructure:"cron_spec"`
}

// LoadConfig loads config from file, with PROSPERO_* env overrides.
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.SetDefault("general.default_timeout", "90s")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("cache.ttl", "24h")
	viper.SetDefault("browser.enabled", true)

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

	viper.SetEnvPrefix("PROSPERO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	config.Cache = config.Cache.Normalize()
	config.Browser = config.Browser.Normalize()
	config.Acquisition = config.Acquisition.Normalize()
	config.Funnel = config.Funnel.Normalize()
	config.Chat = config.Chat.Normalize()
	config.Wikipedia = config.Wikipedia.Normalize()

	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Telemetry.Validate(); err != nil {
		panic(err)
	}
	return &config
}
