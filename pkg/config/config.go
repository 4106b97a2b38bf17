package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options for the image harvester
type Config struct {
	// Listing page and output settings
	Pipeline PipelineSettings `yaml:"pipeline" json:"pipeline"`

	// HTTP transport settings
	HTTP HTTPConfig `yaml:"http" json:"http"`

	// Listing markup selectors
	Extract ExtractConfig `yaml:"extract" json:"extract"`

	// Extraction-assist collaborator
	Assist AssistConfig `yaml:"assist" json:"assist"`

	// Caller-level retry of failed records
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// PipelineSettings holds the values that become a PipelineConfig
type PipelineSettings struct {
	BaseURL           string        `yaml:"base_url" json:"base_url"`
	OutputDir         string        `yaml:"output_dir" json:"output_dir"`
	MaxDelay          time.Duration `yaml:"max_delay" json:"max_delay"`
	Concurrency       int           `yaml:"concurrency" json:"concurrency"`
	RequestsPerMinute int           `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// HTTPConfig holds HTTP client configuration
type HTTPConfig struct {
	Timeout   time.Duration     `yaml:"timeout" json:"timeout"`
	UserAgent string            `yaml:"user_agent" json:"user_agent"`
	Headers   map[string]string `yaml:"headers" json:"headers"`
}

// ExtractConfig holds the selectors describing one image card
type ExtractConfig struct {
	CardSelector  string `yaml:"card_selector" json:"card_selector"`
	TitleSelector string `yaml:"title_selector" json:"title_selector"`
	ImageSelector string `yaml:"image_selector" json:"image_selector"`
	ImageAttr     string `yaml:"image_attr" json:"image_attr"`
	ResolveURLs   bool   `yaml:"resolve_urls" json:"resolve_urls"`
}

// AssistConfig holds settings for the LLM-backed extraction helper
type AssistConfig struct {
	Model            string  `yaml:"model" json:"model"`
	MaxTokens        int     `yaml:"max_tokens" json:"max_tokens"`
	Temperature      float64 `yaml:"temperature" json:"temperature"`
	ContentMaxTokens int     `yaml:"content_max_tokens" json:"content_max_tokens"`
	Markdown         bool    `yaml:"markdown" json:"markdown"`
}

// RetryConfig holds caller-level retry configuration
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts" json:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay" json:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay" json:"max_delay"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Format string `yaml:"format" json:"format"`
}

// PipelineConfig is the immutable contract for a single pipeline run.
type PipelineConfig struct {
	BaseURL           string
	OutputDir         string
	MaxDelay          time.Duration
	FetchTimeout      time.Duration
	Concurrency       int
	RequestsPerMinute int
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Pipeline: PipelineSettings{
			OutputDir:         "./images",
			MaxDelay:          3 * time.Second,
			Concurrency:       1,
			RequestsPerMinute: 0,
		},
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			Headers:   map[string]string{},
		},
		Extract: ExtractConfig{
			CardSelector:  ".mmComponent_images_1",
			TitleSelector: ".newsintroduction",
			ImageSelector: "img",
			ImageAttr:     "src",
			ResolveURLs:   true,
		},
		Assist: AssistConfig{
			Model:            "claude-sonnet-4-20250514",
			MaxTokens:        4096,
			Temperature:      0,
			ContentMaxTokens: 20000,
			Markdown:         false,
		},
		Retry: RetryConfig{
			MaxAttempts: 0,
			BaseDelay:   5 * time.Second,
			MaxDelay:    time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			File:   "",
			Format: "auto",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("IMGHARVEST_BASE_URL"); v != "" {
		c.Pipeline.BaseURL = v
	}
	if v := os.Getenv("IMGHARVEST_OUTPUT_DIR"); v != "" {
		c.Pipeline.OutputDir = v
	}
	if v := os.Getenv("IMGHARVEST_MAX_DELAY"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IMGHARVEST_MAX_DELAY: %w", err))
		} else {
			c.Pipeline.MaxDelay = d
		}
	}
	if v := os.Getenv("IMGHARVEST_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IMGHARVEST_CONCURRENCY: %w", err))
		} else {
			c.Pipeline.Concurrency = n
		}
	}
	if v := os.Getenv("IMGHARVEST_REQUESTS_PER_MINUTE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IMGHARVEST_REQUESTS_PER_MINUTE: %w", err))
		} else {
			c.Pipeline.RequestsPerMinute = n
		}
	}
	if v := os.Getenv("IMGHARVEST_TIMEOUT"); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("IMGHARVEST_TIMEOUT: %w", err))
		} else {
			c.HTTP.Timeout = d
		}
	}
	if v := os.Getenv("IMGHARVEST_USER_AGENT"); v != "" {
		c.HTTP.UserAgent = v
	}
	if v := os.Getenv("IMGHARVEST_CARD_SELECTOR"); v != "" {
		c.Extract.CardSelector = v
	}
	if v := os.Getenv("IMGHARVEST_ASSIST_MODEL"); v != "" {
		c.Assist.Model = v
	}
	if v := os.Getenv("IMGHARVEST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("IMGHARVEST_LOG_FILE"); v != "" {
		c.Logging.File = v
	}

	return errors.Join(errs...)
}

// parseDuration accepts Go duration strings and bare integers as milliseconds.
func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".imgharvest.yaml",
		".imgharvest.yml",
	}
	if home != "" {
		locations = append(locations,
			filepath.Join(home, ".config", "imgharvest", "config.yaml"),
			filepath.Join(home, ".config", "imgharvest", "config.yml"),
			filepath.Join(home, ".imgharvest.yaml"),
		)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Pipeline.BaseURL != "" {
		u, err := url.Parse(c.Pipeline.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("base URL %q must be an absolute http(s) URL", c.Pipeline.BaseURL))
		}
	}
	if c.Pipeline.OutputDir == "" {
		errs = append(errs, errors.New("output directory is required"))
	}
	if c.Pipeline.MaxDelay < 0 {
		errs = append(errs, errors.New("max delay cannot be negative"))
	}
	if c.Pipeline.Concurrency <= 0 {
		errs = append(errs, errors.New("concurrency must be positive"))
	}
	if c.Pipeline.Concurrency > 10 {
		errs = append(errs, errors.New("concurrency should not exceed 10"))
	}
	if c.Pipeline.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("HTTP timeout must be positive"))
	}

	if strings.TrimSpace(c.Extract.CardSelector) == "" {
		errs = append(errs, errors.New("card selector is required"))
	}
	if strings.TrimSpace(c.Extract.ImageSelector) == "" {
		errs = append(errs, errors.New("image selector is required"))
	}
	if strings.TrimSpace(c.Extract.ImageAttr) == "" {
		errs = append(errs, errors.New("image attribute is required"))
	}

	if c.Retry.MaxAttempts < 0 {
		errs = append(errs, errors.New("retry attempts cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Logging.Level))
	}
	validFormats := map[string]bool{"auto": true, "console": true, "json": true, "": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Errorf("invalid log format %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// PipelineConfig projects the immutable per-run configuration
func (c *Config) PipelineConfig() PipelineConfig {
	return PipelineConfig{
		BaseURL:           c.Pipeline.BaseURL,
		OutputDir:         c.Pipeline.OutputDir,
		MaxDelay:          c.Pipeline.MaxDelay,
		FetchTimeout:      c.HTTP.Timeout,
		Concurrency:       c.Pipeline.Concurrency,
		RequestsPerMinute: c.Pipeline.RequestsPerMinute,
	}
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["base-url"].(string); ok && v != "" {
		c.Pipeline.BaseURL = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Pipeline.OutputDir = v
	}
	if v, ok := flags["max-delay"].(time.Duration); ok && v >= 0 {
		c.Pipeline.MaxDelay = v
	}
	if v, ok := flags["concurrency"].(int); ok && v > 0 {
		c.Pipeline.Concurrency = v
	}
	if v, ok := flags["requests-per-minute"].(int); ok && v >= 0 {
		c.Pipeline.RequestsPerMinute = v
	}
	if v, ok := flags["timeout"].(time.Duration); ok && v > 0 {
		c.HTTP.Timeout = v
	}
	if v, ok := flags["card-selector"].(string); ok && v != "" {
		c.Extract.CardSelector = v
	}
	if v, ok := flags["title-selector"].(string); ok && v != "" {
		c.Extract.TitleSelector = v
	}
	if v, ok := flags["image-selector"].(string); ok && v != "" {
		c.Extract.ImageSelector = v
	}
	if v, ok := flags["retry-failed"].(int); ok && v >= 0 {
		c.Retry.MaxAttempts = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	// godotenv never overrides variables that are already set
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".imgharvest.env"))
	}

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
