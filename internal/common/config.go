package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment" yaml:"environment"` // "development" or "production"
	Server      ServerConfig   `toml:"server" yaml:"server"`
	Storage     StorageConfig  `toml:"storage" yaml:"storage"`
	Logging     LoggingConfig  `toml:"logging" yaml:"logging"`
	Workers     WorkersConfig  `toml:"workers" yaml:"workers"`
	Images      ImagesConfig   `toml:"images" yaml:"images"`
	OCR         OCRConfig      `toml:"ocr" yaml:"ocr"`
	LLM         LLMConfig      `toml:"llm" yaml:"llm"`
	OpenAI      OpenAIConfig   `toml:"openai" yaml:"openai"`
	Gemini      GeminiConfig   `toml:"gemini" yaml:"gemini"`
	Claude      ClaudeConfig   `toml:"claude" yaml:"claude"`
	Quota       QuotaConfig    `toml:"quota" yaml:"quota"`
	Progress    ProgressConfig `toml:"progress" yaml:"progress"`
}

type ServerConfig struct {
	Port int    `toml:"port" yaml:"port"`
	Host string `toml:"host" yaml:"host"`
}

type StorageConfig struct {
	Badger     BadgerConfig     `toml:"badger" yaml:"badger"`
	Filesystem FilesystemConfig `toml:"filesystem" yaml:"filesystem"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path" yaml:"path"`                       // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup" yaml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type FilesystemConfig struct {
	Documents     string `toml:"documents" yaml:"documents"`           // Uploaded PDF storage base dir
	Images        string `toml:"images" yaml:"images"`                 // Extracted page image output dir
	CreateSubdirs bool   `toml:"create_subdirs" yaml:"create_subdirs"` // YYYY/MM/DD subdirectories under the base dir
	NameStrategy  string `toml:"name_strategy" yaml:"name_strategy"`   // "timestamp" (default), "uuid", or "original"
}

type LoggingConfig struct {
	Level      string   `toml:"level" yaml:"level"`             // "debug", "info", "warn", "error"
	Output     []string `toml:"output" yaml:"output"`           // "stdout", "file"
	TimeFormat string   `toml:"time_format" yaml:"time_format"` // Time format for logs
}

// WorkersConfig sizes the document worker pool and per-document deadline
type WorkersConfig struct {
	PoolSize        int    `toml:"pool_size" yaml:"pool_size"`               // Concurrent documents in flight
	DocumentTimeout string `toml:"document_timeout" yaml:"document_timeout"` // Overall per-document timeout (default "10m")
}

// ImagesConfig controls page rasterization
type ImagesConfig struct {
	DPI          int    `toml:"dpi" yaml:"dpi"`                     // Default 150, warned outside 72-600
	Format       string `toml:"format" yaml:"format"`               // "png" (default), "jpeg", "tiff"
	Quality      int    `toml:"quality" yaml:"quality"`             // 1-100, default 90
	MaxWidth     int    `toml:"max_width" yaml:"max_width"`
	MaxHeight    int    `toml:"max_height" yaml:"max_height"`
	RasterBinary string `toml:"raster_binary" yaml:"raster_binary"` // External rasterizer (default "pdftoppm")
}

// OCRConfig controls the tesseract subprocess
type OCRConfig struct {
	Enabled  bool   `toml:"enabled" yaml:"enabled"`
	Language string `toml:"language" yaml:"language"` // Default "eng"
	Binary   string `toml:"binary" yaml:"binary"`     // Default "tesseract"
	Timeout  string `toml:"timeout" yaml:"timeout"`   // Default "30s"
}

// LLMProvider identifies an AI provider
type LLMProvider string

const (
	LLMProviderOpenAI LLMProvider = "openai"
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderClaude LLMProvider = "claude"
	LLMProviderAuto   LLMProvider = "auto"
)

// LLMConfig contains provider selection behavior
type LLMConfig struct {
	PreferredProvider LLMProvider `toml:"preferred_provider" yaml:"preferred_provider"` // "openai", "gemini", "claude", or "auto"
	FallbackEnabled   bool        `toml:"fallback_enabled" yaml:"fallback_enabled"`     // Retry once against the next available provider
	TextTimeout       string      `toml:"text_timeout" yaml:"text_timeout"`             // Per-request timeout for text calls (default "60s")
	VisionTimeout     string      `toml:"vision_timeout" yaml:"vision_timeout"`         // Per-request timeout for vision calls (default "120s")
}

// OpenAIConfig contains OpenAI API configuration
type OpenAIConfig struct {
	APIKey      string  `toml:"api_key" yaml:"api_key"`
	Model       string  `toml:"model" yaml:"model"`             // Default "gpt-4o-mini"
	VisionModel string  `toml:"vision_model" yaml:"vision_model"` // Default "gpt-4o"
	Temperature float32 `toml:"temperature" yaml:"temperature"`
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key" yaml:"api_key"`
	Model       string  `toml:"model" yaml:"model"` // Default "gemini-2.0-flash"
	Temperature float32 `toml:"temperature" yaml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key" yaml:"api_key"`
	Model       string  `toml:"model" yaml:"model"` // Default "claude-3-5-haiku-20241022"
	MaxTokens   int     `toml:"max_tokens" yaml:"max_tokens"`
	Temperature float32 `toml:"temperature" yaml:"temperature"`
}

// QuotaConfig controls daily model quota tracking
type QuotaConfig struct {
	Enabled          bool   `toml:"enabled" yaml:"enabled"`
	DailyTokenBudget int    `toml:"daily_token_budget" yaml:"daily_token_budget"` // Advisory cross-model token budget
	Timezone         string `toml:"timezone" yaml:"timezone"`                     // Reset boundary zone (default "America/Los_Angeles")
}

// ProgressConfig controls the per-document progress bus
type ProgressConfig struct {
	MaxSubscribers    int    `toml:"max_subscribers" yaml:"max_subscribers"`       // Per-document subscriber cap
	HeartbeatInterval string `toml:"heartbeat_interval" yaml:"heartbeat_interval"` // Ping interval (default "15s")
	ConnectionTimeout string `toml:"connection_timeout" yaml:"connection_timeout"` // Idle subscriber timeout (default "30s")
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/precis.db",
				ResetOnStartup: false,
			},
			Filesystem: FilesystemConfig{
				Documents:     "./data/documents",
				Images:        "./data/images",
				CreateSubdirs: true,
				NameStrategy:  "timestamp",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		Workers: WorkersConfig{
			PoolSize:        4,
			DocumentTimeout: "10m",
		},
		Images: ImagesConfig{
			DPI:          150,
			Format:       "png",
			Quality:      90,
			MaxWidth:     2400,
			MaxHeight:    2400,
			RasterBinary: "pdftoppm",
		},
		OCR: OCRConfig{
			Enabled:  false,
			Language: "eng",
			Binary:   "tesseract",
			Timeout:  "30s",
		},
		LLM: LLMConfig{
			PreferredProvider: LLMProviderAuto,
			FallbackEnabled:   true,
			TextTimeout:       "60s",
			VisionTimeout:     "120s",
		},
		OpenAI: OpenAIConfig{
			Model:       "gpt-4o-mini",
			VisionModel: "gpt-4o",
			Temperature: 0.7,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.0-flash",
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			Model:       "claude-3-5-haiku-20241022",
			MaxTokens:   8192,
			Temperature: 0.7,
		},
		Quota: QuotaConfig{
			Enabled:          true,
			DailyTokenBudget: 4_000_000,
			Timezone:         "America/Los_Angeles",
		},
		Progress: ProgressConfig{
			MaxSubscribers:    8,
			HeartbeatInterval: "15s",
			ConnectionTimeout: "30s",
		},
	}
}

// LoadFromFiles loads configuration in layers: defaults, then each file in
// order (later files override earlier ones), then environment variables.
// Files ending in .yaml/.yml decode with yaml.v3, everything else with TOML.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config %s: %w", path, err)
			}
		default:
			if err := toml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse TOML config %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(config)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides maps PRECIS_* environment variables onto the config.
// Environment wins over file values but loses to CLI flags.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("PRECIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("PRECIS_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("PRECIS_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("PRECIS_STORAGE_DIR"); v != "" {
		config.Storage.Filesystem.Documents = v
	}
	if v := os.Getenv("PRECIS_IMAGES_DIR"); v != "" {
		config.Storage.Filesystem.Images = v
	}
	if v := os.Getenv("PRECIS_OCR_ENABLED"); v != "" {
		config.OCR.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("PRECIS_OCR_LANGUAGE"); v != "" {
		config.OCR.Language = v
	}
	if v := os.Getenv("PRECIS_QUOTA_ENABLED"); v != "" {
		config.Quota.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("PRECIS_DAILY_TOKEN_BUDGET"); v != "" {
		if budget, err := strconv.Atoi(v); err == nil {
			config.Quota.DailyTokenBudget = budget
		}
	}
	if v := os.Getenv("PRECIS_PREFERRED_PROVIDER"); v != "" {
		config.LLM.PreferredProvider = LLMProvider(v)
	}
	if v := os.Getenv("PRECIS_LLM_FALLBACK"); v != "" {
		config.LLM.FallbackEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		config.OpenAI.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.Gemini.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		config.Claude.APIKey = v
	}
	if v := os.Getenv("PRECIS_WORKER_POOL_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Workers.PoolSize = n
		}
	}
	if v := os.Getenv("PRECIS_MAX_SUBSCRIBERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Progress.MaxSubscribers = n
		}
	}
}

// ApplyFlagOverrides applies command-line flag values (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

func (c *Config) validate() error {
	switch c.LLM.PreferredProvider {
	case LLMProviderOpenAI, LLMProviderGemini, LLMProviderClaude, LLMProviderAuto:
	default:
		return fmt.Errorf("invalid preferred provider: %s", c.LLM.PreferredProvider)
	}
	if _, err := time.LoadLocation(c.Quota.Timezone); err != nil {
		return fmt.Errorf("invalid quota timezone %q: %w", c.Quota.Timezone, err)
	}
	return nil
}

// DocumentTimeout parses the per-document deadline, falling back to 10m
func (c *Config) DocumentTimeout() time.Duration {
	return parseDurationOr(c.Workers.DocumentTimeout, 10*time.Minute)
}

// TextTimeout parses the per-request text call deadline
func (c *Config) TextTimeout() time.Duration {
	return c.LLM.TextCallTimeout()
}

// VisionTimeout parses the per-request vision call deadline
func (c *Config) VisionTimeout() time.Duration {
	return c.LLM.VisionCallTimeout()
}

// TextCallTimeout parses the per-request text call deadline
func (c *LLMConfig) TextCallTimeout() time.Duration {
	return parseDurationOr(c.TextTimeout, 60*time.Second)
}

// VisionCallTimeout parses the per-request vision call deadline
func (c *LLMConfig) VisionCallTimeout() time.Duration {
	return parseDurationOr(c.VisionTimeout, 120*time.Second)
}

// OCRTimeout parses the tesseract subprocess deadline
func (c *Config) OCRTimeout() time.Duration {
	return parseDurationOr(c.OCR.Timeout, 30*time.Second)
}

// HeartbeatInterval parses the progress bus ping interval
func (c *Config) HeartbeatInterval() time.Duration {
	return parseDurationOr(c.Progress.HeartbeatInterval, 15*time.Second)
}

// ConnectionTimeout parses the progress bus idle timeout
func (c *Config) ConnectionTimeout() time.Duration {
	return parseDurationOr(c.Progress.ConnectionTimeout, 30*time.Second)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
