package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Prerequisite check modes applied to model output.
const (
	CheckOff    = "off"
	CheckWarn   = "warn"
	CheckStrict = "strict"
)

// Config holds every tunable of the extraction and generation pipeline.
// It is built once at startup and passed to constructors.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// GeminiAPIKey is the API key for Google Gemini. Empty is allowed at
	// startup; requests that need the model then fail with a credential error.
	GeminiAPIKey string
	// GeminiModel is the model used for path generation.
	GeminiModel string
	// Temperature is the generation temperature.
	Temperature float32

	// VisionThreshold is the minimum number of text-layer characters for a
	// document to be treated as digital.
	VisionThreshold int
	// PollInterval is the wait between remote asset status checks.
	PollInterval time.Duration
	// MaxPollAttempts bounds the number of status checks.
	MaxPollAttempts int

	HTTPTimeout      time.Duration
	UserAgent        string
	MaxBodyBytes     int64
	MaxDocumentBytes int64

	CaptionLanguages []string
	YouTubeWatchBase string

	GitHubToken   string
	GitHubAPIBase string
	GitHubRawBase string

	// TempDir is where documents are staged before upload. Empty means os.TempDir().
	TempDir string
	// PromptFile optionally replaces the embedded generation prompt.
	PromptFile string
	// PrerequisiteCheck is one of off, warn, strict.
	PrerequisiteCheck string
	// ConcurrentExtraction runs the source extractors in parallel.
	ConcurrentExtraction bool

	LogLevel  string
	LogFormat string
}

// DefaultUserAgent looks like a desktop browser; many sites reject default Go clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:                 ":5000",
		GeminiModel:          "gemini-2.5-flash",
		Temperature:          0.2,
		VisionThreshold:      750,
		PollInterval:         3 * time.Second,
		MaxPollAttempts:      40,
		HTTPTimeout:          30 * time.Second,
		UserAgent:            DefaultUserAgent,
		MaxBodyBytes:         5 << 20,
		MaxDocumentBytes:     20 << 20,
		CaptionLanguages:     []string{"en", "hi"},
		YouTubeWatchBase:     "https://www.youtube.com/watch",
		GitHubAPIBase:        "https://api.github.com",
		GitHubRawBase:        "https://raw.githubusercontent.com",
		PrerequisiteCheck:    CheckWarn,
		ConcurrentExtraction: true,
		LogLevel:             "info",
		LogFormat:            "text",
	}
}

// Load reads a .env file if present and overlays environment variables on
// top of DefaultConfig.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	cfg.GeminiAPIKey = getEnv("GEMINI_API_KEY", "")
	cfg.GeminiModel = getEnv("GEMINI_MODEL", cfg.GeminiModel)
	cfg.Temperature = getEnvAsFloat32("GEMINI_TEMPERATURE", cfg.Temperature)
	cfg.VisionThreshold = getEnvAsInt("VISION_THRESHOLD", cfg.VisionThreshold)
	cfg.PollInterval = getEnvAsDuration("ASSET_POLL_INTERVAL", cfg.PollInterval)
	cfg.MaxPollAttempts = getEnvAsInt("ASSET_POLL_MAX_ATTEMPTS", cfg.MaxPollAttempts)
	cfg.HTTPTimeout = getEnvAsDuration("HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.UserAgent = getEnv("HTTP_USER_AGENT", cfg.UserAgent)
	cfg.MaxBodyBytes = int64(getEnvAsInt("MAX_BODY_BYTES", int(cfg.MaxBodyBytes)))
	cfg.MaxDocumentBytes = int64(getEnvAsInt("MAX_DOCUMENT_BYTES", int(cfg.MaxDocumentBytes)))
	if langs := getEnv("CAPTION_LANGUAGES", ""); langs != "" {
		cfg.CaptionLanguages = splitList(langs)
	}
	cfg.YouTubeWatchBase = getEnv("YOUTUBE_WATCH_BASE", cfg.YouTubeWatchBase)
	cfg.GitHubToken = getEnv("GITHUB_TOKEN", "")
	cfg.GitHubAPIBase = getEnv("GITHUB_API_BASE", cfg.GitHubAPIBase)
	cfg.GitHubRawBase = getEnv("GITHUB_RAW_BASE", cfg.GitHubRawBase)
	cfg.TempDir = getEnv("UPLOAD_TEMP_DIR", "")
	cfg.PromptFile = getEnv("PROMPT_FILE", "")
	cfg.PrerequisiteCheck = strings.ToLower(getEnv("PREREQUISITE_CHECK", cfg.PrerequisiteCheck))
	cfg.ConcurrentExtraction = getEnvAsBool("CONCURRENT_EXTRACTION", cfg.ConcurrentExtraction)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	return cfg, cfg.Validate()
}

// Validate rejects values the pipeline cannot run with.
func (c Config) Validate() error {
	if c.VisionThreshold <= 0 {
		return fmt.Errorf("VISION_THRESHOLD must be positive, got %d", c.VisionThreshold)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("ASSET_POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.MaxPollAttempts <= 0 {
		return fmt.Errorf("ASSET_POLL_MAX_ATTEMPTS must be positive, got %d", c.MaxPollAttempts)
	}
	if c.MaxBodyBytes <= 0 || c.MaxDocumentBytes <= 0 {
		return fmt.Errorf("body limits must be positive")
	}
	switch c.PrerequisiteCheck {
	case CheckOff, CheckWarn, CheckStrict:
	default:
		return fmt.Errorf("PREREQUISITE_CHECK must be one of off, warn, strict, got %q", c.PrerequisiteCheck)
	}
	return nil
}

// NewLogger builds the process logger from LogLevel and LogFormat.
func (c Config) NewLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(c.LogFormat) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
