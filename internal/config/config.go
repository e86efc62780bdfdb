// Package config loads runtime settings from the environment, an optional
// .env file and an optional earnings-analyst.yaml file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Lllllllleong/earningscallanalyst/internal/models"
)

// Config holds every tunable of the service.
type Config struct {
	// APIKey is the environment-supplied model credential. It may be empty;
	// users can then enter a key in the form.
	APIKey string

	ModelName             string
	SafetyFiltersDisabled bool
	// GeminiBaseURL overrides the Gemini API endpoint; empty uses the default.
	GeminiBaseURL string
	// StageDocuments uploads whole documents through the Files API in
	// native mode instead of sending inline pages.
	StageDocuments bool

	Host           string
	Port           string
	RequestTimeout time.Duration
	// AnalysisTimeout bounds the model call. Zero leaves it to the request context.
	AnalysisTimeout time.Duration

	MaxUploadBytes  int64
	MaxPages        int
	MaterializeMode models.MaterializeMode
	RenderDPI       float64
	JPEGQuality     int
	PageWorkers     int

	LogLevel string
}

const configFileName = "earnings-analyst"

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("MODEL_NAME", "gemini-2.5-flash")
	v.SetDefault("SAFETY_FILTERS_DISABLED", true)
	v.SetDefault("STAGE_DOCUMENTS", false)
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REQUEST_TIMEOUT", 5*time.Minute)
	v.SetDefault("ANALYSIS_TIMEOUT", time.Duration(0))
	v.SetDefault("MAX_UPLOAD_BYTES", int64(20<<20))
	v.SetDefault("MAX_PAGES", 60)
	v.SetDefault("MATERIALIZE_MODE", string(models.ModeImage))
	v.SetDefault("RENDER_DPI", 150.0)
	v.SetDefault("JPEG_QUALITY", 85)
	v.SetDefault("PAGE_WORKERS", 4)
	v.SetDefault("LOG_LEVEL", "info")
}

// Load reads .env (if present), the optional config file and the process
// environment, in increasing order of precedence.
func Load(configFile string) (*Config, error) {
	// A missing .env file is normal outside local development.
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded.", "error", err)
	}

	v := viper.New()
	SetDefaults(v)
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, models.NewError(models.KindConfig, "failed to read config file", err)
		}
	} else {
		slog.Info("Using config file.", "path", v.ConfigFileUsed())
	}

	return FromViper(v)
}

// FromViper builds and validates a Config from an already populated viper.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		APIKey:                strings.TrimSpace(v.GetString("GOOGLE_API_KEY")),
		ModelName:             strings.TrimSpace(v.GetString("MODEL_NAME")),
		SafetyFiltersDisabled: v.GetBool("SAFETY_FILTERS_DISABLED"),
		GeminiBaseURL:         strings.TrimSpace(v.GetString("GEMINI_BASE_URL")),
		StageDocuments:        v.GetBool("STAGE_DOCUMENTS"),
		Host:                  strings.TrimSpace(v.GetString("HOST")),
		Port:                  strings.TrimSpace(v.GetString("PORT")),
		RequestTimeout:        v.GetDuration("REQUEST_TIMEOUT"),
		AnalysisTimeout:       v.GetDuration("ANALYSIS_TIMEOUT"),
		MaxUploadBytes:        v.GetInt64("MAX_UPLOAD_BYTES"),
		MaxPages:              v.GetInt("MAX_PAGES"),
		MaterializeMode:       models.MaterializeMode(strings.ToLower(strings.TrimSpace(v.GetString("MATERIALIZE_MODE")))),
		RenderDPI:             v.GetFloat64("RENDER_DPI"),
		JPEGQuality:           v.GetInt("JPEG_QUALITY"),
		PageWorkers:           v.GetInt("PAGE_WORKERS"),
		LogLevel:              strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	p, err := strconv.Atoi(c.Port)
	if err != nil || p < 1 || p > 65535 {
		return configError("invalid PORT: %q", c.Port)
	}
	if c.MaxUploadBytes <= 0 {
		return configError("MAX_UPLOAD_BYTES must be > 0 (got %d)", c.MaxUploadBytes)
	}
	if c.MaxPages <= 0 {
		return configError("MAX_PAGES must be > 0 (got %d)", c.MaxPages)
	}
	switch c.MaterializeMode {
	case models.ModeImage, models.ModeNative:
	default:
		return configError("MATERIALIZE_MODE must be %q or %q (got %q)", models.ModeImage, models.ModeNative, c.MaterializeMode)
	}
	if c.RenderDPI < 36 || c.RenderDPI > 600 {
		return configError("RENDER_DPI must be between 36 and 600 (got %v)", c.RenderDPI)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return configError("JPEG_QUALITY must be between 1 and 100 (got %d)", c.JPEGQuality)
	}
	if c.PageWorkers < 1 {
		return configError("PAGE_WORKERS must be >= 1 (got %d)", c.PageWorkers)
	}
	if c.RequestTimeout <= 0 {
		return configError("REQUEST_TIMEOUT must be > 0 (got %s)", c.RequestTimeout)
	}
	if c.AnalysisTimeout < 0 {
		return configError("ANALYSIS_TIMEOUT must be >= 0 (got %s)", c.AnalysisTimeout)
	}
	if c.ModelName == "" {
		return configError("MODEL_NAME must not be empty")
	}
	if c.GeminiBaseURL != "" {
		u, err := url.Parse(c.GeminiBaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return configError("GEMINI_BASE_URL must be an absolute URL (got %q)", c.GeminiBaseURL)
		}
	}
	return nil
}

// ServerAddress returns host:port for the HTTP listener.
func (c *Config) ServerAddress() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// LogLevelValue maps LogLevel onto a slog level; unknown values mean info.
func (c *Config) LogLevelValue() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func configError(format string, args ...any) error {
	return models.NewError(models.KindConfig, fmt.Sprintf(format, args...), nil)
}
