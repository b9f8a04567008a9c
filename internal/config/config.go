// Package config manages application configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// YouTube Data API
	YouTubeAPIKey   string `json:"youtube_api_key"`
	CaptionLanguage string `json:"caption_language" validate:"required,min=2"`

	// Transcript chain
	TranscriptOrder   []string      `json:"transcript_order" validate:"dive,oneof=youtube alternative-libs whisper description comments"`
	EnableWhisper     bool          `json:"enable_whisper"`
	EnableDescription bool          `json:"enable_description"`
	EnableComments    bool          `json:"enable_comments"`
	MaxWhisperMinutes float64       `json:"max_whisper_minutes" validate:"gt=0"`
	TempDir           string        `json:"temp_dir"`
	YtdlpPath         string        `json:"ytdlp_path" validate:"required"`
	YtdlpTimeout      time.Duration `json:"ytdlp_timeout"`
	FFmpegPath        string        `json:"ffmpeg_path"`
	OpenAIAPIKey      string        `json:"openai_api_key"`
	OpenAIBaseURL     string        `json:"openai_base_url" validate:"required,url"`

	// Metadata store
	MetadataDir string        `json:"metadata_dir" validate:"required"`
	BackupDir   string        `json:"backup_dir"`
	LockTimeout time.Duration `json:"lock_timeout"`

	// Sheets view layer (optional)
	SheetsCredentialsFile string `json:"sheets_credentials_file"`
	SpreadsheetID         string `json:"spreadsheet_id"`
	SheetName             string `json:"sheet_name"`

	// Transcript cache (optional)
	RedisURL string        `json:"redis_url"`
	CacheTTL time.Duration `json:"cache_ttl"`

	// S3 backup (optional)
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3Prefix       string `json:"s3_prefix"`
	S3UsePathStyle bool   `json:"s3_use_path_style"`

	// Retry settings
	MaxRetries        int           `json:"max_retries" validate:"gte=0"`
	InitialBackoff    time.Duration `json:"initial_backoff"`
	MaxBackoff        time.Duration `json:"max_backoff"`
	BackoffMultiplier float64       `json:"backoff_multiplier"`

	// HTTP API
	ListenAddr string `json:"listen_addr" validate:"required"`

	// Logging
	LogLevel  string `json:"log_level" validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFormat string `json:"log_format" validate:"oneof=json text"`
}

// DefaultConfig returns configuration with safe defaults.
func DefaultConfig() *Config {
	return &Config{
		CaptionLanguage:   "en",
		TranscriptOrder:   []string{"youtube", "alternative-libs", "whisper", "description", "comments"},
		EnableWhisper:     false,
		EnableDescription: true,
		EnableComments:    true,
		MaxWhisperMinutes: 30,
		TempDir:           os.TempDir(),
		YtdlpPath:         "yt-dlp",
		YtdlpTimeout:      5 * time.Minute,
		FFmpegPath:        "ffmpeg",
		OpenAIBaseURL:     "https://api.openai.com/v1",
		MetadataDir:       "data/metadata",
		LockTimeout:       10 * time.Second,
		SheetName:         "Master",
		CacheTTL:          24 * time.Hour,
		MaxRetries:        5,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        30 * time.Second,
		BackoffMultiplier: 2.0,
		ListenAddr:        ":8080",
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// Load loads configuration from the config file, a .env file and environment
// variables, then applies defaults.
// Priority: env vars > .env > config file > defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(); err != nil {
		// Config file is optional
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile attempts to load config from ytpipeline.json in current directory or home directory.
func (c *Config) loadFromFile() error {
	paths := []string{
		"ytpipeline.json",
		filepath.Join(os.Getenv("HOME"), ".config", "ytpipeline", "ytpipeline.json"),
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}

		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		return nil
	}

	return os.ErrNotExist
}

// loadFromEnv overrides config with environment variables.
func (c *Config) loadFromEnv() {
	setString(&c.YouTubeAPIKey, "YTPIPELINE_YOUTUBE_API_KEY", "YOUTUBE_API_KEY")
	setString(&c.CaptionLanguage, "YTPIPELINE_CAPTION_LANGUAGE")
	if v := os.Getenv("YTPIPELINE_TRANSCRIPT_ORDER"); v != "" {
		c.TranscriptOrder = splitList(v)
	}
	setBool(&c.EnableWhisper, "YTPIPELINE_ENABLE_WHISPER")
	setBool(&c.EnableDescription, "YTPIPELINE_ENABLE_DESCRIPTION")
	setBool(&c.EnableComments, "YTPIPELINE_ENABLE_COMMENTS")
	if v := os.Getenv("YTPIPELINE_MAX_WHISPER_MINUTES"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.MaxWhisperMinutes = f
		}
	}
	setString(&c.TempDir, "YTPIPELINE_TEMP_DIR")
	setString(&c.YtdlpPath, "YTPIPELINE_YTDLP_PATH")
	setDuration(&c.YtdlpTimeout, "YTPIPELINE_YTDLP_TIMEOUT")
	setString(&c.FFmpegPath, "YTPIPELINE_FFMPEG_PATH")
	setString(&c.OpenAIAPIKey, "YTPIPELINE_OPENAI_API_KEY", "OPENAI_API_KEY")
	setString(&c.OpenAIBaseURL, "YTPIPELINE_OPENAI_BASE_URL")

	setString(&c.MetadataDir, "YTPIPELINE_METADATA_DIR")
	setString(&c.BackupDir, "YTPIPELINE_BACKUP_DIR")
	setDuration(&c.LockTimeout, "YTPIPELINE_LOCK_TIMEOUT")

	setString(&c.SheetsCredentialsFile, "YTPIPELINE_SHEETS_CREDENTIALS_FILE", "GOOGLE_APPLICATION_CREDENTIALS")
	setString(&c.SpreadsheetID, "YTPIPELINE_SPREADSHEET_ID")
	setString(&c.SheetName, "YTPIPELINE_SHEET_NAME")

	setString(&c.RedisURL, "YTPIPELINE_REDIS_URL", "REDIS_URL")
	setDuration(&c.CacheTTL, "YTPIPELINE_CACHE_TTL")

	setString(&c.S3Bucket, "YTPIPELINE_S3_BUCKET")
	setString(&c.S3Region, "YTPIPELINE_S3_REGION", "AWS_REGION")
	setString(&c.S3Prefix, "YTPIPELINE_S3_PREFIX")
	setBool(&c.S3UsePathStyle, "YTPIPELINE_S3_USE_PATH_STYLE")

	if v := os.Getenv("YTPIPELINE_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxRetries = n
		}
	}
	setDuration(&c.InitialBackoff, "YTPIPELINE_INITIAL_BACKOFF")
	setDuration(&c.MaxBackoff, "YTPIPELINE_MAX_BACKOFF")

	setString(&c.ListenAddr, "YTPIPELINE_LISTEN_ADDR")
	setString(&c.LogLevel, "YTPIPELINE_LOG_LEVEL")
	setString(&c.LogFormat, "YTPIPELINE_LOG_FORMAT")
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.YtdlpTimeout <= 0 {
		return fmt.Errorf("ytdlp_timeout must be positive")
	}
	if c.LockTimeout <= 0 {
		return fmt.Errorf("lock_timeout must be positive")
	}
	if c.InitialBackoff <= 0 {
		return fmt.Errorf("initial_backoff must be positive")
	}
	if c.MaxBackoff <= 0 {
		return fmt.Errorf("max_backoff must be positive")
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("max_backoff must be >= initial_backoff")
	}
	if c.BackoffMultiplier <= 1 {
		return fmt.Errorf("backoff_multiplier must be > 1")
	}
	if c.SpreadsheetID != "" && c.SheetsCredentialsFile == "" {
		return fmt.Errorf("spreadsheet_id requires sheets_credentials_file")
	}
	if c.S3Bucket != "" && c.S3Region == "" {
		return fmt.Errorf("s3_bucket requires s3_region")
	}
	return nil
}

// BackupPath returns the backup directory, defaulting to a "backups"
// subdirectory of the metadata directory.
func (c *Config) BackupPath() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Join(c.MetadataDir, "backups")
}

func setString(dst *string, keys ...string) {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			*dst = v
			return
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
