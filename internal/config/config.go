// Package config manages application configuration from default values,
// an optional config.yaml file, and BOT_* environment variables.
package config

import (
	"time"
)

// Config defines the application configuration. Values can be set via
// environment variables prefixed with BOT_ (e.g., BOT_WHATSAPP_API_KEY)
// or through config.yaml.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	WhatsApp  WhatsAppConfig  `mapstructure:"whatsapp"`
	Pending   PendingConfig   `mapstructure:"pending"`
	Vision    VisionConfig    `mapstructure:"vision"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig controls log level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig holds SQLite connection settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// ServerConfig holds the webhook HTTP server settings.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"      validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s,max=1m"`
}

// WhatsAppConfig holds the outbound messaging provider settings.
type WhatsAppConfig struct {
	BaseURL        string        `mapstructure:"base_url"        validate:"required,url"`
	Instance       string        `mapstructure:"instance"        validate:"required"`
	APIKey         string        `mapstructure:"api_key"         validate:"required"`
	MaxAttempts    int           `mapstructure:"max_attempts"    validate:"min=1,max=10"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"    validate:"min=100ms,max=1m"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=1s,max=2m"`
	MaxLength      int           `mapstructure:"max_length"      validate:"min=64,max=65536"`
}

// PendingConfig controls pending-interaction lifetimes.
type PendingConfig struct {
	TTL        time.Duration `mapstructure:"ttl"         validate:"min=1m,max=24h"`
	MedicalTTL time.Duration `mapstructure:"medical_ttl" validate:"min=1m,max=24h"`
}

// VisionConfig holds the food-recognition service settings.
type VisionConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout"  validate:"min=1s,max=5m"`
}

// GeminiConfig holds settings for the Gemini AI client used by the
// intent classifier and the free-conversation assistant.
type GeminiConfig struct {
	APIKey            string  `mapstructure:"api_key" validate:"required"`
	ModelName         string  `mapstructure:"model_name"`
	Temperature       float32 `mapstructure:"temperature" validate:"min=0,max=2"`
	SystemInstruction string  `mapstructure:"system_instruction"`
	MaxRetries        int     `mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" validate:"min=0,max=60"`
}

// TaskConfig holds the schedule for a single background task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// MessagesConfig holds the user-facing reply templates.
type MessagesConfig struct {
	AnalysisError     string `mapstructure:"analysis_error"`
	NoFoodsDetected   string `mapstructure:"no_foods_detected"`
	UnsupportedMedia  string `mapstructure:"unsupported_media"`
	NoPendingNudge    string `mapstructure:"no_pending_nudge"`
	AssistantFallback string `mapstructure:"assistant_fallback"`
	MedicalProcessing string `mapstructure:"medical_processing"`
}
