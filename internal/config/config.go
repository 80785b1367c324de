package config

import "time"

// Config represents the main SharpShop service configuration
type Config struct {
	// Model configuration for the completion service
	Model ModelConfig `json:"model" mapstructure:"model"`

	// Session lifecycle settings
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Payment gateway settings
	Payment PaymentConfig `json:"payment" mapstructure:"payment"`

	// Catalog database settings
	Catalog CatalogConfig `json:"catalog" mapstructure:"catalog"`

	// HTTP server settings
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ModelConfig holds completion service configuration
type ModelConfig struct {
	Provider string `json:"provider" mapstructure:"provider"` // openai, anthropic
	Model    string `json:"model" mapstructure:"model"`
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	BaseURL  string `json:"base_url" mapstructure:"base_url"`

	// Per-call hard timeout; timeouts degrade the turn, they never fail it
	CallTimeout time.Duration `json:"call_timeout" mapstructure:"call_timeout"`

	MaxTokens int `json:"max_tokens" mapstructure:"max_tokens"`
}

// SessionConfig holds session lifecycle settings
type SessionConfig struct {
	TTL           time.Duration `json:"ttl" mapstructure:"ttl"`                       // inactivity expiry
	MaxDuration   time.Duration `json:"max_duration" mapstructure:"max_duration"`     // absolute lifetime
	SweepInterval time.Duration `json:"sweep_interval" mapstructure:"sweep_interval"` // background eviction cadence
	HistoryWindow int           `json:"history_window" mapstructure:"history_window"` // turns sent to the decision call
}

// PaymentConfig holds payment gateway settings
type PaymentConfig struct {
	SecretKey   string `json:"secret_key" mapstructure:"secret_key"`
	BaseURL     string `json:"base_url" mapstructure:"base_url"`
	RedirectURL string `json:"redirect_url" mapstructure:"redirect_url"`
	Currency    string `json:"currency" mapstructure:"currency"`
}

// CatalogConfig holds catalog store settings
type CatalogConfig struct {
	DBPath string `json:"db_path" mapstructure:"db_path"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	File   string `json:"file" mapstructure:"file"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:    "openai",
			Model:       "llama-3.3-70b-versatile",
			BaseURL:     "https://api.groq.com/openai/v1",
			CallTimeout: 30 * time.Second,
			MaxTokens:   500,
		},
		Session: SessionConfig{
			TTL:           30 * time.Minute,
			MaxDuration:   2 * time.Hour,
			SweepInterval: 5 * time.Minute,
			HistoryWindow: 8,
		},
		Payment: PaymentConfig{
			BaseURL:     "https://api.flutterwave.com/v3",
			RedirectURL: "https://sharpshop.app/pay/callback",
			Currency:    "NGN",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for required values
func (c *Config) Validate() error {
	if c.Model.Provider != "openai" && c.Model.Provider != "anthropic" {
		return &ValidationError{Field: "model.provider", Reason: "must be openai or anthropic"}
	}
	if c.Model.Model == "" {
		return &ValidationError{Field: "model.model", Reason: "is required"}
	}
	if c.Session.TTL <= 0 {
		return &ValidationError{Field: "session.ttl", Reason: "must be positive"}
	}
	if c.Session.MaxDuration < c.Session.TTL {
		return &ValidationError{Field: "session.max_duration", Reason: "must be at least session.ttl"}
	}
	if c.Session.HistoryWindow <= 0 {
		return &ValidationError{Field: "session.history_window", Reason: "must be positive"}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &ValidationError{Field: "server.port", Reason: "must be a valid port"}
	}
	return nil
}

// ValidationError describes an invalid configuration field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "config: " + e.Field + " " + e.Reason
}
