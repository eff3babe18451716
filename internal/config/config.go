// Package config provides the configuration schema and loader for the
// Samvaad assistant server.
package config

import "github.com/ldrpitr/samvaad/internal/speech"

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. It is typically loaded from a
// YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Query     QueryConfig     `yaml:"query"`
	Corrector CorrectorConfig `yaml:"corrector"`
	Speech    SpeechConfig    `yaml:"speech"`
	Storage   StorageConfig   `yaml:"storage"`
	Draft     DraftConfig     `yaml:"draft"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// AllowedOrigins lists origins permitted by the CORS middleware and the
	// websocket upgrade. Empty allows same-origin only.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// QueryConfig points at the external retrieval/answer service.
type QueryConfig struct {
	// BaseURL is the service root (e.g., "http://localhost:8000").
	BaseURL string `yaml:"base_url"`

	// TimeoutSeconds bounds a single dispatch. Zero uses the client default.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// CorrectorConfig tunes the typo corrector.
type CorrectorConfig struct {
	// Dictionary overrides the built-in domain vocabulary. Order matters:
	// earlier entries win distance ties. Empty keeps the default.
	Dictionary []string `yaml:"dictionary"`

	// MinTokenLength is the minimum token length considered for correction.
	// Zero keeps the default (4).
	MinTokenLength int `yaml:"min_token_length"`

	// MaxDistance is the exclusive edit-distance acceptance threshold.
	// Zero keeps the default (2).
	MaxDistance int `yaml:"max_distance"`
}

// SpeechConfig declares the voice inventory and language defaults.
type SpeechConfig struct {
	// DefaultLanguage is the language tag new sessions start with.
	// Empty selects "en-IN".
	DefaultLanguage string `yaml:"default_language"`

	// Voices is the synthesis voice inventory announced to sessions.
	Voices []speech.Voice `yaml:"voices"`
}

// StorageConfig configures the conversation log database.
type StorageConfig struct {
	// DBPath is the SQLite database file path. Empty disables the
	// conversation log.
	DBPath string `yaml:"db_path"`
}

// DraftConfig configures the AI email drafter. An empty Provider disables
// the feature.
type DraftConfig struct {
	// Provider selects the LLM backend (e.g., "groq", "openai", "ollama").
	Provider string `yaml:"provider"`

	// Model is the model identifier (e.g., "llama-3.1-8b-instant").
	Model string `yaml:"model"`

	// APIKey authenticates against the provider. Empty falls back to the
	// provider's environment variable convention.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`
}
