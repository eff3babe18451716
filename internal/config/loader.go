package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/ldrpitr/samvaad/internal/speech"
)

// validProviderNames lists the LLM provider names the drafter knows how to
// construct. Used by [Validate].
var validProviderNames = []string{
	"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq",
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Unknown fields are rejected. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills zero-valued fields with working defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Speech.DefaultLanguage == "" {
		cfg.Speech.DefaultLanguage = speech.DefaultLanguage
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Query.BaseURL == "" {
		errs = append(errs, errors.New("query.base_url must be set"))
	}
	if cfg.Query.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("query.timeout_seconds must not be negative, got %d", cfg.Query.TimeoutSeconds))
	}
	if cfg.Corrector.MinTokenLength < 0 {
		errs = append(errs, fmt.Errorf("corrector.min_token_length must not be negative, got %d", cfg.Corrector.MinTokenLength))
	}
	if cfg.Corrector.MaxDistance < 0 {
		errs = append(errs, fmt.Errorf("corrector.max_distance must not be negative, got %d", cfg.Corrector.MaxDistance))
	}
	if !speech.IsSupported(cfg.Speech.DefaultLanguage) {
		errs = append(errs, fmt.Errorf("speech.default_language %q is not a supported language tag", cfg.Speech.DefaultLanguage))
	}
	for _, v := range cfg.Speech.Voices {
		if v.Lang == "" {
			errs = append(errs, fmt.Errorf("speech voice %q is missing a language tag", v.Name))
		}
	}
	if cfg.Draft.Provider != "" {
		if !slices.Contains(validProviderNames, cfg.Draft.Provider) {
			errs = append(errs, fmt.Errorf("draft.provider %q is unknown; valid values: %v", cfg.Draft.Provider, validProviderNames))
		}
		if cfg.Draft.Model == "" {
			errs = append(errs, errors.New("draft.model must be set when draft.provider is configured"))
		}
	}

	return errors.Join(errs...)
}
