package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the transcriber backends that ship with Vocalis.
// Used by [Validate] to reject unrecognised provider names.
var ValidProviderNames = []string{"whisper-native", "openai"}

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

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
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

// applyDefaults fills in values the schema treats as optional.
func applyDefaults(cfg *Config) {
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = "voice_data"
	}
	if len(cfg.Transcriber.Languages) == 0 {
		cfg.Transcriber.Languages = slices.Clone(DefaultLanguages)
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Discord.Token == "" {
		errs = append(errs, errors.New("discord.token is required"))
	}

	name := cfg.Transcriber.Provider.Name
	if name == "" {
		errs = append(errs, errors.New("transcriber.provider.name is required"))
	} else if !slices.Contains(ValidProviderNames, name) {
		errs = append(errs, fmt.Errorf("transcriber.provider.name %q is unknown; valid values: %v", name, ValidProviderNames))
	}

	switch name {
	case "whisper-native":
		if cfg.Transcriber.Provider.Model == "" {
			errs = append(errs, errors.New("transcriber.provider.model (gguf model path) is required for whisper-native"))
		}
	case "openai":
		if cfg.Transcriber.Provider.APIKey == "" {
			errs = append(errs, errors.New("transcriber.provider.api_key is required for openai"))
		}
	}

	for i, lang := range cfg.Transcriber.Languages {
		if lang == "" {
			errs = append(errs, fmt.Errorf("transcriber.languages[%d] must not be empty", i))
		}
	}

	return errors.Join(errs...)
}
