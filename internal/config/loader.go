package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvConfigFile names the optional YAML file.
	EnvConfigFile = "GHUSERS_CONFIG"
	envPrefix     = "GHUSERS_"
)

// legacySecrets are read without the prefix and win over everything else.
var legacySecrets = map[string]string{
	"GITHUB_TOKEN":     "github_token",
	"API_ACCESS_TOKEN": "api_access_token",
}

// Load builds a Config by layering, from low to high precedence:
//  1. defaults (New)
//  2. the YAML file named by GHUSERS_CONFIG, if set
//  3. GHUSERS_* environment variables, e.g. GHUSERS_DATA_DIR -> data_dir
//  4. GITHUB_TOKEN and API_ACCESS_TOKEN
func Load(_ context.Context) (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(EnvConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	for name, key := range legacySecrets {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			if err := k.Set(key, v); err != nil {
				return nil, fmt.Errorf("setting %s: %w", key, err)
			}
		}
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
