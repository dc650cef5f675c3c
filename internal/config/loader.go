package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix marks environment overrides. A double underscore separates
// the section from the key: SYZYGY_NOTIFY__TOKEN sets notify.token.
const EnvPrefix = "SYZYGY_"

// Load builds a Config by layering defaults, an optional TOML file, and
// environment variables, then validates the result.
//
// Order of precedence (low -> high):
//  1. Default()
//  2. file at path, if path is not empty
//  3. env (prefix SYZYGY_)
func Load(path string) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), TOML()); err != nil {
			return cfg, fmt.Errorf("load %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", envKey)
	if err := k.Load(envProvider, nil); err != nil {
		return cfg, fmt.Errorf("load environment: %w", err)
	}

	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// envKey maps SYZYGY_ALERT__POLL_INTERVAL to alert.poll_interval.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// tomlParser adapts go-toml to koanf's Parser interface.
type tomlParser struct{}

// TOML returns a koanf parser for TOML documents.
func TOML() koanf.Parser { return tomlParser{} }

func (tomlParser) Unmarshal(b []byte) (map[string]any, error) {
	var out map[string]any
	if err := toml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (tomlParser) Marshal(m map[string]any) ([]byte, error) {
	return toml.Marshal(m)
}
