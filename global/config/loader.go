package config

import (
	"os"

	"ArgbRelay/tools/decode"
	"ArgbRelay/tools/errs"

	"github.com/Netflix/go-env"
	"gopkg.in/yaml.v3"
)

// Load reads the yaml file at path (empty path means no file), applies
// defaults, then ARGB_* environment overrides, and validates the result.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.WrapMsg(err, "read config", "path", path)
		}
		if err := Parse(raw, cfg); err != nil {
			return nil, errs.WrapMsg(err, "parse config", "path", path)
		}
	}

	cfg.norm()

	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, errs.WrapMsg(err, "read environment")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a yaml document over cfg. Durations accept "5s" style strings.
func Parse(raw []byte, cfg *AppConfig) error {
	doc := map[string]any{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return errs.Wrap(err)
	}
	if len(doc) == 0 {
		return nil
	}
	return decode.DecodeInto(doc, cfg)
}
