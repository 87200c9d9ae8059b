package app

import "errors"

// DefaultMaxNodes is the node-count ceiling applied when none is
// configured. It guards against pathological template sizes; evaluation
// cost is proportional to node count.
const DefaultMaxNodes = 2048

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	TemplatePath string            // .hcl template file or directory
	ParamsFile   string            // optional YAML param values
	Params       map[string]string // -param overrides, highest precedence

	LogFormat string
	LogLevel  string
	MaxNodes  int
	Trace     bool
	Apply     bool
}

// NewConfig validates a Config and applies defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.TemplatePath == "" {
		return nil, errors.New("TemplatePath is a required configuration field and cannot be empty")
	}
	if cfg.MaxNodes <= 0 {
		cfg.MaxNodes = DefaultMaxNodes
	}
	return &cfg, nil
}
