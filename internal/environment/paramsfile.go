package environment

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadParamsFile reads a YAML file of parameter values, a flat mapping of
// param name to scalar. Values are kept as strings; Resolve converts them
// to each parameter's declared type.
func LoadParamsFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read params file %s: %w", path, err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse params file %s: %w", path, err)
	}

	out := make(map[string]string, len(raw))
	for name, val := range raw {
		switch v := val.(type) {
		case string:
			out[name] = v
		case bool:
			out[name] = fmt.Sprintf("%t", v)
		case int, int64, float64:
			out[name] = fmt.Sprintf("%v", v)
		case nil:
			return nil, fmt.Errorf("params file %s: param %q has no value", path, name)
		default:
			return nil, fmt.Errorf("params file %s: param %q must be a scalar, got %T", path, name, val)
		}
	}
	return out, nil
}
