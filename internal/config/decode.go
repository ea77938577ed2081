package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// decode parses data as JSON or YAML (by file extension) into a Config.
// Unknown keys and trailing documents are rejected. ${VAR} references in
// string values are expanded from the environment.
func decode(path string, data []byte) (*Config, error) {
	jb, err := toJSON(path, data)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}
	return &cfg, nil
}

func toJSON(path string, data []byte) ([]byte, error) {
	var v any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("yaml unmarshal: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		if dec.More() {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
	}
	if v == nil {
		v = map[string]any{}
	}

	out, err := json.Marshal(expand(v))
	if err != nil {
		return nil, fmt.Errorf("config marshal: %w", err)
	}
	return out, nil
}

// expand stringifies YAML map keys and expands env references in strings.
func expand(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = expand(v)
		}
		return m
	case map[string]any:
		for k, v := range x {
			x[k] = expand(v)
		}
		return x
	case []any:
		for i := range x {
			x[i] = expand(x[i])
		}
		return x
	case string:
		if strings.Contains(x, "${") {
			return os.Expand(x, func(key string) string { return os.Getenv(key) })
		}
		return x
	default:
		return in
	}
}
