package forms

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
)

//go:embed configs/*.json
var configFS embed.FS

const DefaultKey = "fenetre"

// aliases maps product types that share a configuration with another one.
var aliases = map[string]string{
	"galandage":    "coulissant",
	"chassis-fixe": "fenetre",
}

type Registry struct {
	configs map[string]FormConfig
}

// NewRegistry parses every embedded configuration once. It fails fast at startup
// on malformed documents rather than at request time.
func NewRegistry() (*Registry, error) {
	entries, err := configFS.ReadDir("configs")
	if err != nil {
		return nil, fmt.Errorf("read form configs: %w", err)
	}
	configs := make([]FormConfig, 0, len(entries))
	for _, entry := range entries {
		data, err := configFS.ReadFile(path.Join("configs", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		var cfg FormConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", entry.Name(), err)
		}
		configs = append(configs, cfg)
	}
	return NewRegistryFrom(configs...)
}

func NewRegistryFrom(configs ...FormConfig) (*Registry, error) {
	r := &Registry{configs: make(map[string]FormConfig, len(configs))}
	for _, cfg := range configs {
		if err := cfg.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.configs[cfg.Key]; dup {
			return nil, fmt.Errorf("duplicate form config %s", cfg.Key)
		}
		r.configs[cfg.Key] = cfg
	}
	if _, ok := r.configs[DefaultKey]; !ok {
		return nil, fmt.Errorf("default form config %s is missing", DefaultKey)
	}
	return r, nil
}

func (r *Registry) Get(key string) (FormConfig, bool) {
	cfg, ok := r.configs[strings.ToLower(strings.TrimSpace(key))]
	return cfg, ok
}

// Resolve always returns a configuration: aliases first, then the default form.
func (r *Registry) Resolve(key string) FormConfig {
	key = strings.ToLower(strings.TrimSpace(key))
	if cfg, ok := r.configs[key]; ok {
		return cfg
	}
	if target, ok := aliases[key]; ok {
		if cfg, ok := r.configs[target]; ok {
			return cfg
		}
	}
	return r.configs[DefaultKey]
}

func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.configs))
	for key := range r.configs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
