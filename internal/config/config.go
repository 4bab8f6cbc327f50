package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads the YAML config at path. Files named under `include` are
// merged first (depth-first, in listed order) so the including file wins
// on conflicting keys.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	l := &loader{merged: viper.New(), done: make(map[string]bool)}
	l.merged.SetConfigType("yaml")
	if err := l.merge(abs); err != nil {
		return nil, err
	}

	var cfg Config
	if err := l.merged.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}

	set := make(keySet)
	markSettings("", l.merged.AllSettings(), set)
	cfg.applyDefaults(set)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loader accumulates config files into one viper instance. chain holds the
// include path currently being expanded, for cycle detection; done skips
// files already merged through another branch.
type loader struct {
	merged *viper.Viper
	done   map[string]bool
	chain  []string
}

func (l *loader) merge(path string) error {
	path = filepath.Clean(path)
	for _, ancestor := range l.chain {
		if ancestor == path {
			return fmt.Errorf("include cycle detected: %s", path)
		}
	}
	if l.done[path] {
		return nil
	}

	file := viper.New()
	file.SetConfigFile(path)
	if err := file.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	includes, err := includeList(file)
	if err != nil {
		return fmt.Errorf("parsing include failed (%s): %w", path, err)
	}

	l.chain = append(l.chain, path)
	dir := filepath.Dir(path)
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(dir, inc)
		}
		if err := l.merge(inc); err != nil {
			return err
		}
	}
	l.chain = l.chain[:len(l.chain)-1]
	l.done[path] = true
	return l.merged.MergeConfigMap(file.AllSettings())
}

func includeList(v *viper.Viper) ([]string, error) {
	raw := v.Get("include")
	if raw == nil {
		return nil, nil
	}
	var items []any
	switch val := raw.(type) {
	case []any:
		items = val
	case []string:
		for _, s := range val {
			items = append(items, s)
		}
	default:
		return nil, fmt.Errorf("include must be a string array")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("include only supports strings")
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

// markSettings records every key path present in the merged settings, so
// the defaulting pass can tell an explicit zero from an absent field.
func markSettings(prefix string, node any, dest keySet) {
	m, ok := node.(map[string]any)
	if !ok {
		if prefix != "" {
			dest.mark(prefix)
		}
		return
	}
	for k, v := range m {
		key := strings.ToLower(strings.TrimSpace(k))
		if key == "" {
			continue
		}
		if prefix != "" {
			key = prefix + "." + key
		}
		markSettings(key, v, dest)
	}
}
