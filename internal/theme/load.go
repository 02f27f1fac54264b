package theme

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadTheme reads a single theme definition from disk.
func LoadTheme(path string) (*ThemeDefinition, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("theme path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read theme %s: %w", path, err)
	}

	theme, err := parseTheme(data)
	if err != nil {
		return nil, fmt.Errorf("parse theme %s: %w", path, err)
	}
	theme.Source = path
	return theme, nil
}

// LoadThemesFromDir loads every .yaml/.yml theme in dir, sorted by id.
// A missing directory yields no themes.
func LoadThemesFromDir(dir string) ([]*ThemeDefinition, error) {
	if strings.TrimSpace(dir) == "" {
		return []*ThemeDefinition{}, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*ThemeDefinition{}, nil
		}
		return nil, fmt.Errorf("read themes dir %s: %w", dir, err)
	}

	themes := make([]*ThemeDefinition, 0)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		theme, err := LoadTheme(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		themes = append(themes, theme)
	}

	sort.Slice(themes, func(i, j int) bool {
		return themes[i].ID < themes[j].ID
	})
	return themes, nil
}

func parseTheme(data []byte) (*ThemeDefinition, error) {
	var theme ThemeDefinition
	if err := yaml.Unmarshal(data, &theme); err != nil {
		return nil, err
	}

	theme.ID = strings.TrimSpace(theme.ID)
	theme.Name = strings.TrimSpace(theme.Name)
	theme.Version = strings.TrimSpace(theme.Version)
	if theme.Name == "" {
		theme.Name = theme.ID
	}
	if err := theme.Validate(); err != nil {
		return nil, err
	}
	return &theme, nil
}

// RegisterAll registers themes in dependency order in a single batch.
func RegisterAll(reg *Registry, themes []*ThemeDefinition, opts RegisterOptions) error {
	batch := make([]Registration, 0, len(themes))
	for _, theme := range themes {
		batch = append(batch, Registration{Theme: theme, Options: opts})
	}
	return reg.RegisterBatch(batch)
}
