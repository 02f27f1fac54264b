package theme

import (
	"os"
	"path/filepath"
)

// ThemeSearchPaths returns theme directories in precedence order.
func ThemeSearchPaths(projectDir string) []string {
	paths := make([]string, 0, 3)
	if projectDir != "" {
		paths = append(paths, filepath.Join(projectDir, ".themekit", "themes"))
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".config", "themekit", "themes"))
	}

	paths = append(paths, filepath.Join(string(filepath.Separator), "usr", "share", "themekit", "themes"))
	return paths
}

// LoadThemesFromSearchPaths loads themes from extraDirs, then the search
// paths, then the builtins. The first theme seen for an id wins.
func LoadThemesFromSearchPaths(projectDir string, extraDirs ...string) ([]*ThemeDefinition, error) {
	paths := append(append([]string{}, extraDirs...), ThemeSearchPaths(projectDir)...)
	seen := make(map[string]*ThemeDefinition)
	order := make([]string, 0)

	add := func(themes []*ThemeDefinition) {
		for _, theme := range themes {
			if _, exists := seen[theme.ID]; exists {
				continue
			}
			seen[theme.ID] = theme
			order = append(order, theme.ID)
		}
	}

	for _, path := range paths {
		themes, err := LoadThemesFromDir(path)
		if err != nil {
			return nil, err
		}
		add(themes)
	}

	builtins, err := LoadBuiltinThemes()
	if err != nil {
		return nil, err
	}
	add(builtins)

	resolved := make([]*ThemeDefinition, 0, len(order))
	for _, id := range order {
		resolved = append(resolved, seen[id])
	}
	return resolved, nil
}
