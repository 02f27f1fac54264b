package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/opencode-ai/themekit/internal/db"
	"github.com/opencode-ai/themekit/internal/style"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag to its default so commands can be executed
// repeatedly within one test binary.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if slice, ok := f.Value.(pflag.SliceValue); ok {
			_ = slice.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

// testEnv isolates the working directory and home from user themes and
// config, and writes a config file for the given storage backend.
func testEnv(t *testing.T, configYAML string) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", dir)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	appConfig = nil

	out := new(bytes.Buffer)
	rootCmd.SetOut(out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

const memoryConfig = `log:
  level: error
storage:
  backend: memory
`

func TestThemesList(t *testing.T) {
	cfg := testEnv(t, memoryConfig)

	out, err := execute(t, "--config", cfg, "--json", "themes", "list")
	require.NoError(t, err)

	var themes []themeSummary
	require.NoError(t, json.Unmarshal([]byte(out), &themes))
	require.Len(t, themes, 3)
	require.Equal(t, "default", themes[0].ID)
	require.True(t, themes[0].Active)
	require.Equal(t, []string{"default"}, themes[1].Dependencies)

	out, err = execute(t, "--config", cfg, "themes", "list")
	require.NoError(t, err)
	require.Contains(t, out, "ID")
	require.Contains(t, out, "high-contrast")
}

func TestThemesListIncludesConfiguredDirs(t *testing.T) {
	dir := t.TempDir()
	themeDir := filepath.Join(dir, "themes")
	require.NoError(t, os.MkdirAll(themeDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(themeDir, "ocean.yaml"), []byte(oceanTheme), 0o644))

	cfg := testEnv(t, memoryConfig+"registry:\n  default_theme: ocean\n  theme_dirs:\n    - "+themeDir+"\n")

	out, err := execute(t, "--config", cfg, "--json", "themes", "list")
	require.NoError(t, err)

	var themes []themeSummary
	require.NoError(t, json.Unmarshal([]byte(out), &themes))
	require.Len(t, themes, 4)
	for _, th := range themes {
		require.Equal(t, th.ID == "ocean", th.Active, th.ID)
	}
}

const oceanTheme = `id: ocean
name: Ocean
version: "1.0.0"
dependencies:
  - default
tokens:
  colors:
    text: "#E0F7FA"
    text_muted: "#80DEEA"
    panel: "#01579B"
    border: "#0277BD"
    accent: "#4DD0E1"
  typography:
    body:
      bold: false
  spacing:
    sm: 1
    md: 2
`

func TestThemesValidate(t *testing.T) {
	cfg := testEnv(t, memoryConfig)
	dir := t.TempDir()

	good := filepath.Join(dir, "ocean.yaml")
	require.NoError(t, os.WriteFile(good, []byte(oceanTheme), 0o644))
	out, err := execute(t, "--config", cfg, "themes", "validate", good)
	require.NoError(t, err)
	require.Contains(t, out, "OK")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("id: bad\nname: Bad\nversion: \"1\"\ntokens:\n  colors: {}\n"), 0o644))
	out, err = execute(t, "--config", cfg, "themes", "validate", good, bad)
	require.Error(t, err)
	require.Contains(t, out, "FAIL "+bad)
}

func TestThemesValidateDetectsCycles(t *testing.T) {
	cfg := testEnv(t, memoryConfig)
	dir := t.TempDir()

	write := func(id, dep string) string {
		path := filepath.Join(dir, id+".yaml")
		body := "id: " + id + "\nname: " + id + "\nversion: \"1\"\ndependencies: [" + dep + "]\n" +
			"tokens:\n  colors: {text: \"#fff\"}\n  typography: {}\n  spacing: {}\n"
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}
	a := write("alpha", "beta")
	b := write("beta", "alpha")

	out, err := execute(t, "--config", cfg, "--json", "themes", "validate", a, b)
	require.Error(t, err)

	var results []validationResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 2)
	require.False(t, results[0].Valid)
	require.Contains(t, results[0].Error, "circular dependency")
}

func TestThemesShowVariant(t *testing.T) {
	cfg := testEnv(t, memoryConfig)

	out, err := execute(t, "--config", cfg, "--json", "themes", "show", "default", "--variant", "compact")
	require.NoError(t, err)

	var shown struct {
		ID     string         `json:"id"`
		Tokens map[string]any `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	require.Equal(t, "default", shown.ID)
	spacing := shown.Tokens["spacing"].(map[string]any)
	require.EqualValues(t, 1, spacing["md"])

	_, err = execute(t, "--config", cfg, "themes", "show", "default", "--variant", "missing")
	require.Error(t, err)

	out, err = execute(t, "--config", cfg, "themes", "show", "light")
	require.NoError(t, err)
	require.Contains(t, out, "id: light")
}

func TestThemesShowToken(t *testing.T) {
	cfg := testEnv(t, memoryConfig)

	out, err := execute(t, "--config", cfg, "themes", "show", "default", "--token", "spacing.md")
	require.NoError(t, err)
	require.Equal(t, "2", strings.TrimSpace(out))

	out, err = execute(t, "--config", cfg, "themes", "show", "default", "--token", "spacing.md", "--variant", "compact")
	require.NoError(t, err)
	require.Equal(t, "1", strings.TrimSpace(out))

	out, err = execute(t, "--config", cfg, "--json", "themes", "show", "default", "--token", "colors.text")
	require.NoError(t, err)
	require.Equal(t, `"#E6EDF3"`, strings.TrimSpace(out))

	_, err = execute(t, "--config", cfg, "themes", "show", "default", "--token", "colors.missing")
	require.Error(t, err)
}

func TestStylesGenerate(t *testing.T) {
	cfg := testEnv(t, memoryConfig)

	out, err := execute(t, "--config", cfg, "--json", "styles", "generate",
		"--component", "panel", "--prop", "padding=md", "--breakpoint", "wide")
	require.NoError(t, err)

	var result style.Result
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Equal(t, "default", result.Theme)
	require.Equal(t, "panel", result.Component)
	require.Contains(t, result.Key, "panel:")
	require.EqualValues(t, 80, result.Style["width"])

	_, err = execute(t, "--config", cfg, "styles", "generate", "--component", "nope")
	require.ErrorIs(t, err, style.ErrUnknownComponent)

	_, err = execute(t, "--config", cfg, "styles", "generate", "--prop", "broken")
	require.Error(t, err)
}

func TestStylesRender(t *testing.T) {
	cfg := testEnv(t, memoryConfig)

	out, err := execute(t, "--config", cfg, "styles", "render", "status", "--theme", "light", "--text", "sample")
	require.NoError(t, err)
	require.Contains(t, out, "status[status=error]")
	require.Contains(t, out, "sample")
}

func TestSQLiteBackendPersistsCachesAndHistory(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "themekit.db")
	cfg := testEnv(t, `log:
  level: error
cache:
  enable_persistence: true
storage:
  backend: sqlite
  path: `+dbPath+`
`)

	out, err := execute(t, "--config", cfg, "--json", "cache", "stats", "--warm")
	require.NoError(t, err)
	var warmed []style.GeneratorStats
	require.NoError(t, json.Unmarshal([]byte(out), &warmed))
	require.NotEmpty(t, warmed)

	out, err = execute(t, "--config", cfg, "--json", "cache", "stats")
	require.NoError(t, err)
	var restored []style.GeneratorStats
	require.NoError(t, json.Unmarshal([]byte(out), &restored))
	total := 0
	for _, g := range restored {
		total += g.Stats.Size
	}
	require.Positive(t, total)

	out, err = execute(t, "--config", cfg, "--json", "cache", "snapshots")
	require.NoError(t, err)
	var keys []string
	require.NoError(t, json.Unmarshal([]byte(out), &keys))
	require.NotEmpty(t, keys)

	// A snapshot no pooled generator owns, e.g. of a theme that was deleted.
	database, err := db.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, db.NewSnapshotRepository(database).Write(context.Background(), "styles:retired:000000000000", []byte(`{"entries":[]}`)))
	require.NoError(t, database.Close())

	out, err = execute(t, "--config", cfg, "cache", "clear")
	require.NoError(t, err)
	require.Contains(t, out, "Cleared")
	require.Contains(t, out, "Removed 1 orphaned snapshots.")

	out, err = execute(t, "--config", cfg, "--json", "cache", "snapshots")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &keys))
	require.Empty(t, keys)

	out, err = execute(t, "--config", cfg, "--json", "cache", "stats")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &restored))
	for _, g := range restored {
		require.Zero(t, g.Stats.Size)
	}

	out, err = execute(t, "--config", cfg, "--json", "themes", "history", "--theme", "light")
	require.NoError(t, err)
	require.Contains(t, out, `"theme.registered"`)
}

func TestHistoryRequiresSQLite(t *testing.T) {
	cfg := testEnv(t, memoryConfig)
	_, err := execute(t, "--config", cfg, "themes", "history")
	require.ErrorContains(t, err, "sqlite")

	_, err = execute(t, "--config", cfg, "cache", "snapshots")
	require.ErrorContains(t, err, "sqlite")
}

func TestFileBackendPersistsCaches(t *testing.T) {
	dir := t.TempDir()
	cfg := testEnv(t, `log:
  level: error
cache:
  enable_persistence: true
storage:
  backend: file
  path: `+filepath.Join(dir, "snapshots")+`
`)

	_, err := execute(t, "--config", cfg, "styles", "generate", "--component", "title")
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "snapshots"))
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}
