package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/opencode-ai/themekit/internal/cache"
	"github.com/opencode-ai/themekit/internal/config"
	"github.com/opencode-ai/themekit/internal/db"
	"github.com/opencode-ai/themekit/internal/logging"
	"github.com/opencode-ai/themekit/internal/style"
	"github.com/opencode-ai/themekit/internal/theme"
	"github.com/rs/zerolog"
)

// runtime wires the registry, style factory and storage for one command.
type runtime struct {
	cfg       *config.Config
	registry  *theme.Registry
	factory   *style.Factory
	database  *db.DB
	events    *db.EventRepository
	snapshots *db.SnapshotRepository
	logger    zerolog.Logger
}

func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	rt := &runtime{
		cfg:    cfg,
		logger: logging.Component("cli"),
	}

	storage, err := rt.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	rt.registry = theme.NewRegistry(cfg.ThemeRegistryConfig())
	if rt.events != nil {
		rt.registry.AddEventListener(rt.events.Listener(ctx))
	}

	rt.factory = style.NewFactory(style.WithStorage(storage))
	rt.factory.Attach(rt.registry)

	if err := rt.loadThemes(); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) openStorage(ctx context.Context) (cache.Storage, error) {
	switch rt.cfg.Storage.Backend {
	case config.BackendFile:
		return cache.NewFileStorage(rt.cfg.StoragePath()), nil
	case config.BackendSQLite:
		database, err := db.Open(rt.cfg.StoragePath())
		if err != nil {
			return nil, err
		}
		if _, err := database.MigrateUp(ctx); err != nil {
			database.Close()
			return nil, err
		}
		rt.database = database
		rt.events = db.NewEventRepository(database)
		rt.snapshots = db.NewSnapshotRepository(database)
		return rt.snapshots, nil
	default:
		return cache.NewMemoryStorage(), nil
	}
}

func (rt *runtime) loadThemes() error {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	themes, err := theme.LoadThemesFromSearchPaths(cwd, rt.cfg.Registry.ThemeDirs...)
	if err != nil {
		return fmt.Errorf("%w: %v", theme.ErrThemeLoadFailed, err)
	}
	if err := theme.RegisterAll(rt.registry, themes, theme.RegisterOptions{}); err != nil {
		return err
	}

	if id := rt.cfg.Registry.DefaultTheme; id != "" && rt.registry.Has(id) && rt.registry.ActiveThemeID() != id {
		if err := rt.registry.SetActiveTheme(id); err != nil {
			return err
		}
	}
	rt.logger.Debug().Int("themes", rt.registry.Len()).Str("active", rt.registry.ActiveThemeID()).Msg("themes loaded")
	return nil
}

// selectTheme returns the named theme, or the active one when id is empty.
func (rt *runtime) selectTheme(id string) (*theme.ThemeDefinition, error) {
	if id == "" {
		active, ok := rt.registry.ActiveTheme()
		if !ok {
			return nil, style.ErrNoActiveTheme
		}
		return active, nil
	}
	th, ok := rt.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", theme.ErrThemeNotFound, id)
	}
	return th, nil
}

// Close flushes persisted caches and releases storage.
func (rt *runtime) Close() error {
	var errs []error
	if rt.factory != nil {
		if err := rt.factory.Flush(context.Background()); err != nil {
			errs = append(errs, err)
		}
		rt.factory.Destroy()
	}
	if rt.database != nil {
		if err := rt.database.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
