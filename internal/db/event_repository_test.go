package db

import (
	"context"
	"testing"

	"github.com/opencode-ai/themekit/internal/theme"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestEventRepositoryRecordsRegistryEvents(t *testing.T) {
	ctx := context.Background()
	repo := NewEventRepository(openTestDB(t))

	themes, err := theme.LoadBuiltinThemes()
	require.NoError(t, err)

	reg := theme.NewRegistry(theme.RegistryConfig{}, theme.WithLogger(zerolog.Nop()))
	reg.AddEventListener(repo.Listener(ctx))

	require.NoError(t, theme.RegisterAll(reg, themes, theme.RegisterOptions{}))
	require.NoError(t, reg.SetActiveTheme("light"))

	events, err := repo.List(ctx, "", 0)
	require.NoError(t, err)
	// 3 registered + initial activation + switch to light.
	require.Len(t, events, 5)
	require.Equal(t, theme.EventTypeThemeChanged, events[0].Type)
	require.Equal(t, "light", events[0].ThemeID)
	require.Equal(t, "default", events[0].PreviousThemeID)
	require.NotEmpty(t, events[0].ID)
	require.False(t, events[0].Timestamp.IsZero())

	lightEvents, err := repo.List(ctx, "light", 10)
	require.NoError(t, err)
	require.Len(t, lightEvents, 2)

	limited, err := repo.List(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
}

func TestEventRepositoryRequiresType(t *testing.T) {
	repo := NewEventRepository(openTestDB(t))
	require.Error(t, repo.Create(context.Background(), &ThemeEvent{}))
}
