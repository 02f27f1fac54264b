package theme

// EventType categorizes registry events.
type EventType string

const (
	EventTypeThemeRegistered   EventType = "theme.registered"
	EventTypeThemeUnregistered EventType = "theme.unregistered"
	EventTypeThemeChanged      EventType = "theme.changed"
	EventTypeRegistryCleared   EventType = "registry.cleared"
)

// Event is one of ThemeRegistered, ThemeUnregistered, ThemeChanged or
// RegistryCleared.
type Event interface {
	Type() EventType
}

// ThemeRegistered is emitted after a theme is stored.
type ThemeRegistered struct {
	Theme *ThemeDefinition
}

// ThemeUnregistered is emitted after a theme is removed.
type ThemeUnregistered struct {
	ThemeID string
}

// ThemeChanged is emitted when the active theme is set. PreviousThemeID is
// empty when no theme was active; ThemeID is empty when the registry has no
// theme left to activate.
type ThemeChanged struct {
	ThemeID         string
	PreviousThemeID string
	Theme           *ThemeDefinition
}

// RegistryCleared is emitted by Clear.
type RegistryCleared struct{}

func (ThemeRegistered) Type() EventType   { return EventTypeThemeRegistered }
func (ThemeUnregistered) Type() EventType { return EventTypeThemeUnregistered }
func (ThemeChanged) Type() EventType      { return EventTypeThemeChanged }
func (RegistryCleared) Type() EventType   { return EventTypeRegistryCleared }

// Listener receives registry events. A returned error is logged and does not
// stop delivery to other listeners.
type Listener func(Event) error
