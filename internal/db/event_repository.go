package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opencode-ai/themekit/internal/theme"
)

// ThemeEvent is a persisted registry event.
type ThemeEvent struct {
	ID              string          `json:"id"`
	Timestamp       time.Time       `json:"timestamp"`
	Type            theme.EventType `json:"type"`
	ThemeID         string          `json:"theme_id,omitempty"`
	PreviousThemeID string          `json:"previous_theme_id,omitempty"`
}

// EventRepository records registry events.
type EventRepository struct {
	db *DB
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create appends an event to the log.
func (r *EventRepository) Create(ctx context.Context, event *ThemeEvent) error {
	if event.Type == "" {
		return fmt.Errorf("event type is required")
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	} else {
		event.Timestamp = event.Timestamp.UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO theme_events (id, timestamp, type, theme_id, previous_theme_id)
		VALUES (?, ?, ?, ?, ?)
	`,
		event.ID,
		event.Timestamp.Format(time.RFC3339Nano),
		string(event.Type),
		nullString(event.ThemeID),
		nullString(event.PreviousThemeID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert theme event: %w", err)
	}
	return nil
}

// List returns the most recent events, newest first. A themeID filters by
// theme; limit defaults to 100.
func (r *EventRepository) List(ctx context.Context, themeID string, limit int) ([]*ThemeEvent, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, timestamp, type, COALESCE(theme_id, ''), COALESCE(previous_theme_id, '')
		FROM theme_events WHERE 1=1`
	args := []any{}
	if themeID != "" {
		query += ` AND theme_id = ?`
		args = append(args, themeID)
	}
	query += ` ORDER BY rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query theme events: %w", err)
	}
	defer rows.Close()

	var events []*ThemeEvent
	for rows.Next() {
		var event ThemeEvent
		var timestamp, eventType string
		if err := rows.Scan(&event.ID, &timestamp, &eventType, &event.ThemeID, &event.PreviousThemeID); err != nil {
			return nil, fmt.Errorf("failed to scan theme event: %w", err)
		}
		event.Type = theme.EventType(eventType)
		if t, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
			event.Timestamp = t
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating theme events: %w", err)
	}
	return events, nil
}

// Listener returns a registry listener that appends every event to the log.
func (r *EventRepository) Listener(ctx context.Context) theme.Listener {
	return func(event theme.Event) error {
		record := &ThemeEvent{Type: event.Type()}
		switch e := event.(type) {
		case theme.ThemeRegistered:
			record.ThemeID = e.Theme.ID
		case theme.ThemeUnregistered:
			record.ThemeID = e.ThemeID
		case theme.ThemeChanged:
			record.ThemeID = e.ThemeID
			record.PreviousThemeID = e.PreviousThemeID
		}
		return r.Create(ctx, record)
	}
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
