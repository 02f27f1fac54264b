package style

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/opencode-ai/themekit/internal/theme"
)

// ToLipgloss converts a style object into a lipgloss style. Recognized keys:
// foreground (or color), background, bold, italic, underline, faint,
// padding, margin, border, borderColor, width and align. Unknown keys are
// ignored.
func ToLipgloss(obj Object) lipgloss.Style {
	s := lipgloss.NewStyle()

	if c := firstString(obj, "foreground", "color"); c != "" {
		s = s.Foreground(lipgloss.Color(c))
	}
	if c := firstString(obj, "background"); c != "" {
		s = s.Background(lipgloss.Color(c))
	}
	if b, ok := obj["bold"].(bool); ok {
		s = s.Bold(b)
	}
	if b, ok := obj["italic"].(bool); ok {
		s = s.Italic(b)
	}
	if b, ok := obj["underline"].(bool); ok {
		s = s.Underline(b)
	}
	if b, ok := obj["faint"].(bool); ok {
		s = s.Faint(b)
	}
	if sides, ok := toSides(obj["padding"]); ok {
		s = s.Padding(sides...)
	}
	if sides, ok := toSides(obj["margin"]); ok {
		s = s.Margin(sides...)
	}
	if name := firstString(obj, "border"); name != "" {
		if border, ok := borderByName(name); ok {
			s = s.BorderStyle(border)
		}
	}
	if c := firstString(obj, "borderColor"); c != "" {
		s = s.BorderForeground(lipgloss.Color(c))
	}
	if w, ok := toInt(obj["width"]); ok {
		s = s.Width(w)
	}
	switch firstString(obj, "align") {
	case "center":
		s = s.Align(lipgloss.Center)
	case "right":
		s = s.Align(lipgloss.Right)
	case "left":
		s = s.Align(lipgloss.Left)
	}
	return s
}

func borderByName(name string) (lipgloss.Border, bool) {
	switch strings.ToLower(name) {
	case "normal":
		return lipgloss.NormalBorder(), true
	case "rounded":
		return lipgloss.RoundedBorder(), true
	case "thick":
		return lipgloss.ThickBorder(), true
	case "double":
		return lipgloss.DoubleBorder(), true
	case "hidden":
		return lipgloss.HiddenBorder(), true
	}
	return lipgloss.Border{}, false
}

func firstString(obj Object, keys ...string) string {
	for _, key := range keys {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// toSides accepts a single number or a list of one, two or four numbers.
func toSides(v any) ([]int, bool) {
	if n, ok := toInt(v); ok {
		return []int{n}, true
	}
	var items []any
	switch list := v.(type) {
	case []any:
		items = list
	case []int:
		out := append([]int(nil), list...)
		return out, len(out) > 0 && len(out) <= 4
	default:
		return nil, false
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		n, ok := toInt(item)
		if !ok {
			return nil, false
		}
		out = append(out, n)
	}
	return out, len(out) > 0 && len(out) <= 4
}

// Components lists the builtin compute functions by name.
var Components = map[string]ComputeFunc{
	"text":   TextStyle,
	"title":  TitleStyle,
	"panel":  PanelStyle,
	"status": StatusStyle,
}

// ComponentNames returns the builtin component names, sorted.
func ComponentNames() []string {
	names := make([]string, 0, len(Components))
	for name := range Components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TextStyle colors text by the "role" prop: text (default), muted, accent,
// focus, success, warning, error or info.
func TextStyle(in Input) (Object, error) {
	role := propString(in.Props, "role", "text")
	if role == "muted" {
		role = "text_muted"
	}
	color, err := tokenString(in.Tokens, "colors", role)
	if err != nil {
		return nil, err
	}
	obj := Object{"foreground": color}
	if bold, ok := tokenBool(in.Tokens, "typography", "body", "bold"); ok {
		obj["bold"] = bold
	}
	return obj, nil
}

// TitleStyle renders headings.
func TitleStyle(in Input) (Object, error) {
	color, err := tokenString(in.Tokens, "colors", "text")
	if err != nil {
		return nil, err
	}
	obj := Object{"foreground": color, "bold": true}
	if bold, ok := tokenBool(in.Tokens, "typography", "title", "bold"); ok {
		obj["bold"] = bold
	}
	if underline, ok := tokenBool(in.Tokens, "typography", "title", "underline"); ok {
		obj["underline"] = underline
	}
	return obj, nil
}

// PanelStyle renders a bordered container. The "padding" prop names a
// spacing token (default "sm").
func PanelStyle(in Input) (Object, error) {
	text, err := tokenString(in.Tokens, "colors", "text")
	if err != nil {
		return nil, err
	}
	panel, err := tokenString(in.Tokens, "colors", "panel")
	if err != nil {
		return nil, err
	}
	border, err := tokenString(in.Tokens, "colors", "border")
	if err != nil {
		return nil, err
	}

	obj := Object{
		"foreground":  text,
		"background":  panel,
		"border":      "normal",
		"borderColor": border,
	}
	if name, err := tokenString(in.Tokens, "border", "style"); err == nil {
		obj["border"] = name
	}
	spacing := propString(in.Props, "padding", "sm")
	if v, ok := theme.LookupToken(in.Tokens, "spacing", spacing); ok {
		if n, ok := toInt(v); ok {
			obj["padding"] = []any{0, n}
		}
	}
	return obj, nil
}

var statusRoles = map[string]string{
	"idle":    "text_muted",
	"working": "success",
	"error":   "error",
	"paused":  "warning",
}

// StatusStyle colors an agent-style status badge from the "status" prop.
func StatusStyle(in Input) (Object, error) {
	status := propString(in.Props, "status", "idle")
	role, ok := statusRoles[status]
	if !ok {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	color, err := tokenString(in.Tokens, "colors", role)
	if err != nil {
		return nil, err
	}
	return Object{"foreground": color, "bold": status == "error"}, nil
}

func propString(props map[string]any, key, fallback string) string {
	if s, ok := props[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func tokenString(tokens map[string]any, path ...string) (string, error) {
	v, ok := theme.LookupToken(tokens, path...)
	if !ok {
		return "", fmt.Errorf("missing token %s", strings.Join(path, "."))
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("token %s is not a string", strings.Join(path, "."))
	}
	return s, nil
}

func tokenBool(tokens map[string]any, path ...string) (bool, bool) {
	v, ok := theme.LookupToken(tokens, path...)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}
