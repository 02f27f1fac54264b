package theme

import "errors"

// Registry errors. Returned errors wrap one of these; use errors.Is.
var (
	ErrThemeNotFound   = errors.New("theme not found")
	ErrThemeInvalid    = errors.New("invalid theme")
	ErrThemeLoadFailed = errors.New("theme load failed")
)
