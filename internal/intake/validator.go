// Package intake validates and stages audio files before they enter a
// clone submission. Validation is a pure policy check on (type, size);
// staging owns the local preview copies and releases them when a file is
// removed or the staged set is drained.
package intake

import (
	"errors"
	"fmt"
)

// MaxFileSize is the upload ceiling for a single audio sample.
const MaxFileSize = 50 << 20 // 50 MiB

// Static errors.
var (
	ErrTypeNotAllowed = errors.New("file type not allowed")
	ErrFileTooLarge   = errors.New("file too large")
)

// allowedMIMETypes is the fixed allow-list of audio formats accepted for
// voice cloning.
var allowedMIMETypes = map[string]struct{}{
	"audio/wav":   {},
	"audio/x-wav": {},
	"audio/mp3":   {},
	"audio/mpeg":  {},
	"audio/ogg":   {},
	"audio/webm":  {},
}

// Validate checks an audio file against the intake policy. It is
// deterministic on (mimeType, size) and performs no I/O; name is used
// only to make the returned reason self-describing.
func Validate(name, mimeType string, size int64) error {
	if _, ok := allowedMIMETypes[mimeType]; !ok {
		return fmt.Errorf("%w: %s has type %q", ErrTypeNotAllowed, name, mimeType)
	}

	if size > MaxFileSize {
		return fmt.Errorf(
			"%w: %s is %d bytes (limit %d)",
			ErrFileTooLarge,
			name,
			size,
			int64(MaxFileSize),
		)
	}

	return nil
}
