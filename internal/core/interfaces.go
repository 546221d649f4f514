package core

import "context"

// BlobStore defines the interface for a key-value blob store used for
// state snapshots and archived audio.
type BlobStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// NotifyLevel classifies a user-visible notification.
type NotifyLevel string

// Notification levels.
const (
	NotifyInfo  NotifyLevel = "info"
	NotifyError NotifyLevel = "error"
)

// Notifier delivers transient user-visible notifications. Stores use it
// for failures the user should see without the caller having to inspect
// store state.
type Notifier interface {
	Notify(level NotifyLevel, message string)
}
