// Package notify provides Notifier implementations: a logger-backed sink
// for interactive use and a discard sink for tests.
package notify

import (
	"github.com/book-expert/logger"

	"github.com/voicestudio/studio-client/internal/core"
)

// LogNotifier writes notifications to the application logger. It is the
// terminal analog of the transient toast the web front-end shows.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a notifier backed by log.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Notify implements core.Notifier.
func (n *LogNotifier) Notify(level core.NotifyLevel, message string) {
	if level == core.NotifyError {
		n.log.Warn("Notification: %s", message)

		return
	}

	n.log.Info("Notification: %s", message)
}

// Discard is a Notifier that drops every notification.
type Discard struct{}

// Notify implements core.Notifier.
func (Discard) Notify(core.NotifyLevel, string) {}
