// Package notification delivers user-facing notices for approval and
// settlement events. Delivery is fire-and-forget; a failed notification never
// fails the operation that triggered it.
package notification

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Notice is a single user-facing notification
type Notice struct {
	UserID  uuid.UUID
	Subject string
	Body    string
}

// Notifier delivers notices to users
type Notifier interface {
	Notify(ctx context.Context, notice *Notice)
}

// LogNotifier writes notices to the structured log. Stands in for a real
// channel (email, push) in development and tests.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log-backed notifier
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, notice *Notice) {
	n.logger.Info("Notification",
		"user_id", notice.UserID.String(),
		"subject", notice.Subject,
		"body", notice.Body,
	)
}
