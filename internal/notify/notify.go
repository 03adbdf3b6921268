// Package notify delivers per-user notifications produced by the batch jobs.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Notification kinds.
const (
	KindClaimsDiscovered = "claims_discovered"
)

// Payload is what a user is told.
type Payload struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
	RunID string `json:"run_id,omitempty"`
}

// Message is the envelope written to the transport.
type Message struct {
	UserID  int64     `json:"user_id"`
	Payload Payload   `json:"payload"`
	SentAt  time.Time `json:"sent_at"`
}

// Dispatcher delivers one notification to one user.
type Dispatcher interface {
	Notify(ctx context.Context, userID int64, p Payload) error
}

// LogDispatcher writes notifications to the log. Used when no broker is configured.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a log-only dispatcher.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogDispatcher{logger: logger}
}

// Notify logs the notification.
func (d *LogDispatcher) Notify(_ context.Context, userID int64, p Payload) error {
	d.logger.Info("user notification",
		"user_id", userID,
		"kind", p.Kind,
		"count", p.Count,
		"run_id", p.RunID,
	)
	return nil
}
