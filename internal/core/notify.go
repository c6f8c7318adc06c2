package core

import (
	"context"
	"log/slog"
)

// Notifier tells the operator about finished work on large batches.
type Notifier interface {
	Notify(ctx context.Context, title, content string) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(ctx context.Context, title, content string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification", "title", title, "content", content)
	return nil
}
