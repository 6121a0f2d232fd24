package session

import (
	"context"
	"log/slog"

	"github.com/sigweihq/walletsession/pkg/types"
)

// Notifier receives the notices a presentation layer renders
type Notifier interface {
	Notify(types.Notice)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(types.Notice)

func (f NotifierFunc) Notify(n types.Notice) { f(n) }

// LogNotifier writes notices to a structured logger
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(notice types.Notice) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}

	level := slog.LevelInfo
	if notice.Level == types.LevelError {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, notice.Message, "kind", notice.Kind)
}

// Reloader discards the hosting context after a chain switch
// Implementations must tear down the controller and provider and start a fresh session
type Reloader interface {
	Reload()
}

// ReloadFunc adapts a function to Reloader
type ReloadFunc func()

func (f ReloadFunc) Reload() { f() }
