package starlark

import (
	"log/slog"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// maxSteps bounds a single evaluation so a runaway helper cannot hang the
// command loop.
const maxSteps = 10_000_000

// fileOptions is the dialect used for expressions and helper libraries.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// threadLoggerKey stores the logger on a thread for builtins.
const threadLoggerKey = "dynmacro.logger"

// newThread creates a Starlark thread whose print output goes to logger.
func newThread(name string, logger *slog.Logger) *starlark.Thread {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	thread := &starlark.Thread{
		Name: name,
		Print: func(t *starlark.Thread, msg string) {
			logger.Info(msg, slog.String("thread", t.Name))
		},
	}
	thread.SetMaxExecutionSteps(maxSteps)
	thread.SetLocal(threadLoggerKey, logger)
	return thread
}

// threadLogger returns the logger attached by newThread.
func threadLogger(thread *starlark.Thread) *slog.Logger {
	if l, ok := thread.Local(threadLoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}
