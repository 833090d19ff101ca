package starlark

import (
	"errors"
	"log/slog"

	"go.starlark.net/starlark"
)

// Responder receives informational messages emitted by templates.
type Responder interface {
	RespondInfo(msg string)
}

// ErrRaised wraps messages raised through action_raise_error.
var ErrRaised = errors.New("macro raised error")

// RaisedError is returned when a template calls action_raise_error.
type RaisedError struct {
	Message string
}

func (e *RaisedError) Error() string { return e.Message }

// Is matches ErrRaised.
func (e *RaisedError) Is(target error) bool { return target == ErrRaised }

// Predeclared returns the action helpers every template can call:
//
//	action_respond_info(msg)  send msg to the invoking client
//	action_raise_error(msg)   abort the run with msg
//	action_log(msg)           write msg to the process log
//
// Each returns None so it renders as empty text inside {{ }}.
func Predeclared(responder Responder) starlark.StringDict {
	return starlark.StringDict{
		"action_respond_info": starlark.NewBuiltin("action_respond_info", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var msg string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &msg); err != nil {
				return nil, err
			}
			if responder != nil {
				responder.RespondInfo(msg)
			}
			return starlark.None, nil
		}),
		"action_raise_error": starlark.NewBuiltin("action_raise_error", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var msg string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &msg); err != nil {
				return nil, err
			}
			return nil, &RaisedError{Message: msg}
		}),
		"action_log": starlark.NewBuiltin("action_log", func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var msg string
			if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &msg); err != nil {
				return nil, err
			}
			threadLogger(thread).Info(msg, slog.String("source", "template"))
			return starlark.None, nil
		}),
	}
}
