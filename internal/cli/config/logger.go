package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
)

// NewLogger builds the process logger from the log_level and log_format
// settings. Format "auto" picks the pretty handler on a terminal and plain
// text otherwise.
func NewLogger(w io.Writer, level, format string, isTTY bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(orDefault(level, DefaultLogLevel))); err != nil {
		return nil, fmt.Errorf("invalid log_level %q: %w", level, err)
	}

	format = strings.ToLower(orDefault(format, DefaultLogFormat))
	if format == "auto" {
		format = "text"
		if isTTY {
			format = "pretty"
		}
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "pretty":
		handler := log.NewWithOptions(w, log.Options{
			Level:           log.Level(lvl),
			ReportTimestamp: true,
			Prefix:          "dynmacro",
		})
		return slog.New(handler), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log_format %q", format)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
