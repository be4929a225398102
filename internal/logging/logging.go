// Package logging builds the process *slog.Logger.
//
// "json" emits one JSON object per line for log shippers. "text" renders
// through charmbracelet/log for humans at a terminal; its Logger is itself
// an slog.Handler, so components only ever see *slog.Logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// New returns a logger writing to w in the given format at the given level
// (debug, info, warn, error).
func New(format, level string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	switch format {
	case "", "json":
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
	case "text":
		h := charmlog.NewWithOptions(w, charmlog.Options{
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
			Level:           charmlog.Level(lvl),
		})
		return slog.New(h), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
