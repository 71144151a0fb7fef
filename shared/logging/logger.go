// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Options selects the handler and the attributes stamped on every record.
type Options struct {
	App     string
	Version string
	Env     string
	Level   slog.Level
	// Output defaults to os.Stdout.
	Output io.Writer
}

// New returns a colored tint logger for dev builds and a JSON logger
// otherwise.
func New(o Options) *slog.Logger {
	out := o.Output
	if out == nil {
		out = os.Stdout
	}
	if o.Version == "dev" {
		h := tint.NewHandler(out, &tint.Options{
			Level:      o.Level,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", o.App)
	}

	h := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: o.Level,
	})
	return slog.New(h).With(
		"app", o.App,
		"version", o.Version,
		"env", o.Env,
	)
}
