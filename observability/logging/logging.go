package logging

import (
	"log"
	"log/slog"
	"os"
	"strings"
)

// Setup configures the process-wide slog logger. Records are emitted as
// JSON with timestamp/severity/message keys so they aggregate cleanly.
// The returned logger carries the service, network, and environment
// attributes on every record.
func Setup(service, network, env string) *slog.Logger {
	level := slog.LevelInfo
	if strings.EqualFold(env, "dev") || strings.EqualFold(env, "development") {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "timestamp"
			case slog.LevelKey:
				attr.Key = "severity"
			case slog.MessageKey:
				attr.Key = "message"
			}
			return attr
		},
	})
	logger := slog.New(handler).With(
		slog.String("service", service),
		slog.String("network", network),
		slog.String("env", env),
	)
	slog.SetDefault(logger)
	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(handler, slog.LevelInfo).Writer())
	return logger
}
