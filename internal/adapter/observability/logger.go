package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fairyhunter13/ai-content-publisher/internal/config"
)

// sensitiveKeys never reach the log output in clear text.
var sensitiveKeys = map[string]struct{}{
	"secret":        {},
	"api_key":       {},
	"app_password":  {},
	"password":      {},
	"authorization": {},
}

// SetupLogger configures a JSON slog logger with environment fields.
func SetupLogger(cfg config.Config) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

// SetupLoggerTo is SetupLogger writing to w, for tools that keep stdout for output.
func SetupLoggerTo(w io.Writer, cfg config.Config) *slog.Logger {
	return newLogger(w, cfg)
}

func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{ReplaceAttr: redactAttr}
	// In dev, show debug level; in prod, default to info
	if cfg.IsDev() {
		opts.Level = slog.LevelDebug
	}
	h := slog.NewJSONHandler(w, opts)
	return slog.New(h).With(
		slog.String("service", cfg.OTELServiceName),
		slog.String("env", cfg.AppEnv),
	)
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, "[REDACTED]")
	}
	return a
}
