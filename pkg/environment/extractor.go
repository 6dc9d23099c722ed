package environment

import (
	"context"
	"log/slog"
)

// LoggerExtractor adds the "env" attribute to records logged with a context
// carrying an environment.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if env := FromContext(ctx); env != "" {
			return slog.String("env", string(env)), true
		}
		return slog.Attr{}, false
	}
}
