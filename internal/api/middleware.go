package api

import (
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/effectnode/internal/logging"
)

// quietPaths are polled by dashboards and probes; they log at debug level.
var quietPaths = map[string]bool{
	"/api/health":    true,
	"/api/ir/status": true,
	"/ir/read":       true,
}

// HTTPLoggingMiddleware logs each request once it completes. The level
// follows the status code, and the credential carried by ?auth= is never
// written to the log.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	logger := logging.GetLogger("http")

	method := ctx.Method()
	path := ctx.URL().Path

	attrs := []slog.Attr{
		slog.String("method", method),
		slog.String("path", path),
		slog.String("remote_addr", ctx.RemoteAddr()),
	}
	if query := redactQuery(ctx.URL().RawQuery); query != "" {
		attrs = append(attrs, slog.String("query", query))
	}

	next(ctx)

	status := ctx.Status()
	attrs = append(attrs,
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	)

	level := slog.LevelInfo
	switch {
	case status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	case method == "OPTIONS", quietPaths[path], strings.HasPrefix(path, "/api/logs"):
		level = slog.LevelDebug
	}
	logger.LogAttrs(ctx.Context(), level, "HTTP request completed", attrs...)
}

func redactQuery(raw string) string {
	if raw == "" || !strings.Contains(raw, "auth=") {
		return raw
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return "[unparsable]"
	}
	if values.Has("auth") {
		values.Set("auth", "REDACTED")
	}
	return values.Encode()
}
