package cli

import (
	"context"
	"log/slog"

	"github.com/sirupsen/logrus"
)

// bridgeHandler adapts the driver's slog.Handler interface onto a logrus
// logger, so pkg.LogDebug/Info/Warn/Error calls land in the same sink and
// honor the same level/format as the CLI's own logrus-based messages.
type bridgeHandler struct {
	logger *logrus.Logger
	attrs  []slog.Attr
	group  string
}

func newBridgeLogger(logger *logrus.Logger) *slog.Logger {
	return slog.New(&bridgeHandler{logger: logger})
}

func (h *bridgeHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.logger.IsLevelEnabled(logrus.DebugLevel) {
		return true
	}
	return level >= slog.LevelInfo
}

func (h *bridgeHandler) Handle(_ context.Context, record slog.Record) error {
	entry := h.logger.WithField("component", "driver")
	record.Attrs(func(a slog.Attr) bool {
		entry = entry.WithField(h.fieldName(a.Key), a.Value.Any())
		return true
	})
	for _, a := range h.attrs {
		entry = entry.WithField(h.fieldName(a.Key), a.Value.Any())
	}

	switch {
	case record.Level >= slog.LevelError:
		entry.Error(record.Message)
	case record.Level >= slog.LevelWarn:
		entry.Warn(record.Message)
	case record.Level >= slog.LevelInfo:
		entry.Info(record.Message)
	default:
		entry.Debug(record.Message)
	}
	return nil
}

func (h *bridgeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *bridgeHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.group = name
	return &next
}

func (h *bridgeHandler) fieldName(key string) string {
	if h.group == "" {
		return key
	}
	return h.group + "." + key
}
