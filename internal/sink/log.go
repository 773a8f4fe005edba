package sink

import (
	"context"
	"log/slog"

	"ransomwatch/internal/model"
)

// Log writes alerts, and optionally events, through a structured logger.
type Log struct {
	logger *slog.Logger
	events bool
}

// NewLog returns a Log sink. Events are logged at debug level only when
// withEvents is set; alerts are always logged at warn level.
func NewLog(logger *slog.Logger, withEvents bool) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger, events: withEvents}
}

func (l *Log) WriteEvent(ctx context.Context, ev model.CanonicalEvent) error {
	if !l.events {
		return nil
	}
	l.logger.DebugContext(ctx, "file event",
		"type", ev.Kind,
		"src_path", ev.SrcPath,
		"dest_path", ev.DestPath,
		"ext_before", ev.ExtBefore,
		"ext_after", ev.ExtAfter,
	)
	return nil
}

func (l *Log) WriteAlert(ctx context.Context, a model.Alert) error {
	l.logger.WarnContext(ctx, "ALERT",
		"rule", a.Rule,
		"severity", a.Severity,
		"details", a.Details,
		"alert_id", a.ID,
	)
	return nil
}

func (l *Log) Close() error { return nil }
