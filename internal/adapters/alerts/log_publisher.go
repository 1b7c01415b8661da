package alerts

import (
	"context"
	"log/slog"

	"github.com/scamshield/scam-detector/internal/domain"
	"github.com/scamshield/scam-detector/internal/ports"
)

// Compile-time interface check.
var _ ports.AlertPublisher = (*LogPublisher)(nil)

// LogPublisher writes alerts to the structured log
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a log publisher
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

// Publish logs high alerts at WARN and everything else at INFO
func (p *LogPublisher) Publish(ctx context.Context, alert domain.Alert) error {
	level := slog.LevelInfo
	if alert.RiskLevel == domain.RiskHigh {
		level = slog.LevelWarn
	}

	p.logger.LogAttrs(ctx, level, "Scam alert",
		slog.String("tab_id", alert.TabID),
		slog.String("session_id", alert.SessionID.String()),
		slog.String("url", alert.URL),
		slog.String("risk_level", string(alert.RiskLevel)),
		slog.Float64("risk_score", alert.RiskScore),
		slog.String("explanation", alert.Explanation),
		slog.Any("reasons", alert.Reasons),
	)
	return nil
}
