package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEvent represents a security audit event. Usernames are deliberately
// absent: attempted usernames land in the attempt log, not in app logs.
type AuditEvent struct {
	EventType     string
	IPAddress     string
	UserAgent     string
	Success       bool
	RiskScore     int
	RiskLevel     string
	FailureReason string
}

// AuditLogger provides audit logging functionality
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
	}
}

// LogLoginAttempt logs the outcome of a login evaluation
func (al *AuditLogger) LogLoginAttempt(event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("audit_type", "login"),
		slog.String("event_type", event.EventType),
		slog.Bool("success", event.Success),
		slog.Int("risk_score", event.RiskScore),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", event.UserAgent))
	}
	if event.RiskLevel != "" {
		attrs = append(attrs, slog.String("risk_level", event.RiskLevel))
	}
	if event.FailureReason != "" {
		attrs = append(attrs, slog.String("failure_reason", event.FailureReason))
	}

	if event.Success {
		al.logger.LogAttrs(context.Background(), slog.LevelInfo, "audit", attrs...)
	} else {
		al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit", attrs...)
	}
}

// LogBlock logs a new or refreshed address block
func (al *AuditLogger) LogBlock(ipAddress string, blockedUntil time.Time, score int) {
	al.logger.LogAttrs(context.Background(), slog.LevelWarn, "audit",
		slog.String("audit_type", "block"),
		slog.String("event_type", "address_blocked"),
		slog.String("ip_address", ipAddress),
		slog.Int("risk_score", score),
		slog.String("blocked_until", blockedUntil.UTC().Format(time.RFC3339)),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
}
