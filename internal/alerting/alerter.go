// Package alerting delivers order lifecycle notifications: fills, failures,
// compliance rejections and reconciliation desyncs.
package alerting

import (
	"context"
	"fmt"
	"strings"
)

// Severity ranks how urgently an alert needs human attention.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityHigh
	SeverityCritical
)

var severityNames = [...]string{"INFO", "WARNING", "HIGH", "CRITICAL"}

var severityEmojis = [...]string{"ℹ️", "⚠️", "🔴", "🚨"}

func (s Severity) String() string {
	if s < SeverityInfo || int(s) >= len(severityNames) {
		return "UNKNOWN"
	}
	return severityNames[s]
}

// Emoji returns the marker used by chat-style channels.
func (s Severity) Emoji() string {
	if s < SeverityInfo || int(s) >= len(severityEmojis) {
		return "❓"
	}
	return severityEmojis[s]
}

// Alerter is one delivery channel.
type Alerter interface {
	Alert(ctx context.Context, severity Severity, message string, fields ...any) error
	Name() string
}

// FormatFields renders slog-style key-value pairs as bullet lines for
// human-readable channels. Non-string keys are skipped.
func FormatFields(fields ...any) string {
	var b strings.Builder
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "• %s: %v", key, fields[i+1])
	}
	return b.String()
}

// AlertEvent names a recurring alert condition so channels and severities
// stay consistent across call sites.
type AlertEvent string

const (
	EventOrderFilled    AlertEvent = "order_filled"
	EventOrderFailed    AlertEvent = "order_failed"
	EventOrderStuck     AlertEvent = "order_stuck"
	EventIntentRejected AlertEvent = "intent_rejected"
	EventDesyncDetected AlertEvent = "desync_detected"
	EventBotStarted     AlertEvent = "bot_started"
	EventBotStopped     AlertEvent = "bot_stopped"
)

// EventSeverity maps an event to its default severity. Desyncs are the one
// condition that can mean real money is unaccounted for.
func EventSeverity(event AlertEvent) Severity {
	switch event {
	case EventDesyncDetected:
		return SeverityCritical
	case EventOrderFailed, EventOrderStuck:
		return SeverityHigh
	case EventIntentRejected:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
