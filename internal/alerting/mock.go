package alerting

import (
	"context"
	"strings"
	"sync"
)

// MockAlert is one captured alert.
type MockAlert struct {
	Severity Severity
	Message  string
	Fields   []any
}

// MockAlerter records alerts for test assertions instead of delivering them.
type MockAlerter struct {
	mu     sync.RWMutex
	alerts []MockAlert
}

// NewMockAlerter creates an empty mock alerter.
func NewMockAlerter() *MockAlerter {
	return &MockAlerter{}
}

// Name identifies the channel.
func (m *MockAlerter) Name() string {
	return "mock"
}

// Alert captures the alert.
func (m *MockAlerter) Alert(_ context.Context, severity Severity, message string, fields ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, MockAlert{Severity: severity, Message: message, Fields: fields})
	return nil
}

// Alerts returns a copy of everything captured so far.
func (m *MockAlerter) Alerts() []MockAlert {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MockAlert, len(m.alerts))
	copy(out, m.alerts)
	return out
}

// Clear drops all captured alerts.
func (m *MockAlerter) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = nil
}

// Count returns how many alerts were captured.
func (m *MockAlerter) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.alerts)
}

// HasAlertWithSeverity reports whether any captured alert has the severity.
func (m *MockAlerter) HasAlertWithSeverity(severity Severity) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.alerts {
		if a.Severity == severity {
			return true
		}
	}
	return false
}

// HasAlertContaining reports whether any captured message contains substr.
func (m *MockAlerter) HasAlertContaining(substr string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.alerts {
		if strings.Contains(a.Message, substr) {
			return true
		}
	}
	return false
}
