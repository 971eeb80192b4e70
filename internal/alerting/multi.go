package alerting

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// MultiAlerter fans one alert out to every configured channel. Channels are
// independent: a failing channel never prevents delivery on the others.
type MultiAlerter struct {
	logger *slog.Logger

	mu       sync.RWMutex
	alerters []Alerter
}

// NewMultiAlerter creates a multi-channel alerter.
func NewMultiAlerter(logger *slog.Logger, alerters ...Alerter) *MultiAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiAlerter{logger: logger, alerters: alerters}
}

// Name identifies the channel.
func (m *MultiAlerter) Name() string {
	return "multi"
}

// AddAlerter registers another channel.
func (m *MultiAlerter) AddAlerter(a Alerter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerters = append(m.alerters, a)
}

// Alert delivers to all channels concurrently and joins their failures.
func (m *MultiAlerter) Alert(ctx context.Context, severity Severity, message string, fields ...any) error {
	m.mu.RLock()
	targets := make([]Alerter, len(m.alerters))
	copy(targets, m.alerters)
	m.mu.RUnlock()

	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, a := range targets {
		wg.Add(1)
		go func(i int, a Alerter) {
			defer wg.Done()
			if err := a.Alert(ctx, severity, message, fields...); err != nil {
				m.logger.Error("alert delivery failed",
					"channel", a.Name(),
					"severity", severity.String(),
					"err", err,
				)
				errs[i] = err
			}
		}(i, a)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// AlertEvent delivers an alert for a predefined event at its default severity.
func (m *MultiAlerter) AlertEvent(ctx context.Context, event AlertEvent, message string, fields ...any) error {
	return m.Alert(ctx, EventSeverity(event), message, fields...)
}
