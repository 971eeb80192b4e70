package metrics

import "time"

// Recorder provides methods for recording metrics.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordSubmission records a submission outcome.
func (r *Recorder) RecordSubmission(symbol, side, outcome string) {
	OrdersSubmitted.WithLabelValues(symbol, side, outcome).Inc()
}

// RecordRetry records a submission retry.
func (r *Recorder) RecordRetry() {
	SubmitRetries.Inc()
}

// RecordCacheHit records a submission answered from the result cache.
func (r *Recorder) RecordCacheHit() {
	CacheHits.Inc()
}

// RecordExchangeDiscovery records a submission resolved by COID lookup.
func (r *Recorder) RecordExchangeDiscovery() {
	ExchangeDiscoveries.Inc()
}

// RecordSubmitLatency records end-to-end submission latency.
func (r *Recorder) RecordSubmitLatency(d time.Duration) {
	SubmitLatency.Observe(d.Seconds())
}

// RecordFillWait records a fill wait outcome and its duration.
func (r *Recorder) RecordFillWait(outcome string, d time.Duration) {
	FillWaitOutcomes.WithLabelValues(outcome).Inc()
	FillWaitDuration.Observe(d.Seconds())
}

// RecordViolation records a compliance violation.
func (r *Recorder) RecordViolation(kind string) {
	ComplianceViolations.WithLabelValues(kind).Inc()
}

// RecordGhostEntry records an aborted intent.
func (r *Recorder) RecordGhostEntry() {
	GhostEntries.Inc()
}

// RecordReconcileRun records a completed reconciliation pass.
func (r *Recorder) RecordReconcileRun() {
	ReconcileRuns.Inc()
}

// RecordDesync records a detected desync.
func (r *Recorder) RecordDesync(kind string) {
	ReconcileDesyncs.WithLabelValues(kind).Inc()
}

// RecordError records an error for a component.
func (r *Recorder) RecordError(component string) {
	ErrorsTotal.WithLabelValues(component).Inc()
}
