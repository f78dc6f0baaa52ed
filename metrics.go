package authgate

import "sync/atomic"

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricChallengeIssued counts challenge tokens handed out.
	MetricChallengeIssued MetricID = iota
	// MetricChallengeVerified counts successful challenge verifications.
	MetricChallengeVerified
	// MetricChallengeRejected counts failed, replayed, or expired challenges.
	MetricChallengeRejected
	// MetricLoginSuccess counts sessions issued via credential login.
	MetricLoginSuccess
	// MetricLoginFailure counts credential logins that ended in an AuthError.
	MetricLoginFailure
	// MetricLoginRateLimited counts logins refused by the throttle.
	MetricLoginRateLimited
	// MetricFederatedSuccess counts sessions issued via federated login.
	MetricFederatedSuccess
	// MetricFederatedFailure counts federated logins that ended in an AuthError.
	MetricFederatedFailure
	// MetricProvisioningOpened counts provisioning requests opened.
	MetricProvisioningOpened
	// MetricProvisioningResolved counts provisioning requests resolved with a password.
	MetricProvisioningResolved
	// MetricProvisioningAborted counts provisioning requests cancelled.
	MetricProvisioningAborted
	// MetricSessionIssued counts all sessions issued.
	MetricSessionIssued
	// MetricSessionSuperseded counts sessions displaced by a newer login.
	MetricSessionSuperseded
	// MetricSessionInvalidated counts out-of-band session invalidations.
	MetricSessionInvalidated
	// MetricSignalDelivered counts termination signals consumed by peek-and-clear.
	MetricSignalDelivered
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is the in-process counter registry. All methods are safe for
// concurrent use; a nil or disabled registry is a no-op.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot is a point-in-time copy of every counter.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics creates a registry honoring cfg.Enabled.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Enabled reports whether the registry records anything.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc adds one to the counter. Out-of-range IDs are ignored.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Value reads a single counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. Counters are read individually, so the
// snapshot is consistent per counter, not across the whole set.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}

	s := MetricsSnapshot{
		Counters: make(map[MetricID]uint64, int(metricIDCount)),
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	return s
}
