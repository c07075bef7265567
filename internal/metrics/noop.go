package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncUserCreated is a no-op.
func (n *NoopRecorder) IncUserCreated() {}

// IncGroupCreated is a no-op.
func (n *NoopRecorder) IncGroupCreated() {}

// IncUsersDiscarded is a no-op.
func (n *NoopRecorder) IncUsersDiscarded(count int) {}

// IncProvision is a no-op.
func (n *NoopRecorder) IncProvision(result string) {}

// ObserveProvisionDuration is a no-op.
func (n *NoopRecorder) ObserveProvisionDuration(duration time.Duration) {}

// IncOrphanedUser is a no-op.
func (n *NoopRecorder) IncOrphanedUser() {}

// IncGroupCacheHit is a no-op.
func (n *NoopRecorder) IncGroupCacheHit() {}

// IncGroupCacheMiss is a no-op.
func (n *NoopRecorder) IncGroupCacheMiss() {}
