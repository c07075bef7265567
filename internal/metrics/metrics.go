// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Provision results used as the "result" label.
// user_failed covers a rejected user write in either mode, including a
// duplicate email inside the atomic transaction. tx_failed is any other
// definite failure of the atomic transaction, where nothing was written.
const (
	ProvisionSuccess         = "success"
	ProvisionValidationError = "validation_error"
	ProvisionUserFailed      = "user_failed"
	ProvisionTxFailed        = "tx_failed"
	ProvisionPartialFailure  = "partial_failure"
	ProvisionAmbiguous       = "ambiguous"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus or keep them in memory for tests.
type Recorder interface {
	// Identity and group store metrics
	IncUserCreated()
	IncGroupCreated()
	IncUsersDiscarded(count int)

	// Provisioning workflow metrics
	IncProvision(result string)
	ObserveProvisionDuration(duration time.Duration)
	IncOrphanedUser()

	// Group read cache metrics
	IncGroupCacheHit()
	IncGroupCacheMiss()
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
