package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	UsersCreated             uint64
	GroupsCreated            uint64
	UsersDiscarded           uint64
	Provisions               map[string]uint64
	ProvisionDurationCount   uint64
	ProvisionDurationTotalNs int64
	OrphanedUsers            uint64
	GroupCacheHits           uint64
	GroupCacheMisses         uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	usersCreated             uint64
	groupsCreated            uint64
	usersDiscarded           uint64
	provisionDurationCount   uint64
	provisionDurationTotalNs int64
	orphanedUsers            uint64
	groupCacheHits           uint64
	groupCacheMisses         uint64

	mu         sync.Mutex
	provisions map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{provisions: make(map[string]uint64)}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	provisions := make(map[string]uint64, len(m.provisions))
	for k, v := range m.provisions {
		provisions[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		UsersCreated:             atomic.LoadUint64(&m.usersCreated),
		GroupsCreated:            atomic.LoadUint64(&m.groupsCreated),
		UsersDiscarded:           atomic.LoadUint64(&m.usersDiscarded),
		Provisions:               provisions,
		ProvisionDurationCount:   atomic.LoadUint64(&m.provisionDurationCount),
		ProvisionDurationTotalNs: atomic.LoadInt64(&m.provisionDurationTotalNs),
		OrphanedUsers:            atomic.LoadUint64(&m.orphanedUsers),
		GroupCacheHits:           atomic.LoadUint64(&m.groupCacheHits),
		GroupCacheMisses:         atomic.LoadUint64(&m.groupCacheMisses),
	}
}

// IncUserCreated increments the user created counter.
func (m *InMemoryRecorder) IncUserCreated() {
	atomic.AddUint64(&m.usersCreated, 1)
}

// IncGroupCreated increments the group created counter.
func (m *InMemoryRecorder) IncGroupCreated() {
	atomic.AddUint64(&m.groupsCreated, 1)
}

// IncUsersDiscarded adds to the discarded users counter.
func (m *InMemoryRecorder) IncUsersDiscarded(count int) {
	if count > 0 {
		atomic.AddUint64(&m.usersDiscarded, uint64(count))
	}
}

// IncProvision increments the provision counter for a result.
func (m *InMemoryRecorder) IncProvision(result string) {
	m.mu.Lock()
	m.provisions[result]++
	m.mu.Unlock()
}

// ObserveProvisionDuration records provisioning duration.
func (m *InMemoryRecorder) ObserveProvisionDuration(duration time.Duration) {
	atomic.AddUint64(&m.provisionDurationCount, 1)
	atomic.AddInt64(&m.provisionDurationTotalNs, duration.Nanoseconds())
}

// IncOrphanedUser increments the orphaned user counter.
func (m *InMemoryRecorder) IncOrphanedUser() {
	atomic.AddUint64(&m.orphanedUsers, 1)
}

// IncGroupCacheHit increments the group cache hit counter.
func (m *InMemoryRecorder) IncGroupCacheHit() {
	atomic.AddUint64(&m.groupCacheHits, 1)
}

// IncGroupCacheMiss increments the group cache miss counter.
func (m *InMemoryRecorder) IncGroupCacheMiss() {
	atomic.AddUint64(&m.groupCacheMisses, 1)
}
