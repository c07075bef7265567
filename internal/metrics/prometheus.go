package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder exports Recorder events as Prometheus collectors.
type PrometheusRecorder struct {
	usersCreated      prometheus.Counter
	groupsCreated     prometheus.Counter
	usersDiscarded    prometheus.Counter
	provisions        *prometheus.CounterVec
	provisionDuration prometheus.Histogram
	orphanedUsers     prometheus.Counter
	groupCacheLookups *prometheus.CounterVec
}

// NewPrometheus registers the collectors on reg and returns the recorder.
func NewPrometheus(reg prometheus.Registerer) *PrometheusRecorder {
	factory := promauto.With(reg)

	return &PrometheusRecorder{
		usersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "fairshare_users_created_total",
			Help: "Total number of users created",
		}),
		groupsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "fairshare_groups_created_total",
			Help: "Total number of groups created",
		}),
		usersDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "fairshare_users_discarded_total",
			Help: "Total number of orphaned users discarded by operators",
		}),
		provisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fairshare_provisions_total",
			Help: "Group provisioning attempts by result",
		}, []string{"result"}),
		provisionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "fairshare_provision_duration_seconds",
			Help:    "Duration of group provisioning attempts",
			Buckets: prometheus.DefBuckets,
		}),
		orphanedUsers: factory.NewCounter(prometheus.CounterOpts{
			Name: "fairshare_orphaned_users_total",
			Help: "Users left without a group by a partial provisioning failure",
		}),
		groupCacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fairshare_group_cache_lookups_total",
			Help: "Group cache lookups by outcome",
		}, []string{"outcome"}),
	}
}

// IncUserCreated increments the user created counter.
func (p *PrometheusRecorder) IncUserCreated() {
	p.usersCreated.Inc()
}

// IncGroupCreated increments the group created counter.
func (p *PrometheusRecorder) IncGroupCreated() {
	p.groupsCreated.Inc()
}

// IncUsersDiscarded adds to the discarded users counter.
func (p *PrometheusRecorder) IncUsersDiscarded(count int) {
	if count > 0 {
		p.usersDiscarded.Add(float64(count))
	}
}

// IncProvision increments the provision counter for a result.
func (p *PrometheusRecorder) IncProvision(result string) {
	p.provisions.WithLabelValues(result).Inc()
}

// ObserveProvisionDuration records provisioning duration.
func (p *PrometheusRecorder) ObserveProvisionDuration(duration time.Duration) {
	p.provisionDuration.Observe(duration.Seconds())
}

// IncOrphanedUser increments the orphaned user counter.
func (p *PrometheusRecorder) IncOrphanedUser() {
	p.orphanedUsers.Inc()
}

// IncGroupCacheHit increments the cache hit counter.
func (p *PrometheusRecorder) IncGroupCacheHit() {
	p.groupCacheLookups.WithLabelValues("hit").Inc()
}

// IncGroupCacheMiss increments the cache miss counter.
func (p *PrometheusRecorder) IncGroupCacheMiss() {
	p.groupCacheLookups.WithLabelValues("miss").Inc()
}
