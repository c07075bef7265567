package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
)

// counterValue returns the value of the counter family name whose labels match.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metricLoop:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metricLoop
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func TestInMemoryRecorder_Snapshot(t *testing.T) {
	m := NewInMemory()

	m.IncUserCreated()
	m.IncUserCreated()
	m.IncGroupCreated()
	m.IncUsersDiscarded(3)
	m.IncUsersDiscarded(0)
	m.IncProvision(ProvisionSuccess)
	m.IncProvision(ProvisionPartialFailure)
	m.IncProvision(ProvisionSuccess)
	m.ObserveProvisionDuration(2 * time.Millisecond)
	m.IncOrphanedUser()
	m.IncGroupCacheHit()
	m.IncGroupCacheMiss()

	snap := m.Snapshot()
	if snap.UsersCreated != 2 {
		t.Errorf("UsersCreated = %d, want 2", snap.UsersCreated)
	}
	if snap.GroupsCreated != 1 {
		t.Errorf("GroupsCreated = %d, want 1", snap.GroupsCreated)
	}
	if snap.UsersDiscarded != 3 {
		t.Errorf("UsersDiscarded = %d, want 3", snap.UsersDiscarded)
	}
	if snap.Provisions[ProvisionSuccess] != 2 || snap.Provisions[ProvisionPartialFailure] != 1 {
		t.Errorf("unexpected provisions %v", snap.Provisions)
	}
	if snap.ProvisionDurationCount != 1 || snap.ProvisionDurationTotalNs != int64(2*time.Millisecond) {
		t.Errorf("unexpected duration snapshot %+v", snap)
	}
	if snap.OrphanedUsers != 1 || snap.GroupCacheHits != 1 || snap.GroupCacheMisses != 1 {
		t.Errorf("unexpected counters %+v", snap)
	}
}

func TestPrometheusRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)

	p.IncProvision(ProvisionSuccess)
	p.IncProvision(ProvisionSuccess)
	p.IncProvision(ProvisionAmbiguous)
	p.IncOrphanedUser()
	p.IncGroupCacheHit()

	if got := counterValue(t, reg, "fairshare_provisions_total", map[string]string{"result": ProvisionSuccess}); got != 2 {
		t.Errorf("success provisions = %v, want 2", got)
	}
	if got := counterValue(t, reg, "fairshare_orphaned_users_total", nil); got != 1 {
		t.Errorf("orphaned users = %v, want 1", got)
	}
	if got := counterValue(t, reg, "fairshare_group_cache_lookups_total", map[string]string{"outcome": "hit"}); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}
}

func TestHTTPMetrics_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/groups/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, path := range []string{"/groups/1", "/groups/2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	labels := map[string]string{"method": "GET", "route": "/groups/{id}", "status": "404"}
	if got := counterValue(t, reg, "fairshare_http_requests_total", labels); got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}
}
