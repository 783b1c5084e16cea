package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the role and access layers.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	RoleUpdateAttempts *prometheus.CounterVec
	CacheLookups       *prometheus.CounterVec
	PermissionChecks   *prometheus.CounterVec
	GrantMutations     *prometheus.CounterVec
	Subscriptions      prometheus.Gauge
}

// New creates and registers all collectors
func New(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		RoleUpdateAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "camwatch_role_update_attempts_total",
				Help: "Role update attempts by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "camwatch_cache_lookups_total",
				Help: "Role and permission cache lookups",
			},
			[]string{"cache", "result"},
		),
		PermissionChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "camwatch_permission_checks_total",
				Help: "Permission checks by path and result",
			},
			[]string{"path", "result"},
		),
		GrantMutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "camwatch_camera_grant_mutations_total",
				Help: "Camera access grants added or removed",
			},
			[]string{"op"},
		),
		Subscriptions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "camwatch_role_subscriptions",
				Help: "Open role subscriptions",
			},
		),
	}

	registry.MustRegister(
		m.RoleUpdateAttempts,
		m.CacheLookups,
		m.PermissionChecks,
		m.GrantMutations,
		m.Subscriptions,
	)

	return m
}

// RecordRoleAttempt counts a single strategy attempt
func (m *Metrics) RecordRoleAttempt(strategy string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.RoleUpdateAttempts.WithLabelValues(strategy, outcome).Inc()
}

// RecordCacheLookup counts a cache hit or miss
func (m *Metrics) RecordCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

// RecordPermissionCheck counts a permission decision
func (m *Metrics) RecordPermissionCheck(path string, granted bool) {
	if m == nil {
		return
	}
	result := "denied"
	if granted {
		result = "granted"
	}
	m.PermissionChecks.WithLabelValues(path, result).Inc()
}

// RecordGrantMutations adds the number of grants added and removed
func (m *Metrics) RecordGrantMutations(added, removed int) {
	if m == nil {
		return
	}
	m.GrantMutations.WithLabelValues("add").Add(float64(added))
	m.GrantMutations.WithLabelValues("remove").Add(float64(removed))
}

// SubscriptionOpened increments the open subscription gauge
func (m *Metrics) SubscriptionOpened() {
	if m == nil {
		return
	}
	m.Subscriptions.Inc()
}

// SubscriptionClosed decrements the open subscription gauge
func (m *Metrics) SubscriptionClosed() {
	if m == nil {
		return
	}
	m.Subscriptions.Dec()
}
