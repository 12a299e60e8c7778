// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome constants for login metrics.
const (
	OutcomeSuccess      = "success"
	OutcomeInvalid      = "invalid"
	OutcomeRateLimited  = "rate_limited"
	OutcomeUnauthorized = "unauthorized"
	OutcomeForbidden    = "forbidden"
	OutcomeNotFound     = "not_found"
	OutcomeError        = "error"
)

// Status constants for background task metrics.
const (
	TaskSuccess = "success"
	TaskError   = "error"
)

// LoginAttempts counts login attempts by role and outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var LoginAttempts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marathon_login_attempts_total",
		Help: "Total number of login attempts",
	},
	[]string{"role", "outcome"},
)

// AdminDecisions counts admin approval decisions.
var AdminDecisions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marathon_admin_decisions_total",
		Help: "Total number of admin approval decisions",
	},
	[]string{"decision"},
)

// BackgroundTasks counts finished best-effort tasks.
var BackgroundTasks = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marathon_background_tasks_total",
		Help: "Total number of background tasks run after login",
	},
	[]string{"task", "status"},
)

// DroppedTasks counts tasks discarded because the queue was full or closed.
var DroppedTasks = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "marathon_background_tasks_dropped_total",
		Help: "Total number of background tasks dropped before running",
	},
	[]string{"task"},
)

// RegisterMetrics registers the package collectors with the given registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(LoginAttempts)
	reg.MustRegister(AdminDecisions)
	reg.MustRegister(BackgroundTasks)
	reg.MustRegister(DroppedTasks)
}

// RecordLogin increments the login counter.
func RecordLogin(role, outcome string) {
	LoginAttempts.WithLabelValues(role, outcome).Inc()
}

// RecordAdminDecision increments the admin decision counter.
func RecordAdminDecision(decision string) {
	AdminDecisions.WithLabelValues(decision).Inc()
}

// RecordTask increments the background task counter.
func RecordTask(task, status string) {
	BackgroundTasks.WithLabelValues(task, status).Inc()
}

// RecordDroppedTask increments the dropped task counter.
func RecordDroppedTask(task string) {
	DroppedTasks.WithLabelValues(task).Inc()
}
