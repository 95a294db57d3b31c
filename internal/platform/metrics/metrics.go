package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the compliance engine.
type Metrics struct {
	RecomputationsTotal   prometheus.Counter
	StatusChangesTotal    *prometheus.CounterVec
	ItemsExpiredTotal     prometheus.Counter
	OverridesSetTotal     prometheus.Counter
	OverridesClearedTotal *prometheus.CounterVec
	RemindersSentTotal    prometheus.Counter
	NotifyFailuresTotal   prometheus.Counter
	SweepFailuresTotal    *prometheus.CounterVec
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		RecomputationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credready_recomputations_total",
			Help: "Total ready-to-staff recomputations run",
		}),
		StatusChangesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credready_status_changes_total",
			Help: "Persisted clinician status changes by new status",
		}, []string{"status"}),
		ItemsExpiredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credready_items_expired_total",
			Help: "Checklist items transitioned to expired by the sweep",
		}),
		OverridesSetTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credready_overrides_set_total",
			Help: "Admin status overrides set",
		}),
		OverridesClearedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credready_overrides_cleared_total",
			Help: "Status overrides cleared by reason",
		}, []string{"reason"}),
		RemindersSentTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credready_reminders_sent_total",
			Help: "Expiration reminders sent to clinicians",
		}),
		NotifyFailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credready_notification_failures_total",
			Help: "Reminder or alert deliveries that failed and were skipped",
		}),
		SweepFailuresTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credready_sweep_failures_total",
			Help: "Scheduled sweep runs that exited on error, by job",
		}, []string{"job"}),
	}
}
