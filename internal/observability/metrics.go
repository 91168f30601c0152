package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// AwardOutcomes counts AwardXp results by activity and outcome
	// (awarded, cooldown, error).
	AwardOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xp_award_outcomes_total",
			Help: "XP award attempts by activity type and outcome.",
		},
		[]string{"activity", "outcome"},
	)

	// XPGranted sums XP handed out per activity type.
	XPGranted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xp_granted_total",
			Help: "Total XP granted by activity type.",
		},
		[]string{"activity"},
	)

	// LevelUps counts awards that crossed at least one level threshold.
	LevelUps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "xp_level_ups_total",
			Help: "Awards that raised a member's level.",
		},
	)

	// RewardOutcomes counts reward dispatches by result.
	RewardOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_dispatch_outcomes_total",
			Help: "Milestone reward dispatches by outcome.",
		},
		[]string{"outcome"},
	)

	// WebhookOutcomes counts webhook deliveries by action and gate outcome.
	// Unknown actions are folded into "other" to bound cardinality.
	WebhookOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Inbound partner webhooks by action and outcome.",
		},
		[]string{"action", "outcome"},
	)

	// CacheDegraded counts Redis failures by operation and the policy applied.
	CacheDegraded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_degraded_total",
			Help: "Cache failures by operation and applied policy (open|closed|ignored).",
		},
		[]string{"op", "policy"},
	)

	// TaskFailures counts detached background tasks that returned an error.
	TaskFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "background_task_failures_total",
			Help: "Detached background task failures by task name.",
		},
		[]string{"task"},
	)

	// Escalations counts faults raised to operators.
	Escalations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "escalations_total",
			Help: "Faults escalated for operator attention, by component.",
		},
		[]string{"component"},
	)
)

func init() {
	prometheus.MustRegister(
		AwardOutcomes, XPGranted, LevelUps, RewardOutcomes,
		WebhookOutcomes, CacheDegraded, TaskFailures, Escalations,
	)
}

// Logger returns the logger carried by ctx, or the global logger when ctx
// has none.
func Logger(ctx context.Context) *zerolog.Logger {
	if lg := zerolog.Ctx(ctx); lg.GetLevel() != zerolog.Disabled {
		return lg
	}
	return &log.Logger
}

// Escalate records a fault that needs operator attention: an error-level
// log line tagged escalate=true plus a counter increment. It never fails.
func Escalate(ctx context.Context, component string, err error, fields map[string]string) {
	Escalations.WithLabelValues(component).Inc()
	ev := Logger(ctx).Error().Err(err).Bool("escalate", true).Str("component", component)
	for k, v := range fields {
		ev = ev.Str(k, v)
	}
	ev.Msg("escalated fault")
}
