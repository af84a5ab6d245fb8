package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "invite_tracker"

// Attribution outcomes
const (
	OutcomeAttributed   = "attributed"
	OutcomeDuplicate    = "duplicate"
	OutcomeUnregistered = "unregistered"
	OutcomeNoMatch      = "no_match"
	OutcomeFetchError   = "fetch_error"
)

// Metrics holds every collector the bot exports. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	attributions   *prometheus.CounterVec
	refreshes      *prometheus.CounterVec
	snapshotSize   *prometheus.GaugeVec
	decisions      *prometheus.CounterVec
	vouches        prometheus.Counter
	dmFailures     prometheus.Counter
	commandLatency *prometheus.HistogramVec
	restLatency    *prometheus.HistogramVec
	events         *prometheus.CounterVec
	heartbeat      prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		attributions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attributions_total",
			Help:      "Member join attribution attempts by outcome.",
		}, []string{"outcome"}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_refreshes_total",
			Help:      "Invite snapshot rebuilds by result.",
		}, []string{"result"}),
		snapshotSize: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_invites",
			Help:      "Invites held in the current snapshot per guild.",
		}, []string{"guild_id"}),
		decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_decisions_total",
			Help:      "Approval workflow transitions by flow and decision.",
		}, []string{"flow", "decision"}),
		vouches: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "vouches_recorded_total",
			Help:      "Vouches appended to the ledger.",
		}),
		dmFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dm_failures_total",
			Help:      "Direct messages that could not be delivered.",
		}),
		commandLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Slash command and component handling time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		restLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rest_request_duration_seconds",
			Help:      "Discord REST round-trip time by method and status class.",
			Buckets:   []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method", "status"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_events_total",
			Help:      "Gateway events handled by type.",
		}, []string{"event"}),
		heartbeat: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gateway_heartbeat_seconds",
			Help:      "Last observed gateway heartbeat latency.",
		}),
	}
}

func (m *Metrics) Attribution(outcome string) {
	if m == nil {
		return
	}
	m.attributions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Refresh(guildID string, size int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.refreshes.WithLabelValues("error").Inc()
		return
	}
	m.refreshes.WithLabelValues("ok").Inc()
	m.snapshotSize.WithLabelValues(guildID).Set(float64(size))
}

func (m *Metrics) ForgetGuild(guildID string) {
	if m == nil {
		return
	}
	m.snapshotSize.DeleteLabelValues(guildID)
}

func (m *Metrics) Decision(flow, decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(flow, decision).Inc()
}

func (m *Metrics) Vouch() {
	if m == nil {
		return
	}
	m.vouches.Inc()
}

func (m *Metrics) DMFailure() {
	if m == nil {
		return
	}
	m.dmFailures.Inc()
}

func (m *Metrics) ObserveCommand(command string, seconds float64) {
	if m == nil {
		return
	}
	m.commandLatency.WithLabelValues(command).Observe(seconds)
}

func (m *Metrics) ObserveREST(method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.restLatency.WithLabelValues(method, status).Observe(seconds)
}

func (m *Metrics) Event(name string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(name).Inc()
}

func (m *Metrics) Heartbeat(seconds float64) {
	if m == nil {
		return
	}
	m.heartbeat.Set(seconds)
}
