package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chord"

var (
	Registry = prometheus.NewRegistry()

	MessagesHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_handled_total",
			Help:      "Messages consumed by nodes, by command and outcome.",
		},
		[]string{"command", "action"},
	)

	SendFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Messages that could not be delivered to a mailbox.",
		},
		[]string{"command"},
	)

	SpawnFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spawn_failures_total",
			Help:      "Node spawns that failed.",
		},
	)

	RingNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ring_nodes",
			Help:      "Nodes currently running, MAIN included.",
		},
	)

	MailboxPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mailbox_pending",
			Help:      "Messages queued or being handled across all mailboxes.",
		},
	)
)

func init() {
	Registry.MustRegister(MessagesHandled, SendFailures, SpawnFailures, RingNodes, MailboxPending)
}

// Handler exposes the registry. Mount it with mux.Handle("/metrics", telemetry.Handler()).
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
