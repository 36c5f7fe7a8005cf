package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "zalachat",
		Subsystem: "relay",
		Name:      "connections",
		Help:      "Number of registered connections.",
	})
	roomsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "zalachat",
		Subsystem: "relay",
		Name:      "rooms",
		Help:      "Number of non-empty rooms.",
	})
	eventsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zalachat",
		Subsystem: "relay",
		Name:      "events_total",
		Help:      "Inbound events by type and outcome.",
	}, []string{"event", "outcome"})
	framesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "zalachat",
		Subsystem: "relay",
		Name:      "frames_delivered_total",
		Help:      "Outbound event frames written to connections.",
	}, []string{"event"})
	eventDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "zalachat",
		Subsystem: "relay",
		Name:      "event_duration_seconds",
		Help:      "Time spent handling one inbound event.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event"})
)
