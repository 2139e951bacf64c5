// Package metrics exposes Prometheus collectors for grouping and live rooms.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GroupingRequests counts grouping requests by mode and outcome.
	GroupingRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classquiz",
		Name:      "grouping_requests_total",
		Help:      "Grouping requests by mode and outcome.",
	}, []string{"mode", "outcome"})

	// GroupingDuration observes the time spent building profiles and groups.
	GroupingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "classquiz",
		Name:      "grouping_duration_seconds",
		Help:      "Time spent profiling and partitioning participants.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	})

	// RoomEvents counts events broadcast to live room members.
	RoomEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "classquiz",
		Name:      "room_events_total",
		Help:      "Events broadcast to live rooms by type.",
	}, []string{"type"})

	// ActiveRooms tracks live rooms held in memory.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "classquiz",
		Name:      "active_rooms",
		Help:      "Live rooms currently held in memory.",
	})
)
