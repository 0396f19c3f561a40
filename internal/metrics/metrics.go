package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "elevare_ws_active_connections",
			Help: "Number of live collaboration socket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elevare_ws_events_total",
			Help: "Total number of hub events dispatched, by direction and kind.",
		},
		[]string{"direction", "event"},
	)
	wsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "elevare_ws_dropped_deliveries_total",
			Help: "Deliveries dropped because a recipient send queue was full.",
		},
	)
	roomMembersGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "elevare_room_members",
			Help: "Current member count per room kind.",
		},
		[]string{"kind"},
	)
	canvasMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elevare_canvas_mutations_total",
			Help: "Total whiteboard canvas mutations, by operation.",
		},
		[]string{"op"},
	)
	canvasPersistFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "elevare_canvas_persist_failures_total",
			Help: "Canvas persistence gateway failures.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		wsActiveConnections,
		wsEventsTotal,
		wsDroppedTotal,
		roomMembersGauge,
		canvasMutationsTotal,
		canvasPersistFailures,
	)
}

func IncWSActive()                    { wsActiveConnections.Inc() }
func DecWSActive()                    { wsActiveConnections.Dec() }
func IncWSEvent(direction, ev string) { wsEventsTotal.WithLabelValues(direction, ev).Inc() }
func IncDropped()                     { wsDroppedTotal.Inc() }

func AddRoomMembers(kind string, delta float64) {
	roomMembersGauge.WithLabelValues(kind).Add(delta)
}

func IncCanvasMutation(op string) { canvasMutationsTotal.WithLabelValues(op).Inc() }
func IncCanvasPersistFailure()    { canvasPersistFailures.Inc() }
