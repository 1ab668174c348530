package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SubscriptionsEstablished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "placement_notifier_subscriptions_established_total",
		Help: "Total number of change event subscriptions established.",
	})

	SubscriptionsReleased = promauto.NewCounter(prometheus.CounterOpts{
		Name: "placement_notifier_subscriptions_released_total",
		Help: "Total number of change event subscriptions released.",
	})

	SubscriptionFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "placement_notifier_subscription_failures_total",
		Help: "Total number of failed attempts to establish a subscription.",
	})

	SubscriptionsLost = promauto.NewCounter(prometheus.CounterOpts{
		Name: "placement_notifier_subscriptions_lost_total",
		Help: "Total number of subscriptions that ended without being released.",
	})

	ActiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "placement_notifier_active_subscriptions",
		Help: "Number of currently open subscriptions (0 or 1).",
	})

	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "placement_notifier_events_received_total",
		Help: "Total number of change events received, labelled by table and operation.",
	}, []string{"table", "operation"})

	EventsDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "placement_notifier_events_discarded_total",
		Help: "Total number of change events discarded because their subscription was released.",
	})

	NotificationsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "placement_notifier_notifications_dispatched_total",
		Help: "Total number of notifications sent to the sink, labelled by table and severity.",
	}, []string{"table", "severity"})

	NotificationsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "placement_notifier_notifications_recorded_total",
		Help: "Total number of notification recording attempts, labelled by status.",
	}, []string{"status"})
)
