package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PurchasesCreated The total number of purchases that placed holds (counter)
	PurchasesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lottery",
			Name:      "purchases_created_total",
			Help:      "The total number of purchases that placed holds",
		},
	)

	// TicketsHeld The total number of tickets put on hold by purchases (counter)
	TicketsHeld = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lottery",
			Name:      "tickets_held_total",
			Help:      "The total number of tickets put on hold by purchases",
		},
	)

	// PurchaseConflicts The total number of purchases rejected because a ticket was taken (counter)
	PurchaseConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "lottery",
			Name:      "purchase_conflicts_total",
			Help:      "The total number of purchases rejected because a ticket was held or sold",
		},
	)

	// HoldTransitions The total number of holds leaving the held state, by outcome (counter)
	HoldTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottery",
			Name:      "hold_transitions_total",
			Help:      "The total number of holds leaving the held state",
		},
		[]string{"outcome"}, // confirmed, released, expired
	)

	// StorageFailures The total number of engine operations that failed in storage (counter)
	StorageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottery",
			Name:      "storage_failures_total",
			Help:      "The total number of engine operations that failed in storage",
		},
		[]string{"operation"},
	)

	// EventsPublishFailed The total number of ticket events that could not be published (counter)
	EventsPublishFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lottery",
			Name:      "events_publish_failed_total",
			Help:      "The total number of ticket events that could not be published",
		},
		[]string{"type"},
	)
)

// Hold transition outcomes.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeReleased  = "released"
	OutcomeExpired   = "expired"
)
