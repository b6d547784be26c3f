// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReservationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_created_total",
		Help: "Number of stock reservations successfully created.",
	})

	ReservationsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_rejected_total",
		Help: "Number of reservation attempts rejected for insufficient stock.",
	})

	ReservationsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_expired_total",
		Help: "Number of reservations deactivated by cleanup passes.",
	})

	Checkouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_total",
		Help: "Checkout attempts by result.",
	}, []string{"result"})

	OrdersCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Number of orders cancelled with stock restored.",
	})
)
