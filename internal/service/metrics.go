package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	purchasesSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_purchases_settled_total",
		Help: "Purchases flipped from unpaid to paid, labeled by payment mode",
	}, []string{"mode"})

	debitDecrement = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_debit_decrement_total",
		Help: "Sum of amounts removed from cached client debit, labeled by payment mode",
	}, []string{"mode"})

	salesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_sales_recorded_total",
		Help: "Credit sales committed",
	})

	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_notifications_total",
		Help: "Outbound notifications, labeled by outcome",
	}, []string{"outcome"})
)
