package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	auditRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_audit_records_total",
			Help: "Total number of audit records appended",
		},
		[]string{"entity_type", "action", "source"},
	)

	rollbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_rollbacks_total",
			Help: "Total number of rollback runs",
		},
		[]string{"mode", "outcome"},
	)

	rollbackRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_rollback_records_total",
			Help: "Audit records processed by rollback, by result",
		},
		[]string{"mode", "result"}, // deleted, restored, noop, skipped
	)

	importsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_imports_total",
			Help: "Total number of document imports",
		},
		[]string{"outcome"},
	)
)
