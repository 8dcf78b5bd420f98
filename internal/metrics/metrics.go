// Package metrics содержит счётчики Prometheus для контроля допуска устройств.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AdmissionsTotal — количество допусков новых сессий устройств.
	AdmissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_admissions_total",
		Help: "Total number of new device session admissions.",
	})

	// ReadmissionsTotal — количество повторных допусков уже известных сессий.
	ReadmissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_readmissions_total",
		Help: "Total number of re-admissions of already known sessions.",
	})

	// EvictionsTotal — количество вытесненных сессий.
	EvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_evictions_total",
		Help: "Total number of sessions evicted to free capacity.",
	})

	// AdmissionFailOpenTotal — количество допусков, пропущенных из-за ошибки хранилища.
	AdmissionFailOpenTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_admission_fail_open_total",
		Help: "Total number of admissions allowed despite a storage error.",
	})

	// InvoiceRejectionsTotal — отклонённые запросы на выставление счёта по правилам.
	InvoiceRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gatekeeper_invoice_rejections_total",
		Help: "Total number of invoice requests rejected, by rule.",
	}, []string{"rule"})

	// InvoicesIssuedTotal — успешно выставленные счета.
	InvoicesIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_invoices_issued_total",
		Help: "Total number of invoices issued with a grace period grant.",
	})

	// AccessExtensionsTotal — административные продления доступа.
	AccessExtensionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gatekeeper_access_extensions_total",
		Help: "Total number of administrative access extensions.",
	})
)
