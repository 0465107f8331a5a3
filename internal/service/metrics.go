package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики журнала
// ============================================================
//
// Отдаются через /metrics. Метки только низкой кардинальности:
// инструмент, действие, результат. user_id в метки не попадает.

// TradesWritten - изменения записей журнала
var TradesWritten = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradejournal",
		Subsystem: "trades",
		Name:      "written_total",
		Help:      "Total number of trade entry writes by action",
	},
	[]string{"action", "instrument"},
)

// EntriesSkipped - записи, пропущенные FIFO движком
var EntriesSkipped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradejournal",
		Subsystem: "pnl",
		Name:      "entries_skipped_total",
		Help:      "Entries skipped by the matching engine",
	},
	[]string{"instrument", "reason"},
)

// MatchDuration - время FIFO сопоставления одного инструмента
var MatchDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "tradejournal",
		Subsystem: "pnl",
		Name:      "match_duration_ms",
		Help:      "Time to match one instrument history in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 50, 100, 500},
	},
	[]string{"instrument"},
)

// ReportsBuilt - построенные отчеты по типам
var ReportsBuilt = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradejournal",
		Subsystem: "reports",
		Name:      "built_total",
		Help:      "Total number of reports built",
	},
	[]string{"report"},
)

// SettlementRuns - попытки недельного расчета по результату
var SettlementRuns = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradejournal",
		Subsystem: "settlement",
		Name:      "runs_total",
		Help:      "Settlement attempts by result",
	},
	[]string{"result"},
)
