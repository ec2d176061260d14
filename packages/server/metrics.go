package server

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vogtb/go-spreadsheet/packages/spreadsheet"
)

// update results used as the "result" label
const (
	resultOK              = "ok"
	resultInvalidPosition = "invalid_position"
	resultCircular        = "circular_dependency"
	resultParseError      = "parse_error"
	resultError           = "error"
)

// Metrics holds the server's prometheus collectors
type Metrics struct {
	// cellUpdates counts set and clear requests by result
	cellUpdates *prometheus.CounterVec

	// updateDuration tracks how long a set or clear takes, including storage
	updateDuration prometheus.Histogram

	// sheets is the number of sheets held in memory
	sheets prometheus.Gauge
}

// NewMetrics registers the collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cellUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "spreadsheet_cell_updates_total",
			Help: "Total cell updates by result",
		}, []string{"result"}),
		updateDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "spreadsheet_cell_update_duration_seconds",
			Help:    "Cell update duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10µs to ~2.6s
		}),
		sheets: factory.NewGauge(prometheus.GaugeOpts{
			Name: "spreadsheet_sheets",
			Help: "Number of sheets held in memory",
		}),
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, spreadsheet.ErrInvalidPosition):
		return resultInvalidPosition
	case errors.Is(err, spreadsheet.ErrCircularDependency):
		return resultCircular
	case errors.Is(err, spreadsheet.ErrFormulaParse):
		return resultParseError
	default:
		return resultError
	}
}
