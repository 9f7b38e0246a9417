// Package metrics registers the daemon's prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SourceRuns counts source adapter runs by outcome.
	SourceRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enzetsu_source_runs_total",
		Help: "Source adapter runs by status.",
	}, []string{"source", "status"})

	// SpeechesIngested counts merged records by merge outcome.
	SpeechesIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enzetsu_speeches_ingested_total",
		Help: "Ingested speech records by outcome.",
	}, []string{"source", "outcome"})

	// RecordErrors counts records dropped inside an otherwise healthy run.
	RecordErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enzetsu_record_errors_total",
		Help: "Records skipped due to per-record failures.",
	}, []string{"source"})

	// GeocodeLookups counts cache lookups by result.
	GeocodeLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enzetsu_geocode_lookups_total",
		Help: "Geocode cache lookups by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(
		SourceRuns,
		SpeechesIngested,
		RecordErrors,
		GeocodeLookups,
	)
}

// Handler exposes the default registry for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
