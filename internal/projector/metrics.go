package projector

import "github.com/prometheus/client_golang/prometheus"

var (
	applyTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "branding_apply_total",
		Help: "Number of times branding was projected onto the head document.",
	})
	manifestFetchFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "branding_manifest_fetch_failures_total",
		Help: "Base manifest fetches that failed and fell back to an empty manifest.",
	})
	liveBlobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "branding_live_blobs",
		Help: "Object URLs currently served by the blob registry.",
	})
)

func init() {
	prometheus.MustRegister(applyTotal)
	prometheus.MustRegister(manifestFetchFailures)
	prometheus.MustRegister(liveBlobs)
}
