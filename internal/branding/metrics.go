package branding

import "github.com/prometheus/client_golang/prometheus"

var (
	readsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "branding_reads_total",
			Help: "Branding document reads by source (stored, default, fallback).",
		},
		[]string{"source"},
	)
	writesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "branding_writes_total",
			Help: "Branding document writes by operation and result.",
		},
		[]string{"op", "result"},
	)
)

func init() {
	prometheus.MustRegister(readsTotal)
	prometheus.MustRegister(writesTotal)
}
