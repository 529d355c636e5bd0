package attendance

import "github.com/prometheus/client_golang/prometheus"

var scansTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scantrack_scans_total",
		Help: "RFID scans by mode and classified outcome.",
	},
	[]string{"mode", "outcome"},
)

func init() {
	prometheus.MustRegister(scansTotal)
}

func observeScan(mode Mode, outcome Outcome) {
	scansTotal.WithLabelValues(string(mode), string(outcome)).Inc()
}
