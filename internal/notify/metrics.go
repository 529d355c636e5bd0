package notify

import "github.com/prometheus/client_golang/prometheus"

var attemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "scantrack_notification_attempts_total",
		Help: "Guardian notification attempts by channel and result.",
	},
	[]string{"channel", "result"},
)

func init() {
	prometheus.MustRegister(attemptsTotal)
}

func observeAttempt(a Attempt) {
	result := "failure"
	if a.Success {
		result = "success"
	}
	attemptsTotal.WithLabelValues(a.Channel, result).Inc()
}
