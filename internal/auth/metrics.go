package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// decisions counts access middleware outcomes by code ("ACCEPTED", "ANONYMOUS" or an error code).
var decisions = promauto.NewCounterVec( //nolint:gochecknoglobals
	prometheus.CounterOpts{
		Name: "bizdir_auth_decisions_total",
		Help: "Number of access middleware decisions, differentiated by outcome.",
	},
	[]string{"outcome"},
)

const (
	outcomeAccepted  = "ACCEPTED"
	outcomeAnonymous = "ANONYMOUS"
)

func countDecision(outcome string) {
	decisions.WithLabelValues(outcome).Inc()
}
