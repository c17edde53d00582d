package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chorepoints", Name: "submissions_total", Help: "Assignment completions submitted by children",
	}, []string{"kind"})
	Reviews = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chorepoints", Name: "reviews_total", Help: "Completion reviews by outcome",
	}, []string{"kind", "outcome"})
	PointsCredited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chorepoints", Name: "points_credited_total", Help: "Points credited to child balances",
	}, []string{"source"})
	BonusesPaid = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chorepoints", Name: "family_bonuses_paid_total", Help: "Daily family bonuses paid",
	})
	TxRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "chorepoints", Name: "tx_retries_total", Help: "Transactions retried after a busy or serialization failure",
	})
)

func init() {
	prometheus.MustRegister(Submissions, Reviews, PointsCredited, BonusesPaid, TxRetries)
}

func Handler() http.Handler { return promhttp.Handler() }
