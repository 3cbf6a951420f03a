// Package metrics exposes the pipeline's Prometheus counters. Counters
// register on the default registry at init; Serve mounts /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Plans counts planning attempts by outcome: ok, provider_unavailable,
	// invalid_json.
	Plans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insightgym_plans_total",
		Help: "Planning attempts by outcome.",
	}, []string{"outcome"})

	// Corrections counts heuristic rule firings by rule name.
	Corrections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insightgym_corrections_total",
		Help: "Correction rule firings by rule.",
	}, []string{"rule"})

	// Actions counts executed actions by name and result status.
	Actions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insightgym_actions_total",
		Help: "Executed actions by name and status.",
	}, []string{"action", "status"})

	// ProviderFailures counts model completions that failed over or
	// exhausted the fallback chain, by provider id.
	ProviderFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "insightgym_provider_failures_total",
		Help: "Failed model completions by provider.",
	}, []string{"provider"})
)

// Serve blocks serving /metrics on addr.
func Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
