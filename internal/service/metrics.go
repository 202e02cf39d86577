package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ResolverFallbacks counts source ids rendered with the fallback title.
var ResolverFallbacks = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "search_resolver_fallbacks_total",
		Help: "Source ids that resolved to the fallback title, by reason",
	},
	[]string{"reason"},
)

// NoResultsTotal counts successful searches that returned nothing.
var NoResultsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "search_no_results_total",
		Help: "Successful searches with zero results and a query longer than two characters",
	},
	[]string{"mode", "surface"},
)
