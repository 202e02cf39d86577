package kafka

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	publishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketsearch_kafka_published_total",
			Help: "Kafka messages published, by topic and outcome",
		},
		[]string{"topic", "outcome"},
	)

	publishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketsearch_kafka_publish_duration_seconds",
			Help:    "Time spent in a Kafka publish, broker acknowledgement included",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"topic"},
	)

	publishBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketsearch_kafka_published_bytes_total",
			Help: "Encoded envelope bytes published",
		},
		[]string{"topic"},
	)
)
