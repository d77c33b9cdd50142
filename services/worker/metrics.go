package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	productOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricewatch",
		Name:      "scrape_products_total",
		Help:      "Product scrape attempts by outcome.",
	}, []string{"outcome"})

	productFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pricewatch",
		Name:      "scrape_failures_total",
		Help:      "Failed product scrapes by error type.",
	}, []string{"type"})

	productDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pricewatch",
		Name:      "scrape_product_duration_seconds",
		Help:      "Time spent fetching and extracting one product page.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
	})

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "pricewatch",
		Name:      "sweep_duration_seconds",
		Help:      "Wall time of a full scrape sweep.",
		Buckets:   prometheus.ExponentialBuckets(30, 2, 8),
	})

	sweepRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pricewatch",
		Name:      "sweep_running",
		Help:      "1 while a scrape sweep is in flight.",
	})
)
