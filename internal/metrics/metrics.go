// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "movie_api_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	RatingMutations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_rating_mutations_total",
			Help: "Rating upserts and deletes by outcome",
		},
		[]string{"op", "outcome"}, // op: put|delete
	)

	RentalAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_rental_attempts_total",
			Help: "Rent and return attempts by outcome",
		},
		[]string{"op", "outcome"}, // outcome: ok|limit|already_yours|rented|not_yours|not_found|error
	)

	RecommendationsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_recommendations_served_total",
			Help: "Recommendation responses by the tier that produced them",
		},
		[]string{"tier"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_api_cache_lookups_total",
			Help: "Response cache lookups by result",
		},
		[]string{"result"}, // hit|miss
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "movie_activity_events_published_total",
			Help: "Activity events handed to the broker by outcome",
		},
		[]string{"type", "outcome"}, // outcome: ok|error|breaker_open
	)
)

// RecordHTTPRequest observes one served request.
func RecordHTTPRequest(method, route string, status int, d time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
