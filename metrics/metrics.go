// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heropets_http_requests_total",
		Help: "HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "heropets_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	HTTPPanicsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heropets_http_panics_total",
		Help: "Handler panics turned into 500 responses by route",
	}, []string{"route"})
	HTTPRateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heropets_http_rate_limited_total",
		Help: "Requests refused by the per-client rate limit by route",
	}, []string{"route"})

	// Pet game
	PetActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heropets_pet_actions_total",
		Help: "Committed pet game actions by action",
	}, []string{"action"})
	PetActionConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heropets_pet_action_conflicts_total",
		Help: "Pet writes rejected because the pet changed concurrently",
	})
	PetEventPublishErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heropets_pet_event_publish_errors_total",
		Help: "Pet events that could not be published after commit",
	})

	// Adoptions
	AdoptionConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heropets_adoption_conflicts_total",
		Help: "Adoptions refused because the pet already had a sponsor",
	})

	// Sequence allocator
	SequenceAllocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heropets_sequence_allocations_total",
		Help: "IDs handed out by the sequence allocator, including ones whose transaction rolled back",
	}, []string{"name"})

	// Legacy migration
	LegacyDocumentsMigratedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heropets_legacy_documents_migrated_total",
		Help: "Legacy documents copied into the relational store by collection",
	}, []string{"collection"})
	LegacyDocumentsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heropets_legacy_documents_skipped_total",
		Help: "Legacy documents skipped because a reference could not be resolved",
	}, []string{"collection"})
)
