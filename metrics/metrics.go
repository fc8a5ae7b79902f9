// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package metrics holds the Prometheus collectors for the polling server.
// They register with the default registry and are served by promhttp at
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuestionsAsked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classpoll_questions_asked_total",
			Help: "Total number of questions started",
		},
	)

	// QuestionsExpired is labelled by what observed the expiry:
	// submit, access, sweeper or manual.
	QuestionsExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classpoll_questions_expired_total",
			Help: "Total number of questions moved from active to expired",
		},
		[]string{"trigger"},
	)

	// AnswersSubmitted is labelled by outcome: accepted, duplicate,
	// expired or rejected.
	AnswersSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classpoll_answers_submitted_total",
			Help: "Total number of answer submissions",
		},
		[]string{"outcome"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classpoll_events_published_total",
			Help: "Total number of events published on the broadcast channel",
		},
		[]string{"event"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classpoll_events_dropped_total",
			Help: "Events not delivered because a subscriber buffer was full",
		},
	)

	LiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "classpoll_live_subscribers_current",
			Help: "Current number of broadcast channel subscribers",
		},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classpoll_http_request_duration_seconds",
			Help:    "Time spent serving HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)
)

// Trigger labels for QuestionsExpired
const (
	TriggerSubmit  = "submit"
	TriggerAccess  = "access"
	TriggerSweeper = "sweeper"
	TriggerManual  = "manual"
)

// Outcome labels for AnswersSubmitted
const (
	OutcomeAccepted  = "accepted"
	OutcomeDuplicate = "duplicate"
	OutcomeExpired   = "expired"
	OutcomeRejected  = "rejected"
)
