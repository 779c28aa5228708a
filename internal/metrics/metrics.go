//-------------------------------------------------------------------------
//
// pgEdge RAG Server
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package metrics holds the Prometheus collectors exported by the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quill"

// Retrieval outcomes.
const (
	OutcomeMatched  = "matched"
	OutcomeRefused  = "refused"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

var (
	// QueriesTotal counts answered queries.
	// Labels: pipeline, outcome (matched, refused, fallback, error)
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "queries_total",
			Help:      "Total number of queries by retrieval outcome",
		},
		[]string{"pipeline", "outcome"},
	)

	// MatchDistance observes the cosine distance of the nearest document
	// for every retrieval that found a candidate.
	MatchDistance = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "match_distance",
			Help:      "Cosine distance of the nearest stored document",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		},
		[]string{"pipeline"},
	)

	// DocumentsInserted counts documents written to a store.
	DocumentsInserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "documents",
			Name:      "inserted_total",
			Help:      "Total number of documents inserted",
		},
		[]string{"pipeline"},
	)

	// StreamChunksSkipped counts stream payloads that could not be decoded.
	StreamChunksSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "stream_chunks_skipped_total",
			Help:      "Total number of malformed stream chunks skipped",
		},
		[]string{"provider"},
	)

	// ProviderErrors counts failed provider calls.
	// Labels: provider, code
	ProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "errors_total",
			Help:      "Total number of failed embedding or completion calls",
		},
		[]string{"provider", "code"},
	)

	// TranscriptLinesDropped counts history lines without a role marker.
	TranscriptLinesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "conversation",
			Name:      "transcript_lines_dropped_total",
			Help:      "Total number of transcript lines ignored while parsing",
		},
	)
)
