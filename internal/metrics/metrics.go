// Copyright 2023 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package metrics holds the shared Prometheus instrumentation for the
// by-slice query engine, grouped the way the teacher's
// internal/staging/stage/metrics.go groups per-operation latency
// histograms and error counters.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// LatencyBuckets are the histogram buckets shared by every duration
// metric in this package, matching the teacher's
// internal/util/metrics.LatencyBuckets convention.
var LatencyBuckets = []float64{
	.001, .002, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30,
}

// EntityLabels names the label dimensions every metric below is split
// by, mirroring the teacher's per-table TableLabels.
var EntityLabels = []string{"entity_type"}

// Collectors bundles the query-engine metrics. A nil *Collectors is
// safe to call methods on; they become no-ops, so instrumentation is
// optional for callers (e.g. tests) that construct a Coordinator
// directly.
type Collectors struct {
	queryDurations   *prometheus.HistogramVec
	queryRows        *prometheus.HistogramVec
	queryErrors      *prometheus.CounterVec
	backtrackEnters  *prometheus.CounterVec
	backtrackExits   *prometheus.CounterVec
	histogramRefresh *prometheus.CounterVec
}

// New registers and returns a fresh Collectors against the default
// Prometheus registry, via promauto, matching the teacher's pattern of
// package-level promauto.New* calls.
func New() *Collectors {
	return &Collectors{
		queryDurations: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "byslice_query_duration_seconds",
			Help:    "the length of time a single by-slice query took to drain",
			Buckets: LatencyBuckets,
		}, EntityLabels),
		queryRows: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "byslice_query_rows",
			Help:    "the number of rows returned by a single by-slice query",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16),
		}, EntityLabels),
		queryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "byslice_query_errors_total",
			Help: "the number of by-slice queries that failed",
		}, EntityLabels),
		backtrackEnters: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "byslice_backtracking_entered_total",
			Help: "the number of times a live by-slice stream entered backtracking mode",
		}, EntityLabels),
		backtrackExits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "byslice_backtracking_exited_total",
			Help: "the number of times a live by-slice stream exited backtracking mode",
		}, EntityLabels),
		histogramRefresh: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "byslice_histogram_refresh_total",
			Help: "the number of times the bucket histogram was refreshed from the DAO",
		}, EntityLabels),
	}
}

func (c *Collectors) ObserveQuery(entityType string, d time.Duration, rows int) {
	if c == nil {
		return
	}
	c.queryDurations.WithLabelValues(entityType).Observe(d.Seconds())
	c.queryRows.WithLabelValues(entityType).Observe(float64(rows))
}

func (c *Collectors) ObserveQueryError(entityType string) {
	if c == nil {
		return
	}
	c.queryErrors.WithLabelValues(entityType).Inc()
}

func (c *Collectors) ObserveBacktrackEnter(entityType string) {
	if c == nil {
		return
	}
	c.backtrackEnters.WithLabelValues(entityType).Inc()
}

func (c *Collectors) ObserveBacktrackExit(entityType string) {
	if c == nil {
		return
	}
	c.backtrackExits.WithLabelValues(entityType).Inc()
}

func (c *Collectors) ObserveHistogramRefresh(entityType string) {
	if c == nil {
		return
	}
	c.histogramRefresh.WithLabelValues(entityType).Inc()
}
