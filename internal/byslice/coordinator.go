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

// Package byslice implements the by-slice query driver described in
// spec.md: the state machine that repeatedly issues bounded
// time-window queries against a DAO, maintains a QueryState, interleaves
// forward progress with backtracking windows, and post-processes rows
// into offset-bearing envelopes.
//
// This is modeled directly on the teacher's
// internal/source/cdc/resolver.go: resolver.readInto is the pull loop
// (here, Driver.Run); resolver.nextProposedStamp is the query-planning
// step (here, the NextQuery closures in CurrentBySlices/LiveBySlices).
package byslice

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/cockroachdb/byslice/internal/histogram"
	"github.com/cockroachdb/byslice/internal/metrics"
	"github.com/cockroachdb/byslice/internal/offsets"
	"github.com/cockroachdb/byslice/internal/postprocess"
)

// Clock abstracts time.Now so histogram-refresh staleness checks can be
// driven deterministically in tests (spec.md §9 Design Notes).
type Clock interface {
	Now() time.Time
}

// Coordinator is component E, the by-slice query coordinator. One
// Coordinator instance is constructed per (entityType, minSlice,
// maxSlice) driver, mirroring how the teacher's Resolvers factory
// caches one resolver per target schema.
type Coordinator[Env any] struct {
	dao       DAO
	factory   offsets.EnvelopeFactory[Env]
	extractor offsets.OffsetExtractor[Env]
	settings  Settings
	clock     Clock
	delayFunc DelayFunc
	logger    *log.Entry
	metrics   *metrics.Collectors
}

// New constructs a Coordinator. logger may be nil, in which case a
// package-level logrus logger with no extra fields is used. metrics may
// be nil, in which case instrumentation is a no-op.
func New[Env any](
	dao DAO,
	factory offsets.EnvelopeFactory[Env],
	extractor offsets.OffsetExtractor[Env],
	settings Settings,
	clock Clock,
	logger *log.Entry,
	collectors *metrics.Collectors,
) *Coordinator[Env] {
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &Coordinator[Env]{
		dao:       dao,
		factory:   factory,
		extractor: extractor,
		settings:  settings,
		clock:     clock,
		delayFunc: DefaultDelayFunc,
		logger:    logger,
		metrics:   collectors,
	}
}

// WithDelayFunc overrides the pacing function used between live
// queries (spec.md §4.D.4). Intended for tests.
func (c *Coordinator[Env]) WithDelayFunc(fn DelayFunc) *Coordinator[Env] {
	c.delayFunc = fn
	return c
}

// currentModeState is the Driver State for CurrentBySlices: the common
// QueryState plus the bookkeeping needed for the finite-stream
// termination rule of spec.md §4.D.1 (the last two completed queries'
// row counts) and the currentDbTime captured once at start.
type currentModeState struct {
	qs             QueryState
	currentDbTime  time.Time
	accumulator    int
	issued         int
	prev1, prev2   int // row counts of the two most recently completed queries
	queryStartedAt time.Time
}

// CurrentBySlices returns a finite stream of envelopes covering exactly
// the data already committed at the moment this call starts (spec.md
// §4.D.1).
func (c *Coordinator[Env]) CurrentBySlices(
	ctx context.Context, logPrefix, entityType string, minSlice, maxSlice int, offset offsets.Offset,
) (<-chan Env, <-chan error) {
	startOffset := offset.Resolve()
	prefix := logPrefix

	currentDbTime, err := c.dao.CurrentDBTimestamp(ctx)
	if err != nil {
		errCh := make(chan error, 1)
		errCh <- err
		outCh := make(chan Env)
		close(outCh)
		return outCh, errCh
	}

	driver := &Driver[currentModeState, Env]{
		InitialState: currentModeState{
			qs:            initialQueryState(startOffset),
			currentDbTime: currentDbTime,
		},
		UpdateState: func(cs currentModeState, env Env) (currentModeState, error) {
			qs, err := cs.qs.applyEmission(c.extractor(env))
			cs.qs = qs
			cs.accumulator++
			return cs, err
		},
		BeforeQuery: func(ctx context.Context, cs currentModeState) (currentModeState, error) {
			qs, err := c.refreshHistogram(ctx, entityType, minSlice, maxSlice, cs.qs)
			cs.qs = qs
			return cs, err
		},
		NextQuery: func(ctx context.Context, cs currentModeState) (currentModeState, Stream[Env], bool, error) {
			if cs.issued > 0 {
				cs.prev2 = cs.prev1
				cs.prev1 = cs.accumulator
				cs.accumulator = 0
				cs.qs = cs.qs.withQueryResult(cs.prev1)
				c.metrics.ObserveQuery(entityType, c.clock.Now().Sub(cs.queryStartedAt), cs.prev1)
				if cs.issued >= 2 && cs.prev1 == 0 && cs.prev2 == 0 {
					c.logger.WithFields(log.Fields{
						"prefix":     prefix,
						"entityType": entityType,
					}).Trace("currentBySlices: no more rows, terminating")
					return cs, nil, false, nil
				}
			}

			from := cs.qs.Latest.Timestamp
			to := cs.currentDbTime
			if bound, ok := cs.qs.Buckets.FindTimeForLimit(from, int64(c.settings.BufferSize)); ok && bound.Before(to) {
				to = bound
			}

			cs.queryStartedAt = c.clock.Now()
			rows, err := c.dao.RowsBySlices(ctx, entityType, minSlice, maxSlice, from, &to, 0, false)
			if err != nil {
				c.metrics.ObserveQueryError(entityType)
				return cs, nil, false, err
			}

			proc := postprocess.New(cs.qs.Latest, c.settings.BufferSize, c.factory)
			cs.qs.QueryCount++
			cs.issued++
			return cs, &rowEnvelopeStream[Env]{rows: rows, proc: proc}, true, nil
		},
	}

	return driver.Run(ctx)
}

// liveModeState is the Driver State for LiveBySlices.
type liveModeState struct {
	qs             QueryState
	accumulator    int
	issued         bool
	queryStartedAt time.Time
}

// LiveBySlices returns an infinite stream of envelopes, tailing both
// committed history and newly arriving rows, using the backtracking
// protocol of spec.md §4.D.2 to recover late-visible writes.
func (c *Coordinator[Env]) LiveBySlices(
	ctx context.Context, logPrefix, entityType string, minSlice, maxSlice int, offset offsets.Offset,
) (<-chan Env, <-chan error) {
	startOffset := offset.Resolve()
	prefix := logPrefix

	driver := &Driver[liveModeState, Env]{
		InitialState: liveModeState{qs: initialQueryState(startOffset)},
		UpdateState: func(ls liveModeState, env Env) (liveModeState, error) {
			qs, err := ls.qs.applyEmission(c.extractor(env))
			ls.qs = qs
			ls.accumulator++
			return ls, err
		},
		BeforeQuery: func(ctx context.Context, ls liveModeState) (liveModeState, error) {
			qs, err := c.refreshHistogram(ctx, entityType, minSlice, maxSlice, ls.qs)
			ls.qs = qs
			return ls, err
		},
		DelayNextQuery: func(ls liveModeState) (time.Duration, bool) {
			if !ls.issued {
				return 0, false
			}
			c.metrics.ObserveQuery(entityType, c.clock.Now().Sub(ls.queryStartedAt), ls.accumulator)
			return c.delayFunc(ls.accumulator, c.settings.BufferSize, c.settings.RefreshInterval), true
		},
		NextQuery: func(ctx context.Context, ls liveModeState) (liveModeState, Stream[Env], bool, error) {
			if ls.issued {
				ls.qs = ls.qs.withQueryResult(ls.accumulator)
				ls.accumulator = 0

				if ls.qs.Backtracking {
					if ls.qs.shouldExitBacktracking(c.settings) {
						c.logger.WithFields(log.Fields{
							"prefix":     prefix,
							"entityType": entityType,
						}).Trace("liveBySlices: exiting backtracking")
						ls.qs = ls.qs.exitBacktracking()
						c.metrics.ObserveBacktrackExit(entityType)
					}
				} else if ls.qs.shouldEnterBacktracking(c.settings) {
					c.logger.WithFields(log.Fields{
						"prefix":     prefix,
						"entityType": entityType,
						"idleCount":  ls.qs.IdleCount,
					}).Trace("liveBySlices: entering backtracking")
					ls.qs = ls.qs.enterBacktracking(c.settings)
					c.metrics.ObserveBacktrackEnter(entityType)
				}
			}

			from, to, behindCurrentTime := ls.qs.queryWindow(c.settings)
			ls.queryStartedAt = c.clock.Now()
			rows, err := c.dao.RowsBySlices(ctx, entityType, minSlice, maxSlice, from, to, behindCurrentTime, ls.qs.Backtracking)
			if err != nil {
				c.metrics.ObserveQueryError(entityType)
				return ls, nil, false, err
			}

			proc := postprocess.New(ls.qs.cursor(), c.settings.BufferSize, c.factory)
			ls.qs.QueryCount++
			ls.issued = true
			return ls, &rowEnvelopeStream[Env]{rows: rows, proc: proc}, true, nil
		},
	}

	return driver.Run(ctx)
}

// refreshHistogram implements spec.md §4.D.5 in full: the two-part gate
// plus the fromTimestamp selection rule, shared by both public
// operations.
func (c *Coordinator[Env]) refreshHistogram(
	ctx context.Context, entityType string, minSlice, maxSlice int, qs QueryState,
) (QueryState, error) {
	now := c.clock.Now()
	if !qs.needsHistogramRefresh(now, c.settings, c.dao.CountBucketsMayChange()) {
		return qs, nil
	}

	from := qs.refreshFromTimestamp(c.settings)
	buckets, err := c.dao.CountBuckets(ctx, entityType, minSlice, maxSlice, from, histogram.Limit)
	if err != nil {
		c.metrics.ObserveQueryError(entityType)
		return qs, err
	}

	c.logger.WithFields(log.Fields{
		"entityType": entityType,
		"from":       from,
		"buckets":    len(buckets),
	}).Trace("refreshed bucket histogram")
	c.metrics.ObserveHistogramRefresh(entityType)

	qs.Buckets = qs.Buckets.ClearUntil(from).Add(now, buckets)
	return qs, nil
}
