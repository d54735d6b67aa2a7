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

package pgdao

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/cockroachdb/byslice/internal/byslice"
	"github.com/cockroachdb/byslice/internal/histogram"
)

// DAO is the pgx-backed implementation of byslice.DAO. One DAO serves
// every (entityType, minSlice, maxSlice) triple; the table name is
// derived from entityType the way the teacher derives a staging table
// name from a source table's ident.Table.
type DAO struct {
	pool Querier
}

var _ byslice.DAO = (*DAO)(nil)

// New wraps pool, typically a *pgxpool.Pool, as a byslice.DAO.
func New(pool Querier) *DAO {
	return &DAO{pool: pool}
}

// $1 = cutoff window is unused here; current time comes straight from
// the database's own clock so that currentBySlices never races ahead
// of commits the reader cannot yet see.
const currentTimestampQuery = `SELECT cluster_logical_timestamp()::timestamptz`

// CurrentDBTimestamp implements byslice.DAO.
func (d *DAO) CurrentDBTimestamp(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := d.pool.QueryRow(ctx, currentTimestampQuery).Scan(&now); err != nil {
		return time.Time{}, errors.WithStack(err)
	}
	return now, nil
}

// $1 entityType
// $2 minSlice
// $3 maxSlice
// $4 from (inclusive)
// $5 to (inclusive, may be the zero time meaning "no upper bound")
const rowsBySliceTemplate = `
SELECT entity_id, seq_nr, db_timestamp, clock_timestamp(), payload
  FROM %[1]s
 WHERE slice BETWEEN $2 AND $3
   AND db_timestamp >= $4
   AND ($5 = '0001-01-01 00:00:00+00'::timestamptz OR db_timestamp <= $5)
 ORDER BY db_timestamp, entity_id, seq_nr
`

// RowsBySlices implements byslice.DAO. backtracking is accepted for
// interface parity with byslice.DAO; this implementation issues the
// identical query either way; a storage engine that offers a
// cheaper, possibly-stale read path for backtracking windows would
// branch on it here.
func (d *DAO) RowsBySlices(
	ctx context.Context,
	entityType string,
	minSlice, maxSlice int,
	from time.Time,
	to *time.Time,
	behindCurrentTime time.Duration,
	backtracking bool,
) (byslice.RowStream, error) {
	upperBound := time.Time{}
	if to != nil {
		upperBound = *to
	}
	if behindCurrentTime > 0 {
		lagged := time.Now().Add(-behindCurrentTime)
		if upperBound.IsZero() || lagged.Before(upperBound) {
			upperBound = lagged
		}
	}

	query := fmt.Sprintf(rowsBySliceTemplate, tableName(entityType))
	rows, err := d.pool.Query(ctx, query, entityType, minSlice, maxSlice, from, upperBound)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &pgxRowStream{rows: rows}, nil
}

// CountBucketsMayChange implements byslice.DAO. Events are
// append-only once committed, so a previously observed bucket count
// can only grow as new rows commit into a bucket already counted, but
// a bucket whose count has already been fetched will never shrink or
// be invalidated by a later backtracking query; spec.md's histogram
// invariant only requires monotone-non-decreasing counts, which holds
// here, so false is correct for this domain.
func (d *DAO) CountBucketsMayChange() bool {
	return false
}

// $1 entityType
// $2 minSlice
// $3 maxSlice
// $4 from (inclusive)
// $5 limit
const countBucketsTemplate = `
SELECT extract(epoch FROM date_trunc('second', db_timestamp))::bigint
         / %[2]d * %[2]d AS bucket_start,
       count(*)
  FROM %[1]s
 WHERE slice BETWEEN $2 AND $3
   AND db_timestamp >= $4
 GROUP BY bucket_start
 ORDER BY bucket_start
 LIMIT $5
`

// CountBuckets implements byslice.DAO.
func (d *DAO) CountBuckets(
	ctx context.Context,
	entityType string,
	minSlice, maxSlice int,
	from time.Time,
	limit int,
) ([]histogram.Bucket, error) {
	query := fmt.Sprintf(countBucketsTemplate, tableName(entityType), histogram.BucketSeconds)
	rows, err := d.pool.Query(ctx, query, entityType, minSlice, maxSlice, from, limit)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()

	var buckets []histogram.Bucket
	for rows.Next() {
		var b histogram.Bucket
		if err := rows.Scan(&b.StartEpochSecond, &b.Count); err != nil {
			return nil, errors.WithStack(err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	return buckets, nil
}

// tableName derives the event table name for an entity type. Real
// deployments vary in how they namespace event tables by entity type;
// this mirrors the teacher's convention of deriving an ident.Table from
// a logical name rather than accepting a raw, unescaped SQL fragment
// from configuration.
func tableName(entityType string) string {
	return fmt.Sprintf("%s_events", pgIdent(entityType))
}

// pgIdent lower-cases and strips anything that is not alphanumeric or
// underscore, since entityType ultimately comes from operator-supplied
// configuration (internal/config) and is interpolated into a query
// string via fmt.Sprintf rather than passed as a bind parameter.
func pgIdent(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_':
			out = append(out, c)
		case c >= 'A' && c <= 'Z':
			out = append(out, c-'A'+'a')
		}
	}
	return string(out)
}
