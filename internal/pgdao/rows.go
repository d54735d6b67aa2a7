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

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/cockroachdb/byslice/internal/byslice"
	"github.com/cockroachdb/byslice/internal/offsets"
)

// pgxRowStream adapts pgx.Rows to byslice.RowStream, scanning one row per Next
// call rather than materializing the whole result set, so a canceled
// consumer can abandon a large query without reading it to completion.
type pgxRowStream struct {
	rows pgx.Rows
}

var _ byslice.RowStream = (*pgxRowStream)(nil)

func (s *pgxRowStream) Next(ctx context.Context) (offsets.Row, bool, error) {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return offsets.Row{}, false, errors.WithStack(err)
		}
		return offsets.Row{}, false, nil
	}

	var row offsets.Row
	var payload []byte
	if err := s.rows.Scan(&row.EntityID, &row.SeqNr, &row.DBTimestamp, &row.ReadDBTimestamp, &payload); err != nil {
		return offsets.Row{}, false, errors.WithStack(err)
	}
	row.Payload = payload
	return row, true, nil
}

func (s *pgxRowStream) Close() {
	s.rows.Close()
}
