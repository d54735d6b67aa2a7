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

package byslice

import (
	"context"

	"github.com/cockroachdb/byslice/internal/postprocess"
)

// rowEnvelopeStream adapts a DAO RowStream plus a postprocess.Processor
// into the Stream[Env] the driver pulls from, so the driver itself
// never sees raw rows — only the post-processed, deduplicated
// envelopes (component C feeding component D, spec.md §2 data flow).
type rowEnvelopeStream[Env any] struct {
	rows RowStream
	proc *postprocess.Processor[Env]
}

func (s *rowEnvelopeStream[Env]) Next(ctx context.Context) (Env, bool, error) {
	for {
		row, ok, err := s.rows.Next(ctx)
		if err != nil {
			var zero Env
			return zero, false, err
		}
		if !ok {
			var zero Env
			return zero, false, nil
		}

		env, emit, err := s.proc.Process(row)
		if err != nil {
			var zero Env
			return zero, false, err
		}
		if emit {
			return env, true, nil
		}
		// Duplicate within this timestamp: drop and keep pulling.
	}
}

func (s *rowEnvelopeStream[Env]) Close() {
	s.rows.Close()
}
