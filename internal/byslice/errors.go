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
	"github.com/pkg/errors"

	"github.com/cockroachdb/byslice/internal/postprocess"
)

// ErrOutOfOrderEmission is returned when the DAO violates its sort
// contract: a newly emitted offset precedes the cursor it should be
// advancing (spec.md §4.D.6, §7). It is always fatal; the core never
// attempts to recover from it.
var ErrOutOfOrderEmission = errors.New("out-of-order emission: dao violated its sort contract")

// ErrTooManyEventsSameTimestamp is the post-processor's safety rail
// error (spec.md §4.B, §7), re-exported so callers of this package can
// match on it with errors.Is without importing internal/postprocess.
var ErrTooManyEventsSameTimestamp = postprocess.TooManyEventsSameTimestamp
