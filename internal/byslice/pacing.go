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

import "time"

// DelayFunc maps the row count of the last completed live query to the
// delay before the next one, per spec.md §4.D.4: a monotonic mapping
// from rowCount to a delay in [0, refreshInterval], supplied by the
// driver collaborator. The coordinator only feeds it the last rowCount
// and BufferSize.
type DelayFunc func(rowCount, bufferSize int, refreshInterval time.Duration) time.Duration

// DefaultDelayFunc returns no delay once a query is keeping pace with
// the configured buffer size (rowCount >= bufferSize), and scales
// linearly up to refreshInterval as rowCount falls toward zero.
func DefaultDelayFunc(rowCount, bufferSize int, refreshInterval time.Duration) time.Duration {
	if bufferSize <= 0 || rowCount >= bufferSize {
		return 0
	}
	if rowCount <= 0 {
		return refreshInterval
	}
	fraction := float64(bufferSize-rowCount) / float64(bufferSize)
	return time.Duration(float64(refreshInterval) * fraction)
}
