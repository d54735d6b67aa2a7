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

// histogramMaxAge is EVENT_BUCKET_COUNT_INTERVAL, spec.md §4.D /
// §4.D.5: the cached histogram is considered stale once it is older
// than this.
const histogramMaxAge = 60 * time.Second

// Settings holds the six injected options of spec.md §6.3, plus the
// idle threshold that spec.md §9's Open Questions says must be
// configurable rather than hard-coded.
type Settings struct {
	// BufferSize is the target upper-bound row count per query (N in
	// spec.md §4.D.3), and the in-memory dedup cap that arms
	// TooManyEventsSameTimestamp.
	BufferSize int

	// RefreshInterval bounds the idle sleep between live queries.
	RefreshInterval time.Duration

	// BehindCurrentTime is the forward-query visibility lag.
	BehindCurrentTime time.Duration

	// BacktrackingEnabled gates whether live mode may enter
	// backtracking at all.
	BacktrackingEnabled bool

	// BacktrackingWindow is the nominal backtracking span.
	BacktrackingWindow time.Duration

	// BacktrackingBehindCurrentTime is the backtracking-query
	// visibility lag.
	BacktrackingBehindCurrentTime time.Duration

	// BacktrackingIdleThreshold is the number of consecutive idle
	// queries that trigger entry into backtracking. spec.md §9 leaves
	// this configurable rather than hard-coding 5; DefaultSettings
	// still defaults it to 5 to match the documented behavior.
	BacktrackingIdleThreshold int
}

// DefaultSettings returns the defaults used by the teacher's analogous
// polling configuration (BackupPolling, flush batch sizes), adapted to
// this engine's buffer/window semantics.
func DefaultSettings() Settings {
	return Settings{
		BufferSize:                    1000,
		RefreshInterval:               3 * time.Second,
		BehindCurrentTime:             500 * time.Millisecond,
		BacktrackingEnabled:           true,
		BacktrackingWindow:            5 * time.Minute,
		BacktrackingBehindCurrentTime: 3 * time.Second,
		BacktrackingIdleThreshold:     5,
	}
}

func (s Settings) idleThreshold() int {
	if s.BacktrackingIdleThreshold <= 0 {
		return 5
	}
	return s.BacktrackingIdleThreshold
}

func (s Settings) halfBacktrackingWindow() time.Duration {
	return s.BacktrackingWindow / 2
}

func (s Settings) firstBacktrackingWindow() time.Duration {
	return s.BacktrackingWindow + s.BacktrackingBehindCurrentTime
}
