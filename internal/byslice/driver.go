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
	"time"
)

// Stream is the lazy, cancelable inner stream produced by one
// nextQuery call (component D's stream<Out>, spec.md §4.C). Next blocks
// until a value is ready; ok is false once the stream is exhausted
// cleanly. Close must always be called once Next returns !ok or an
// error, or when the driver abandons the stream due to cancellation.
type Stream[Out any] interface {
	Next(ctx context.Context) (out Out, ok bool, err error)
	Close()
}

// Driver is the continuous-query driver skeleton of component D,
// spec.md §4.C: a single-threaded cooperative pull loop modeled
// directly on the teacher's internal/source/cdc/resolver.go readInto
// method, generalized to arbitrary State/Out types. No two queries are
// ever in flight at once (spec.md §5).
type Driver[State any, Out any] struct {
	InitialState State

	// UpdateState is invoked once per emitted value, and may reject the
	// update (spec.md §4.D.6's OutOfOrderEmission check lives here for
	// the by-slice coordinator). A non-nil error halts the driver after
	// the value has already been delivered downstream.
	UpdateState func(state State, out Out) (State, error)

	// DelayNextQuery is applied between the exhaustion of one inner
	// stream and the next nextQuery call. ok=false means no delay.
	DelayNextQuery func(state State) (delay time.Duration, ok bool)

	// NextQuery decides the next inner stream. hasStream=false signals
	// terminal end of the outer stream (used by currentBySlices).
	NextQuery func(ctx context.Context, state State) (newState State, stream Stream[Out], hasStream bool, err error)

	// BeforeQuery runs immediately before NextQuery on every iteration,
	// and may replace the state (spec.md §4.D.5's histogram refresh).
	// May be nil.
	BeforeQuery func(ctx context.Context, state State) (State, error)
}

// Run starts the pull loop in a background goroutine and returns the
// output channel and a single-value error channel. The output channel
// is closed when the driver terminates, whether cleanly, by error, or
// by context cancellation; exactly one value (possibly nil) is sent on
// the error channel before outCh is closed.
func (d *Driver[State, Out]) Run(ctx context.Context) (<-chan Out, <-chan error) {
	outCh := make(chan Out)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		state := d.InitialState

		finish := func(err error) {
			errCh <- err
		}

		for {
			if d.BeforeQuery != nil {
				ns, err := d.BeforeQuery(ctx, state)
				if err != nil {
					finish(err)
					return
				}
				state = ns
			}

			ns, stream, hasStream, err := d.NextQuery(ctx, state)
			state = ns
			if err != nil {
				finish(err)
				return
			}
			if !hasStream {
				finish(nil)
				return
			}

			streamErr := d.drain(ctx, stream, &state, outCh)
			stream.Close()
			if streamErr != nil {
				finish(streamErr)
				return
			}

			if d.DelayNextQuery != nil {
				if delay, wait := d.DelayNextQuery(state); wait && delay > 0 {
					timer := time.NewTimer(delay)
					select {
					case <-timer.C:
					case <-ctx.Done():
						timer.Stop()
						finish(ctx.Err())
						return
					}
				}
			}
		}
	}()

	return outCh, errCh
}

// drain pulls every value out of one inner stream, applying UpdateState
// and forwarding to outCh, until the stream ends or ctx is canceled.
func (d *Driver[State, Out]) drain(ctx context.Context, stream Stream[Out], state *State, outCh chan<- Out) error {
	for {
		out, ok, err := stream.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		select {
		case outCh <- out:
		case <-ctx.Done():
			return ctx.Err()
		}

		ns, err := d.UpdateState(*state, out)
		*state = ns
		if err != nil {
			return err
		}
	}
}
