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

// Command byslice-query runs one by-slice query stream against a
// Postgres/CockroachDB database and writes the resulting envelopes to
// stdout as newline-delimited JSON.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/cockroachdb/byslice/internal/config"
	"github.com/cockroachdb/byslice/internal/offsets"
)

func main() {
	if err := run(); err != nil {
		log.WithError(err).Fatal("byslice-query exited with an error")
	}
}

func run() error {
	cfg := &config.Config{}
	cfg.Bind(pflag.CommandLine)
	pflag.Parse()

	if err := cfg.Preflight(); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app, cleanup, err := NewApp(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "could not assemble application")
	}
	defer cleanup()

	if cfg.MetricsAddr != "" {
		serveMetrics(cfg.MetricsAddr)
	}

	var outCh <-chan Envelope
	var errCh <-chan error
	offset := offsets.None

	switch cfg.Mode {
	case "current":
		outCh, errCh = app.Coordinator.CurrentBySlices(ctx, "byslice-query", cfg.EntityType, cfg.MinSlice, cfg.MaxSlice, offset)
	default:
		outCh, errCh = app.Coordinator.LiveBySlices(ctx, "byslice-query", cfg.EntityType, cfg.MinSlice, cfg.MaxSlice, offset)
	}

	enc := json.NewEncoder(os.Stdout)
	for env := range outCh {
		if err := enc.Encode(env); err != nil {
			return errors.Wrap(err, "could not encode envelope")
		}
	}

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// serveMetrics starts the Prometheus metrics endpoint in the
// background; its failure is logged but never fatal to the stream
// itself.
func serveMetrics(addr string) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.WithError(err).Warn("metrics server exited")
		}
	}()
}
