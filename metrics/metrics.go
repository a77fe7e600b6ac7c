/*

 Iris - Decentralized Storage Validator Network
 Copyright (C) 2025 Vadim Filin, https://github.com/Warp-net,
 <github.com.mecdy@passmail.net>

 This program is free software: you can redistribute it and/or modify
 it under the terms of the GNU Affero General Public License as published by
 the Free Software Foundation, either version 3 of the License, or
 (at your option) any later version.

 This program is distributed in the hope that it will be useful,
 but WITHOUT ANY WARRANTY; without even the implied warranty of
 MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 GNU Affero General Public License for more details.

 You should have received a copy of the GNU Affero General Public License
 along with this program.  If not, see <https://www.gnu.org/licenses/>.

Iris is provided “as is” without warranty of any kind, either expressed or implied.
Use at your own risk. The maintainers shall not be liable for any damages or data loss
resulting from the use or misuse of this software.
*/

// Copyright 2025 Vadim Filin
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Warp-net/iris/core/pipeline"
	"github.com/Warp-net/iris/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

const namespace = "iris"

type Metrics struct {
	registry *prometheus.Registry

	commands         *prometheus.CounterVec
	connectedPeers   prometheus.Gauge
	activeValidators prometheus.Gauge
	sessionIndex     prometheus.Gauge
	offences         *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "data_commands_total",
			Help:      "Processed data commands by kind, last stage and result.",
		}, []string{"kind", "stage", "result"}),
		connectedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "content_store_peers",
			Help:      "Peers the content store is connected to.",
		}),
		activeValidators: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_validators",
			Help:      "Size of the active validator set.",
		}),
		sessionIndex: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_index",
			Help:      "Current session index.",
		}),
		offences: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "offences_total",
			Help:      "Reported offences by kind.",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.commands,
		m.connectedPeers,
		m.activeValidators,
		m.sessionIndex,
		m.offences,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordCommand(kind domain.DataCommandKind, stage pipeline.Stage, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNoSuchOwnedContent):
		result = "skipped"
	case errors.Is(err, domain.ErrInsufficientBalance):
		result = "denied"
	default:
		result = "failed"
	}
	m.commands.WithLabelValues(string(kind), string(stage), result).Inc()
}

func (m *Metrics) SetConnectedPeers(n int) {
	m.connectedPeers.Set(float64(n))
}

func (m *Metrics) SetActiveValidators(n int) {
	m.activeValidators.Set(float64(n))
}

func (m *Metrics) SetSessionIndex(index domain.SessionIndex) {
	m.sessionIndex.Set(float64(index))
}

func (m *Metrics) RecordOffence(kind string, offenders int) {
	m.offences.WithLabelValues(kind).Add(float64(offenders))
}

type Server struct {
	srv *http.Server
}

// NewServer exposes the registry on addr at /metrics.
func NewServer(addr string, m *Metrics) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry}))
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// Start blocks until the server is shut down.
func (s *Server) Start() error {
	log.Infof("metrics: serving on %s", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
