// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

// Package metrics exposes the server's running counters as Prometheus
// metrics and as a small JSON admin surface, and drives the periodic
// textual stats logger.
package metrics

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bulkserver/internal/sinkpool"
)

var (
	commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkserver_commands_total",
		Help: "Total commands flushed to a sink, by sink name.",
	}, []string{"sink"})

	blocksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkserver_blocks_total",
		Help: "Total bulks flushed to a sink, by sink name.",
	}, []string{"sink"})

	sinkErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bulkserver_sink_errors_total",
		Help: "Total sink worker task failures, by sink name.",
	}, []string{"sink"})

	connectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bulkserver_connections_active",
		Help: "Number of TCP connections currently accepted.",
	})
)

func init() {
	prometheus.MustRegister(commandsTotal, blocksTotal, sinkErrorsTotal, connectionsActive)
}

// ConnectionOpened increments the active connection gauge. Hook's method
// of the same name calls it.
func ConnectionOpened() { connectionsActive.Inc() }

// ConnectionClosed decrements the active connection gauge. Hook's method
// of the same name calls it.
func ConnectionClosed() { connectionsActive.Dec() }

// Hook adapts the package-level connection gauge to session.ConnectionHook
// without this package importing the session package.
type Hook struct{}

func (Hook) ConnectionOpened() { ConnectionOpened() }
func (Hook) ConnectionClosed() { ConnectionClosed() }

// RecordFlush credits sink with one flushed bulk of the given command
// count.
func RecordFlush(sink string, commands uint64) {
	commandsTotal.WithLabelValues(sink).Add(float64(commands))
	blocksTotal.WithLabelValues(sink).Inc()
}

// RecordError credits sink with one failed sink worker task.
func RecordError(sink string) {
	sinkErrorsTotal.WithLabelValues(sink).Inc()
}

// StatsSource reports a named sink's current worker statistics, keyed by
// worker id. Every sink in internal/sinks satisfies this directly through
// its own Stats method.
type StatsSource interface {
	Stats() map[int]sinkpool.Stats
}

type statsSnapshot struct {
	ActiveConnections int                               `json:"active_connections"`
	Sinks             map[string]map[int]sinkpool.Stats `json:"sinks"`
}

// Server exposes /metrics (Prometheus) and /stats (JSON admin summary) on
// its own HTTP listener, separate from the bulk TCP protocol port.
type Server struct {
	httpServer        *http.Server
	sinks             map[string]StatsSource
	activeConnections func() int
}

// NewServer wires an admin HTTP server. activeConnections reports the
// live connection count on demand for /stats; sinks maps a sink's display
// name to its stats source.
func NewServer(addr string, activeConnections func() int, sinks map[string]StatsSource) *Server {
	s := &Server{sinks: sinks, activeConnections: activeConnections}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/stats", s.handleStats)
	s.httpServer = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	return s
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snapshot := statsSnapshot{Sinks: make(map[string]map[int]sinkpool.Stats, len(s.sinks))}
	if s.activeConnections != nil {
		snapshot.ActiveConnections = s.activeConnections()
	}
	for name, src := range s.sinks {
		snapshot.Sinks[name] = src.Stats()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snapshot)
}

// ListenAndServe blocks serving the admin HTTP surface until the server
// is closed or the listener errors.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Close shuts down the admin HTTP server immediately.
func (s *Server) Close() error {
	return s.httpServer.Close()
}
