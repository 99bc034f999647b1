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

package metrics

import (
	"log"
	"sort"
	"time"
)

// StatsLogger periodically writes a one-line-per-sink textual summary
// through the standard logger, for operators watching a plain log stream
// rather than scraping Prometheus.
type StatsLogger struct {
	logger            *log.Logger
	interval          time.Duration
	activeConnections func() int
	sinks             map[string]StatsSource

	stop chan struct{}
	done chan struct{}
}

// NewStatsLogger builds a logger that reports every interval. Call Start
// to begin the background loop and Stop to end it.
func NewStatsLogger(logger *log.Logger, interval time.Duration, activeConnections func() int, sinks map[string]StatsSource) *StatsLogger {
	if logger == nil {
		logger = log.Default()
	}
	return &StatsLogger{
		logger:            logger,
		interval:          interval,
		activeConnections: activeConnections,
		sinks:             sinks,
		stop:              make(chan struct{}),
		done:              make(chan struct{}),
	}
}

// Start runs the periodic logging loop in its own goroutine. It is a
// no-op if interval is zero or negative.
func (l *StatsLogger) Start() {
	if l.interval <= 0 {
		close(l.done)
		return
	}
	go l.run()
}

func (l *StatsLogger) run() {
	defer close(l.done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.logOnce()
		case <-l.stop:
			return
		}
	}
}

func (l *StatsLogger) logOnce() {
	names := make([]string, 0, len(l.sinks))
	for name := range l.sinks {
		names = append(names, name)
	}
	sort.Strings(names)

	active := 0
	if l.activeConnections != nil {
		active = l.activeConnections()
	}

	for _, name := range names {
		var commands, blocks uint64
		for _, st := range l.sinks[name].Stats() {
			commands += st.Commands
			blocks += st.Blocks
		}
		l.logger.Printf("stats: sink=%s commands=%d blocks=%d connections=%d", name, commands, blocks, active)
	}
	if len(names) == 0 {
		l.logger.Printf("stats: connections=%d", active)
	}
}

// Stop ends the background loop and waits for it to exit.
func (l *StatsLogger) Stop() {
	if l.interval <= 0 {
		return
	}
	close(l.stop)
	<-l.done
}
